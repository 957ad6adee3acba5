package sqlite

// Запись аккаунта хранится JSON-документом; колонки рядом с ним нужны
// только для условной записи по version и для выборок планировщика.
const createTables = `
	CREATE TABLE IF NOT EXISTS "accounts" (
		"id"	TEXT NOT NULL,
		"version"	INTEGER NOT NULL,
		"doc"	TEXT NOT NULL,
		"pending_round_id"	TEXT,
		"round_deadline"	INTEGER,
		"last_round_id"	TEXT,
		"positions"	INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY("id")
	);
	CREATE TABLE IF NOT EXISTS "ledger_entries" (
		"id"	TEXT NOT NULL,
		"group_id"	TEXT NOT NULL,
		"account_id"	TEXT NOT NULL,
		"kind"	TEXT NOT NULL,
		"from_balance"	TEXT NOT NULL,
		"to_balance"	TEXT NOT NULL,
		"amount"	TEXT NOT NULL,
		"reason"	TEXT NOT NULL,
		"ref"	TEXT,
		"created_at"	INTEGER NOT NULL,
		PRIMARY KEY("id")
	);
`

const createIndexes = `
	CREATE INDEX IF NOT EXISTS "accounts_pending_round" ON "accounts" ( "pending_round_id" );
	CREATE INDEX IF NOT EXISTS "accounts_last_round" ON "accounts" ( "last_round_id" );
	CREATE INDEX IF NOT EXISTS "accounts_round_deadline" ON "accounts" ( "round_deadline" );
	CREATE INDEX IF NOT EXISTS "ledger_account_id" ON "ledger_entries" ( "account_id" ASC );
`
