// Package postgres — queries.go содержит схему и применение миграций.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type migration struct {
	version int
	sql     string
}

// migrations — схема хранилища аккаунтов. Новые версии только дописываются в конец.
var migrations = []migration{
	{version: 1, sql: `
		CREATE TABLE IF NOT EXISTS accounts (
			id                  TEXT PRIMARY KEY,
			version             BIGINT NOT NULL,
			spendable           NUMERIC(38, 18) NOT NULL DEFAULT 0 CHECK (spendable >= 0),
			staked              NUMERIC(38, 18) NOT NULL DEFAULT 0 CHECK (staked >= 0),
			wager_credit        NUMERIC(38, 18) NOT NULL DEFAULT 0 CHECK (wager_credit >= 0),
			withdrawable_credit NUMERIC(38, 18) NOT NULL DEFAULT 0 CHECK (withdrawable_credit >= 0),
			secondary_balance   NUMERIC(38, 18) NOT NULL DEFAULT 0 CHECK (secondary_balance >= 0),
			escrow              NUMERIC(38, 18) NOT NULL DEFAULT 0 CHECK (escrow >= 0),
			rounds_played       BIGINT NOT NULL DEFAULT 0,
			positions           JSONB NOT NULL DEFAULT '[]',
			quests              JSONB NOT NULL DEFAULT '{}',
			pending_round       JSONB,
			last_round          JSONB,
			pending_round_id    TEXT,
			round_deadline      TIMESTAMPTZ,
			last_round_id       TEXT,
			created_at          TIMESTAMPTZ NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_accounts_pending_round ON accounts (pending_round_id)
			WHERE pending_round_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_accounts_last_round ON accounts (last_round_id);
		CREATE INDEX IF NOT EXISTS idx_accounts_round_deadline ON accounts (round_deadline)
			WHERE pending_round_id IS NOT NULL;
	`},
	{version: 2, sql: `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id           UUID PRIMARY KEY,
			group_id     UUID NOT NULL,
			account_id   TEXT NOT NULL REFERENCES accounts (id),
			kind         TEXT NOT NULL CHECK (kind IN ('transfer', 'mint', 'burn')),
			from_balance TEXT NOT NULL,
			to_balance   TEXT NOT NULL,
			amount       NUMERIC(38, 18) NOT NULL CHECK (amount > 0),
			reason       TEXT NOT NULL,
			ref          TEXT,
			created_at   TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries (account_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_ledger_group ON ledger_entries (group_id);
	`},
	{version: 3, sql: `
		CREATE INDEX IF NOT EXISTS idx_accounts_stakers ON accounts (id) WHERE staked > 0;
	`},
}

// ExecMigrationSQL выполняет одну миграцию в транзакции.
// Если миграция уже применена — ничего не делает.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("ошибка записи версии миграции: %w", err)
	}

	return tx.Commit(ctx)
}
