// Package sqlite — встроенное хранилище аккаунтов на SQLite для одиночного
// процесса и локальной разработки. Реализует account.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/account"
)

// Store хранит аккаунты в одном файле SQLite (или в памяти для ":memory:").
type Store struct {
	logger *logrus.Logger
	db     *sql.DB
}

// Open открывает базу и создаёт таблицы. Пул ограничен одним соединением:
// SQLite всё равно пишет последовательно, а ":memory:" живёт в рамках соединения.
func Open(ctx context.Context, logger *logrus.Logger, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}
	if _, err := db.ExecContext(ctx, createIndexes); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать индексы: %w", err)
	}

	logger.WithField("dsn", dsn).Info("Хранилище SQLite готово")
	return &Store{logger: logger, db: db}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.WithError(err).Error("Не удалось закрыть SQLite")
		return err
	}
	s.logger.Info("Соединение с SQLite закрыто")
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*account.Account, error) {
	acc, err := s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT version, doc FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, storeError("ошибка чтения аккаунта", err)
	}
	return acc, nil
}

func (s *Store) FindByRound(ctx context.Context, roundID string) (*account.Account, error) {
	acc, err := s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT version, doc FROM accounts WHERE pending_round_id = ? OR last_round_id = ? LIMIT 1`,
		roundID, roundID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrRoundNotFound
	}
	if err != nil {
		return nil, storeError("ошибка поиска раунда", err)
	}
	return acc, nil
}

func (s *Store) Create(ctx context.Context, acc *account.Account, entries []account.LedgerEntry) error {
	acc.Version = 1
	row, err := rowOf(acc)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("ошибка начала транзакции", err)
	}
	defer tx.Rollback()

	// positions — число позиций, по нему ищутся стейкеры
	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, version, doc, pending_round_id, round_deadline, last_round_id, positions)
		VALUES (?, 1, ?, ?, ?, ?, ?)
	`, acc.ID, row.doc, row.pendingRoundID, row.roundDeadline, row.lastRoundID, len(acc.Positions))
	if err != nil {
		acc.Version = 0
		if isConstraint(err) {
			return common.ErrAccountExists
		}
		return storeError("ошибка создания аккаунта", err)
	}
	if err := insertEntries(ctx, tx, entries); err != nil {
		acc.Version = 0
		return err
	}
	if err := tx.Commit(); err != nil {
		acc.Version = 0
		return storeError("ошибка фиксации транзакции", err)
	}

	s.logger.WithField("account", acc.ID).Debug("Аккаунт создан")
	return nil
}

// Update — условная запись документа аккаунта по версии.
//
// Параметры:
//   - acc: новое состояние; Version обновляется только после фиксации
//   - expectedVersion: версия, с которой начинался расчёт
//   - entries: проводки, пишутся в той же транзакции
func (s *Store) Update(ctx context.Context, acc *account.Account, expectedVersion int64, entries []account.LedgerEntry) error {
	// Документ пишется уже с новой версией
	next := acc.Clone()
	next.Version = expectedVersion + 1
	row, err := rowOf(next)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("ошибка начала транзакции", err)
	}
	defer tx.Rollback()

	// Версия не совпала — ни одной строки не изменится
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET version = version + 1, doc = ?, pending_round_id = ?, round_deadline = ?, last_round_id = ?, positions = ?
		WHERE id = ? AND version = ?
	`, row.doc, row.pendingRoundID, row.roundDeadline, row.lastRoundID, len(next.Positions), acc.ID, expectedVersion)
	if err != nil {
		return storeError("ошибка обновления аккаунта", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("ошибка обновления аккаунта", err)
	}
	if n == 0 {
		return common.ErrConcurrentModification
	}
	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeError("ошибка фиксации транзакции", err)
	}

	acc.Version = next.Version
	return nil
}

func (s *Store) ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]string, error) {
	return s.ids(ctx, `
		SELECT id FROM accounts
		WHERE pending_round_id IS NOT NULL AND round_deadline <= ?
		ORDER BY round_deadline LIMIT ?
	`, before.UnixNano(), limit)
}

func (s *Store) ListStakers(ctx context.Context, afterID string, limit int) ([]string, error) {
	return s.ids(ctx, `
		SELECT id FROM accounts WHERE positions > 0 AND id > ? ORDER BY id LIMIT ?
	`, afterID, limit)
}

// Entries возвращает проводки аккаунта в порядке записи.
func (s *Store) Entries(ctx context.Context, accountID string) ([]account.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, account_id, kind, from_balance, to_balance, amount, reason, ref, created_at
		FROM ledger_entries WHERE account_id = ? ORDER BY rowid
	`, accountID)
	if err != nil {
		return nil, storeError("ошибка чтения проводок", err)
	}
	defer rows.Close()

	var out []account.LedgerEntry
	for rows.Next() {
		var (
			e         account.LedgerEntry
			amount    string
			ref       sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.GroupID, &e.AccountID, &e.Kind, &e.From, &e.To, &amount, &e.Reason, &ref, &createdAt); err != nil {
			return nil, storeError("ошибка чтения проводки", err)
		}
		if err := e.Amount.UnmarshalText([]byte(amount)); err != nil {
			return nil, fmt.Errorf("некорректная сумма проводки %s: %w", e.ID, err)
		}
		e.Ref = ref.String
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("ошибка чтения проводок", err)
	}
	return out, nil
}

func (s *Store) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("ошибка выборки аккаунтов", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeError("ошибка выборки аккаунтов", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("ошибка выборки аккаунтов", err)
	}
	return ids, nil
}

func (s *Store) scanOne(row *sql.Row) (*account.Account, error) {
	var (
		version int64
		doc     string
	)
	if err := row.Scan(&version, &doc); err != nil {
		return nil, err
	}
	var acc account.Account
	if err := json.Unmarshal([]byte(doc), &acc); err != nil {
		return nil, fmt.Errorf("повреждённая запись аккаунта: %w", err)
	}
	acc.Version = version
	return &acc, nil
}

type accountRow struct {
	doc            string
	pendingRoundID sql.NullString
	roundDeadline  sql.NullInt64
	lastRoundID    sql.NullString
}

func rowOf(acc *account.Account) (*accountRow, error) {
	b, err := json.Marshal(acc)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации аккаунта: %w", err)
	}
	r := &accountRow{doc: string(b)}
	if acc.PendingRound != nil {
		r.pendingRoundID = sql.NullString{String: acc.PendingRound.ID, Valid: true}
		r.roundDeadline = sql.NullInt64{Int64: acc.PendingRound.Deadline.UnixNano(), Valid: true}
	}
	if acc.LastRound != nil {
		r.lastRoundID = sql.NullString{String: acc.LastRound.ID, Valid: true}
	}
	return r, nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, entries []account.LedgerEntry) error {
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, group_id, account_id, kind, from_balance, to_balance, amount, reason, ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.GroupID, e.AccountID, string(e.Kind), string(e.From), string(e.To),
			e.Amount.String(), string(e.Reason), e.Ref, e.CreatedAt.UnixNano())
		if err != nil {
			return storeError("ошибка записи проводки", err)
		}
	}
	return nil
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// storeError: BUSY/LOCKED и прочие сбои драйвера — ErrStoreUnavailable,
// отмену контекста отдаём как есть.
func storeError(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, common.ErrStoreUnavailable, err)
}
