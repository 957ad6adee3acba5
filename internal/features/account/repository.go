// Package account — repository.go хранит аккаунты в PostgreSQL.
// Балансы лежат в NUMERIC-колонках, позиции, квесты и раунды — в JSONB.
// Каждая мутация — одна транзакция: условный UPDATE по version и вставка проводок.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/quest"
	"serotonyl.ru/tokenarena/internal/features/staking"
)

// Repository реализует Store поверх pgxpool.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий аккаунтов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectAccount = `
	SELECT id, version,
	       spendable::text, staked::text, wager_credit::text,
	       withdrawable_credit::text, secondary_balance::text, escrow::text,
	       rounds_played, positions, quests, pending_round, last_round,
	       created_at, updated_at
	FROM accounts
`

// Get читает аккаунт по ID.
func (r *Repository) Get(ctx context.Context, id string) (*Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, selectAccount+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, storeError("ошибка чтения аккаунта", err)
	}
	return acc, nil
}

// FindByRound ищет аккаунт по ID незавершённого или последнего раунда.
func (r *Repository) FindByRound(ctx context.Context, roundID string) (*Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		selectAccount+` WHERE pending_round_id = $1 OR last_round_id = $1 LIMIT 1`, roundID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRoundNotFound
	}
	if err != nil {
		return nil, storeError("ошибка поиска раунда", err)
	}
	return acc, nil
}

// Create вставляет новый аккаунт и его стартовые проводки в одной транзакции.
func (r *Repository) Create(ctx context.Context, acc *Account, entries []LedgerEntry) error {
	cols, err := columnsOf(acc)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storeError("ошибка начала транзакции", err)
	}
	defer tx.Rollback(ctx)

	// Версия новой записи всегда 1
	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (
			id, version, spendable, staked, wager_credit, withdrawable_credit,
			secondary_balance, escrow, rounds_played, positions, quests,
			pending_round, last_round, pending_round_id, round_deadline, last_round_id,
			created_at, updated_at
		) VALUES (
			$1, 1, $2::text::numeric, $3::text::numeric, $4::text::numeric, $5::text::numeric,
			$6::text::numeric, $7::text::numeric, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $16
		)
	`, acc.ID, cols.spendable, cols.staked, cols.wager, cols.withdrawable,
		cols.secondary, cols.escrow, acc.RoundsPlayed, cols.positions, cols.quests,
		cols.pendingRound, cols.lastRound, cols.pendingRoundID, cols.roundDeadline, cols.lastRoundID,
		acc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrAccountExists
		}
		return storeError("ошибка создания аккаунта", err)
	}

	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storeError("ошибка фиксации транзакции", err)
	}
	acc.Version = 1
	return nil
}

// Update заменяет запись, если её версия равна expectedVersion, и дописывает проводки.
//
// Параметры:
//   - acc: новое состояние аккаунта; при успехе acc.Version увеличивается
//   - expectedVersion: версия, прочитанная перед расчётом
//   - entries: проводки мутации, пишутся в той же транзакции
//
// Возвращает:
//   - common.ErrConcurrentModification: запись уже изменил кто-то другой
//   - common.ErrStoreUnavailable: база недоступна, можно повторить
func (r *Repository) Update(ctx context.Context, acc *Account, expectedVersion int64, entries []LedgerEntry) error {
	// Готовим значения колонок до транзакции
	cols, err := columnsOf(acc)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storeError("ошибка начала транзакции", err)
	}
	defer tx.Rollback(ctx)

	// Условный UPDATE: не совпала версия — ни одной строки не изменится
	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET
			version = version + 1,
			spendable = $3::text::numeric,
			staked = $4::text::numeric,
			wager_credit = $5::text::numeric,
			withdrawable_credit = $6::text::numeric,
			secondary_balance = $7::text::numeric,
			escrow = $8::text::numeric,
			rounds_played = $9,
			positions = $10,
			quests = $11,
			pending_round = $12,
			last_round = $13,
			pending_round_id = $14,
			round_deadline = $15,
			last_round_id = $16,
			updated_at = $17
		WHERE id = $1 AND version = $2
	`, acc.ID, expectedVersion, cols.spendable, cols.staked, cols.wager, cols.withdrawable,
		cols.secondary, cols.escrow, acc.RoundsPlayed, cols.positions, cols.quests,
		cols.pendingRound, cols.lastRound, cols.pendingRoundID, cols.roundDeadline, cols.lastRoundID,
		acc.UpdatedAt)
	if err != nil {
		return storeError("ошибка обновления аккаунта", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrConcurrentModification
	}

	// Проводки пишутся вместе с аккаунтом или не пишутся вовсе
	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storeError("ошибка фиксации транзакции", err)
	}
	acc.Version = expectedVersion + 1
	return nil
}

// ListExpiredRounds — аккаунты с просроченным незавершённым раундом, старые первыми.
func (r *Repository) ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM accounts
		WHERE pending_round_id IS NOT NULL AND round_deadline <= $1
		ORDER BY round_deadline
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, storeError("ошибка поиска просроченных раундов", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeError("ошибка чтения просроченных раундов", err)
	}
	return ids, nil
}

// ListStakers — аккаунты с позициями, постранично по ID.
func (r *Repository) ListStakers(ctx context.Context, afterID string, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM accounts
		WHERE staked > 0 AND id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, storeError("ошибка поиска стейкеров", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeError("ошибка чтения стейкеров", err)
	}
	return ids, nil
}

// insertEntries пишет проводки одним батчем внутри транзакции tx.
func insertEntries(ctx context.Context, tx pgx.Tx, entries []LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO ledger_entries (id, group_id, account_id, kind, from_balance, to_balance, amount, reason, ref, created_at)
			VALUES ($1::text::uuid, $2::text::uuid, $3, $4, $5, $6, $7::text::numeric, $8, $9, $10)
		`, e.ID, e.GroupID, e.AccountID, string(e.Kind), string(e.From), string(e.To),
			e.Amount.String(), string(e.Reason), e.Ref, e.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return storeError("ошибка записи проводок", err)
	}
	return nil
}

// accountColumns — значения колонок, подготовленные к передаче в pgx.
type accountColumns struct {
	spendable, staked, wager, withdrawable, secondary, escrow string

	positions, quests       []byte
	pendingRound, lastRound any
	pendingRoundID          *string
	roundDeadline           *time.Time
	lastRoundID             *string
}

func columnsOf(acc *Account) (*accountColumns, error) {
	c := &accountColumns{
		spendable:    acc.Spendable.String(),
		staked:       acc.Staked.String(),
		wager:        acc.WagerCredit.String(),
		withdrawable: acc.WithdrawableCredit.String(),
		secondary:    acc.SecondaryBalance.String(),
		escrow:       acc.Escrow.String(),
	}

	var err error
	positions := acc.Positions
	if positions == nil {
		positions = []staking.Position{}
	}
	quests := acc.Quests
	if quests == nil {
		quests = map[quest.Kind]*quest.State{}
	}
	if c.positions, err = json.Marshal(positions); err != nil {
		return nil, fmt.Errorf("ошибка сериализации позиций: %w", err)
	}
	if c.quests, err = json.Marshal(quests); err != nil {
		return nil, fmt.Errorf("ошибка сериализации квестов: %w", err)
	}
	if acc.PendingRound != nil {
		b, err := json.Marshal(acc.PendingRound)
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации раунда: %w", err)
		}
		c.pendingRound = b
		c.pendingRoundID = &acc.PendingRound.ID
		c.roundDeadline = &acc.PendingRound.Deadline
	}
	if acc.LastRound != nil {
		b, err := json.Marshal(acc.LastRound)
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации раунда: %w", err)
		}
		c.lastRound = b
		c.lastRoundID = &acc.LastRound.ID
	}
	return c, nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		acc                                                       Account
		spendable, staked, wager, withdrawable, secondary, escrow string
		positions, quests, pendingRound, lastRound                []byte
	)
	err := row.Scan(
		&acc.ID, &acc.Version,
		&spendable, &staked, &wager, &withdrawable, &secondary, &escrow,
		&acc.RoundsPlayed, &positions, &quests, &pendingRound, &lastRound,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Суммы приходят текстом: NUMERIC -> decimal без потери точности
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{spendable, &acc.Spendable},
		{staked, &acc.Staked},
		{wager, &acc.WagerCredit},
		{withdrawable, &acc.WithdrawableCredit},
		{secondary, &acc.SecondaryBalance},
		{escrow, &acc.Escrow},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("некорректная сумма %q: %w", f.raw, err)
		}
		*f.dst = v
	}

	if err := json.Unmarshal(positions, &acc.Positions); err != nil {
		return nil, fmt.Errorf("ошибка чтения позиций: %w", err)
	}
	if err := json.Unmarshal(quests, &acc.Quests); err != nil {
		return nil, fmt.Errorf("ошибка чтения квестов: %w", err)
	}
	if len(pendingRound) > 0 {
		if err := json.Unmarshal(pendingRound, &acc.PendingRound); err != nil {
			return nil, fmt.Errorf("ошибка чтения раунда: %w", err)
		}
	}
	if len(lastRound) > 0 {
		if err := json.Unmarshal(lastRound, &acc.LastRound); err != nil {
			return nil, fmt.Errorf("ошибка чтения раунда: %w", err)
		}
	}
	return &acc, nil
}

// storeError переводит ошибку драйвера в таксономию хранилища:
// конфликты сериализации — в ErrConcurrentModification, нарушение CHECK — в
// ErrInvariantViolation, остальное — в ErrStoreUnavailable.
func storeError(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%s: %w", msg, common.ErrConcurrentModification)
		case "23514":
			return fmt.Errorf("%s: %w: %s", msg, common.ErrInvariantViolation, pgErr.Message)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, common.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
