// Package economy — оркестратор экономики: единственный, кто пишет в хранилище аккаунтов.
// Каждая операция (ставка, расчёт, стейк, анстейк, квест, обмен) читает аккаунт,
// считает новое состояние и проводки и пишет их одной условной записью по версии.
package economy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/config"
	"serotonyl.ru/tokenarena/internal/events"
	"serotonyl.ru/tokenarena/internal/features/account"
	"serotonyl.ru/tokenarena/internal/features/quest"
	"serotonyl.ru/tokenarena/internal/features/staking"
	"serotonyl.ru/tokenarena/internal/features/wager"
	"serotonyl.ru/tokenarena/internal/ratelimit"
)

// Options — параметры оркестратора.
type Options struct {
	Rules        wager.Rules
	RoundTimeout time.Duration
	// ConversionRate — сколько единиц secondary дают за один spendable.
	ConversionRate  decimal.Decimal
	Scale           int32
	SignupSpendable decimal.Decimal
	SignupWager     decimal.Decimal
	PenaltyPolicy   staking.PenaltyPolicy
	// AccrualTolerance — на сколько плановое начисление может прийти раньше суточного кулдауна.
	AccrualTolerance time.Duration

	ConflictRetries   int
	StoreRetries      int
	StoreRetryBackoff time.Duration

	BetLimit  int
	BetWindow time.Duration
	BatchSize int
}

// DefaultOptions — значения по умолчанию, совпадающие с дефолтами конфигурации.
func DefaultOptions() Options {
	return Options{
		Rules:             wager.DefaultRules(decimal.RequireFromString("0.05")),
		RoundTimeout:      5 * time.Second,
		ConversionRate:    decimal.RequireFromString("0.01"),
		Scale:             8,
		SignupSpendable:   decimal.NewFromInt(1000),
		SignupWager:       decimal.NewFromInt(100),
		PenaltyPolicy:     staking.PenaltyPolicyMax,
		AccrualTolerance:  time.Hour,
		ConflictRetries:   5,
		StoreRetries:      3,
		StoreRetryBackoff: 50 * time.Millisecond,
		BetLimit:          30,
		BetWindow:         time.Minute,
		BatchSize:         200,
	}
}

// OptionsFromConfig собирает параметры из конфигурации приложения.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := staking.ParsePenaltyPolicy(cfg.StakingPenaltyPolicy)
	if err != nil {
		return Options{}, err
	}
	rules := wager.Rules{
		Bot:   wager.PayoutRules{Multiplier: cfg.BotPayoutMultiplier, FeeRate: decimal.Zero},
		PvP:   wager.PayoutRules{Multiplier: cfg.PvPPayoutMultiplier, FeeRate: cfg.PlatformFeeRate},
		Scale: cfg.AmountScale,
	}
	return Options{
		Rules:             rules,
		RoundTimeout:      cfg.RoundTimeout,
		ConversionRate:    cfg.TokenToSecondaryRate,
		Scale:             cfg.AmountScale,
		SignupSpendable:   cfg.SignupSpendableGrant,
		SignupWager:       cfg.SignupWagerGrant,
		PenaltyPolicy:     policy,
		AccrualTolerance:  cfg.StakingAccrualTolerance,
		ConflictRetries:   cfg.ConflictRetries,
		StoreRetries:      cfg.StoreRetries,
		StoreRetryBackoff: cfg.StoreRetryBackoff,
		BetLimit:          cfg.BetRateLimitRequests,
		BetWindow:         cfg.BetRateLimitWindow,
		BatchSize:         cfg.JobBatchSize,
	}, nil
}

// Orchestrator собирает ставки, стейкинг и квесты в атомарные мутации аккаунта.
// Глобальной блокировки нет: аккаунты изолированы версией записи.
type Orchestrator struct {
	store     account.Store
	catalog   *staking.Catalog
	quests    *quest.Scheduler
	opponents wager.OpponentProvider
	publisher events.Publisher
	limiter   *ratelimit.Limiter
	opts      Options
	now       func() time.Time
}

// NewOrchestrator создаёт оркестратор. publisher может быть nil — тогда события пишутся в лог.
func NewOrchestrator(
	store account.Store,
	catalog *staking.Catalog,
	quests *quest.Scheduler,
	opponents wager.OpponentProvider,
	publisher events.Publisher,
	opts Options,
) (*Orchestrator, error) {
	opts.Rules.Scale = opts.Scale
	if err := opts.Rules.Validate(); err != nil {
		return nil, err
	}
	if opts.RoundTimeout <= 0 {
		return nil, fmt.Errorf("таймаут раунда должен быть > 0")
	}
	if !opts.ConversionRate.IsPositive() {
		return nil, fmt.Errorf("курс обмена должен быть > 0")
	}
	if opts.AccrualTolerance < 0 {
		return nil, fmt.Errorf("допуск начисления не может быть отрицательным")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(log.StandardLogger())
	}

	o := &Orchestrator{
		store:     store,
		catalog:   catalog,
		quests:    quests,
		opponents: opponents,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
	// Окно лимитера идёт по тем же часам, что и мутации.
	o.limiter = ratelimit.New(opts.BetLimit, opts.BetWindow, func() time.Time { return o.now() })
	return o, nil
}

// Close останавливает фоновые горутины оркестратора.
func (o *Orchestrator) Close() {
	o.limiter.Close()
}

// MutationEvent публикуется после каждой применённой мутации.
type MutationEvent struct {
	AccountID string                `json:"account_id"`
	Operation string                `json:"operation"`
	Version   int64                 `json:"version"`
	Entries   []account.LedgerEntry `json:"entries"`
	At        time.Time             `json:"at"`
}

// errNoChange — мутации нечего записывать; аккаунт остаётся как есть.
var errNoChange = errors.New("нет изменений")

type mutation func(acc *account.Account, now time.Time, j *account.Journal) error

// mutate применяет fn к свежей копии аккаунта и пишет результат условной записью.
// fn может вызываться несколько раз: при конфликте версий всё пересчитывается заново.
// Возвращает публичный снимок: ход соперника и соль незавершённого раунда скрыты.
func (o *Orchestrator) mutate(ctx context.Context, accountID, op string, fn mutation) (*account.Account, error) {
	var (
		result  *account.Account
		entries []account.LedgerEntry
		written bool
	)

	err := o.withRetry(ctx, op, func() error {
		current, err := o.store.Get(ctx, accountID)
		if err != nil {
			return err
		}

		now := o.now()
		next := current.Clone()
		j := account.NewJournal(next, now)
		if err := fn(next, now, j); err != nil {
			if errors.Is(err, errNoChange) {
				result, entries, written = current, nil, false
				return nil
			}
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		next.UpdatedAt = now

		if err := o.store.Update(ctx, next, current.Version, j.Entries()); err != nil {
			return err
		}
		result, entries, written = next, j.Entries(), true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if written {
		o.committed(ctx, op, result, entries)
	}
	return result.Public(), nil
}

// withRetry повторяет fn при конфликте версий (сразу) и при недоступности хранилища (с backoff).
// Бизнес-ошибки возвращаются без повторов.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func() error) error {
	conflicts, failures := 0, 0
	for {
		err := fn()
		switch {
		case err == nil:
			return nil

		case errors.Is(err, common.ErrConcurrentModification) && conflicts < o.opts.ConflictRetries:
			conflicts++
			log.WithFields(log.Fields{"operation": op, "attempt": conflicts}).Debug("Конфликт версий, повторяем")

		case errors.Is(err, common.ErrStoreUnavailable) && failures < o.opts.StoreRetries:
			delay := o.opts.StoreRetryBackoff << failures
			failures++
			log.WithError(err).WithFields(log.Fields{
				"operation": op,
				"attempt":   failures,
				"delay":     delay,
			}).Debug("Хранилище недоступно, повторяем")
			if err := sleepWithContext(ctx, delay); err != nil {
				return err
			}

		default:
			if errors.Is(err, common.ErrConcurrentModification) || errors.Is(err, common.ErrStoreUnavailable) {
				log.WithError(err).WithField("operation", op).Warn("Повторы исчерпаны")
			}
			return err
		}
	}
}

func (o *Orchestrator) committed(ctx context.Context, op string, acc *account.Account, entries []account.LedgerEntry) {
	minted, burned := account.HouseFlow(entries)
	log.WithFields(log.Fields{
		"account_id": acc.ID,
		"operation":  op,
		"version":    acc.Version,
		"entries":    len(entries),
		"minted":     minted.String(),
		"burned":     burned.String(),
	}).Info("Мутация аккаунта применена")

	ev := MutationEvent{
		AccountID: acc.ID,
		Operation: op,
		Version:   acc.Version,
		Entries:   entries,
		At:        acc.UpdatedAt,
	}
	if err := o.publisher.Publish(ctx, "economy."+op, ev); err != nil {
		log.WithError(err).WithField("operation", op).Warn("Не удалось опубликовать событие")
	}
}

// load читает аккаунт с повторами при недоступности хранилища.
func (o *Orchestrator) load(ctx context.Context, accountID string) (*account.Account, error) {
	var acc *account.Account
	err := o.withRetry(ctx, "get_account", func() error {
		var err error
		acc, err = o.store.Get(ctx, accountID)
		return err
	})
	return acc, err
}

// checkAmount: сумма положительная и не точнее настроенной шкалы.
func (o *Orchestrator) checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return common.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(o.opts.Scale)) {
		return fmt.Errorf("%w: больше %d знаков после запятой", common.ErrInvalidAmount, o.opts.Scale)
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
