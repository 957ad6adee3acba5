package economy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/account"
	"serotonyl.ru/tokenarena/internal/features/quest"
	"serotonyl.ru/tokenarena/internal/features/staking"
)

// UnstakeReceipt — итог закрытия всех позиций.
type UnstakeReceipt struct {
	staking.UnstakeResult
	Account *account.Account
}

// AccrualReport — итог планового начисления наград за стейкинг.
type AccrualReport struct {
	Accounts int
	Credited int
	Skipped  int
	Total    decimal.Decimal
}

// OpenStake переносит amount из spendable в staked и открывает позицию по пакету.
func (o *Orchestrator) OpenStake(ctx context.Context, accountID string, amount decimal.Decimal, packageID string) (*account.Account, error) {
	if err := o.checkAmount(amount); err != nil {
		return nil, err
	}
	pkg, err := o.catalog.Get(packageID)
	if err != nil {
		return nil, err
	}

	return o.mutate(ctx, accountID, "stake", func(acc *account.Account, now time.Time, j *account.Journal) error {
		pos, err := staking.NewPosition(amount, pkg, now)
		if err != nil {
			return err
		}
		if err := j.Transfer(account.BalanceSpendable, account.BalanceStaked, amount, account.ReasonStake, pos.ID); err != nil {
			return err
		}
		acc.Positions = append(acc.Positions, pos)
		return nil
	})
}

// CloseStake закрывает все позиции сразу. Досрочные платят штраф, он сжигается.
func (o *Orchestrator) CloseStake(ctx context.Context, accountID string) (*UnstakeReceipt, error) {
	var res staking.UnstakeResult
	acc, err := o.mutate(ctx, accountID, "unstake", func(acc *account.Account, now time.Time, j *account.Journal) error {
		if len(acc.Positions) == 0 {
			return common.ErrNothingStaked
		}
		res = staking.Unstake(acc.Positions, now, o.opts.PenaltyPolicy, o.opts.Scale)

		if err := j.Transfer(account.BalanceStaked, account.BalanceSpendable, res.Returned, account.ReasonUnstake, ""); err != nil {
			return err
		}
		if err := j.Burn(account.BalanceStaked, res.Penalty, account.ReasonEarlyExitPenalty, ""); err != nil {
			return err
		}
		acc.Positions = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &UnstakeReceipt{UnstakeResult: res, Account: acc}, nil
}

// StakingSummary — сводка позиций аккаунта на текущий момент.
func (o *Orchestrator) StakingSummary(ctx context.Context, accountID string) (staking.Summary, error) {
	acc, err := o.load(ctx, accountID)
	if err != nil {
		return staking.Summary{}, err
	}
	return staking.Summarize(acc.Positions, o.now(), o.opts.PenaltyPolicy, o.opts.Scale), nil
}

// AccrueStakingRewards начисляет ежедневную награду всем стейкерам через квест
// daily_staking_reward. Кулдаун квеста не даёт начислить дважды за сутки,
// поэтому повторный запуск безопасен. Кулдаун сокращается на AccrualTolerance,
// чтобы запуск cron чуть раньше вчерашнего не пропускал день.
func (o *Orchestrator) AccrueStakingRewards(ctx context.Context) (AccrualReport, error) {
	report := AccrualReport{Total: decimal.Zero}
	var errs []error

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var ids []string
		err := o.withRetry(ctx, "list_stakers", func() error {
			var err error
			ids, err = o.store.ListStakers(ctx, afterID, o.opts.BatchSize)
			return err
		})
		if err != nil {
			return report, err
		}

		for _, id := range ids {
			report.Accounts++
			receipt, err := o.claimQuest(ctx, id, quest.KindDailyStakingReward, o.opts.AccrualTolerance)
			switch {
			case errors.Is(err, common.ErrNotEligible):
				report.Skipped++
			case err != nil:
				errs = append(errs, fmt.Errorf("аккаунт %s: %w", id, err))
			default:
				report.Credited++
				report.Total = report.Total.Add(receipt.Reward)
			}
		}

		if len(ids) < o.opts.BatchSize {
			break
		}
		afterID = ids[len(ids)-1]
	}

	log.WithFields(log.Fields{
		"accounts": report.Accounts,
		"credited": report.Credited,
		"skipped":  report.Skipped,
		"total":    report.Total.String(),
	}).Info("Начисление наград за стейкинг завершено")
	return report, errors.Join(errs...)
}
