package economy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/account"
	"serotonyl.ru/tokenarena/internal/features/wager"
)

// BetTicket — ответ на ставку. Ход соперника скрыт за Commitment
// и раскрывается солью после расчёта.
type BetTicket struct {
	RoundID    string
	Mode       wager.Mode
	Bet        decimal.Decimal
	Deadline   time.Time
	Opponent   wager.Opponent
	Commitment string
	Account    *account.Account
}

// RoundResult — рассчитанный раунд и аккаунт после расчёта.
type RoundResult struct {
	Round   *wager.Round
	Account *account.Account
}

// PlaceBet резервирует ставку из wagerCredit в эскроу и открывает раунд.
// На аккаунте может быть только один незавершённый раунд; просроченный
// рассчитывается автоматически в той же записи.
func (o *Orchestrator) PlaceBet(ctx context.Context, accountID string, amount decimal.Decimal, mode wager.Mode) (*BetTicket, error) {
	if err := o.checkAmount(amount); err != nil {
		return nil, err
	}
	if _, err := o.opts.Rules.For(mode); err != nil {
		return nil, err
	}
	if !o.limiter.Allow(accountID) {
		return nil, common.ErrRateLimited
	}

	ticket, err := o.placeBet(ctx, accountID, amount, mode)
	if err != nil {
		// Несостоявшаяся ставка слот лимита не расходует.
		o.limiter.Release(accountID)
		return nil, err
	}
	return ticket, nil
}

func (o *Orchestrator) placeBet(ctx context.Context, accountID string, amount decimal.Decimal, mode wager.Mode) (*BetTicket, error) {
	opponent, err := o.opponents.FindOpponent(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("не удалось найти соперника: %w", err)
	}
	opponentMove, err := o.opponents.DrawMove(ctx)
	if err != nil {
		return nil, fmt.Errorf("не удалось выбрать ход соперника: %w", err)
	}
	salt, err := wager.NewSalt()
	if err != nil {
		return nil, err
	}
	roundID := uuid.NewString()
	commitment := wager.Commit(roundID, opponentMove, salt)

	var round *wager.Round
	acc, err := o.mutate(ctx, accountID, "place_bet", func(acc *account.Account, now time.Time, j *account.Journal) error {
		if p := acc.PendingRound; p != nil {
			if !p.Expired(now) {
				return common.ErrRoundInProgress
			}
			if _, err := o.autoSettle(ctx, acc, j, now); err != nil {
				return err
			}
		}

		if err := j.Transfer(account.BalanceWager, account.BalanceEscrow, amount, account.ReasonBetReserve, roundID); err != nil {
			return err
		}
		round = &wager.Round{
			ID:           roundID,
			AccountID:    acc.ID,
			Mode:         mode,
			Bet:          amount,
			PlacedAt:     now,
			Deadline:     now.Add(o.opts.RoundTimeout),
			Opponent:     opponent,
			OpponentMove: opponentMove,
			Salt:         salt,
			Commitment:   commitment,
			Payout:       decimal.Zero,
			Fee:          decimal.Zero,
		}
		acc.PendingRound = round
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &BetTicket{
		RoundID:    round.ID,
		Mode:       round.Mode,
		Bet:        round.Bet,
		Deadline:   round.Deadline,
		Opponent:   round.Opponent,
		Commitment: round.Commitment,
		Account:    acc,
	}, nil
}

// SettleBet рассчитывает раунд ходом игрока. Если дедлайн прошёл,
// вместо переданного хода используется случайный (AutoSettled).
func (o *Orchestrator) SettleBet(ctx context.Context, roundID string, move wager.Move) (*RoundResult, error) {
	if !move.Valid() {
		return nil, common.ErrInvalidMove
	}

	var owner *account.Account
	err := o.withRetry(ctx, "find_round", func() error {
		var err error
		owner, err = o.store.FindByRound(ctx, roundID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var round *wager.Round
	acc, err := o.mutate(ctx, owner.ID, "settle_bet", func(acc *account.Account, now time.Time, j *account.Journal) error {
		p := acc.PendingRound
		if p == nil || p.ID != roundID {
			if last := acc.LastRound; last != nil && last.ID == roundID && last.Settled() {
				return common.ErrRoundAlreadySettled
			}
			return common.ErrRoundNotFound
		}

		var err error
		if p.Expired(now) {
			round, err = o.autoSettle(ctx, acc, j, now)
		} else {
			round, err = o.settleRound(acc, j, move, false, now)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &RoundResult{Round: round.Clone(), Account: acc}, nil
}

// SettleExpiredRounds рассчитывает просроченные раунды брошенных аккаунтов.
// Возвращает число рассчитанных раундов.
func (o *Orchestrator) SettleExpiredRounds(ctx context.Context) (int, error) {
	var ids []string
	err := o.withRetry(ctx, "list_expired_rounds", func() error {
		var err error
		ids, err = o.store.ListExpiredRounds(ctx, o.now(), o.opts.BatchSize)
		return err
	})
	if err != nil {
		return 0, err
	}

	settled := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, ok, err := o.settleExpired(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("аккаунт %s: %w", id, err))
			continue
		}
		if ok {
			settled++
		}
	}

	if settled > 0 {
		log.WithField("settled", settled).Info("Просроченные раунды рассчитаны")
	}
	return settled, errors.Join(errs...)
}

// settleExpired рассчитывает раунд аккаунта, если он просрочен. ok = раунд был рассчитан.
func (o *Orchestrator) settleExpired(ctx context.Context, accountID string) (*account.Account, bool, error) {
	ok := false
	acc, err := o.mutate(ctx, accountID, "auto_settle", func(acc *account.Account, now time.Time, j *account.Journal) error {
		ok = false
		if acc.PendingRound == nil || !acc.PendingRound.Expired(now) {
			return errNoChange
		}
		if _, err := o.autoSettle(ctx, acc, j, now); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return acc, ok, err
}

// autoSettle рассчитывает незавершённый раунд случайным ходом за игрока.
func (o *Orchestrator) autoSettle(ctx context.Context, acc *account.Account, j *account.Journal, now time.Time) (*wager.Round, error) {
	move, err := o.opponents.DrawMove(ctx)
	if err != nil {
		return nil, fmt.Errorf("не удалось выбрать ход по таймауту: %w", err)
	}
	return o.settleRound(acc, j, move, true, now)
}

// settleRound проводит выплату из эскроу и переносит раунд в LastRound.
// После расчёта эскроу пуст.
func (o *Orchestrator) settleRound(acc *account.Account, j *account.Journal, move wager.Move, auto bool, now time.Time) (*wager.Round, error) {
	round := acc.PendingRound
	rules, err := o.opts.Rules.For(round.Mode)
	if err != nil {
		return nil, err
	}
	s := wager.Settle(round.Bet, move, round.OpponentMove, rules, o.opts.Scale)

	ref := round.ID
	steps := []func() error{
		func() error {
			return j.Mint(account.BalanceEscrow, s.Minted, account.ReasonOpponentStake, ref)
		},
		func() error { return j.Burn(account.BalanceEscrow, s.Burned, account.ReasonBetLoss, ref) },
		func() error { return j.Burn(account.BalanceEscrow, s.Fee, account.ReasonPlatformFee, ref) },
		func() error {
			return j.Transfer(account.BalanceEscrow, account.BalanceWithdrawable, s.Payout, account.ReasonBetWin, ref)
		},
		func() error {
			return j.Transfer(account.BalanceEscrow, account.BalanceWager, s.Refund, account.ReasonBetDraw, ref)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("расчёт раунда %s: %w", ref, err)
		}
	}

	settledAt := now
	round.PlayerMove = move
	round.Outcome = s.Outcome
	round.Payout = s.Payout
	round.Fee = s.Fee
	round.SettledAt = &settledAt
	round.AutoSettled = auto

	acc.LastRound = round
	acc.PendingRound = nil
	acc.RoundsPlayed++
	return round, nil
}
