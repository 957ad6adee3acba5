package wager

import (
	"fmt"

	"github.com/shopspring/decimal"

	"serotonyl.ru/tokenarena/internal/common"
)

// beats[x] — ход, который x побеждает.
var beats = map[Move]Move{
	MoveRock:     MoveScissors,
	MoveScissors: MovePaper,
	MovePaper:    MoveRock,
}

// Resolve определяет исход для игрока по циклическому правилу:
// камень бьёт ножницы, ножницы бьют бумагу, бумага бьёт камень.
func Resolve(player, opponent Move) Outcome {
	if player == opponent {
		return OutcomeDraw
	}
	if beats[player] == opponent {
		return OutcomeWin
	}
	return OutcomeLose
}

// PayoutRules — параметры выплаты для одного режима.
// При победе игрок получает Bet * Multiplier за вычетом комиссии FeeRate с этой суммы.
type PayoutRules struct {
	Multiplier decimal.Decimal
	FeeRate    decimal.Decimal
}

// Rules — правила выплат по режимам и точность округления сумм.
type Rules struct {
	Bot   PayoutRules
	PvP   PayoutRules
	Scale int32
}

// DefaultRules: против бота ставка возвращается один к одному без комиссии,
// против игрока — удвоенная ставка минус комиссия платформы.
func DefaultRules(platformFeeRate decimal.Decimal) Rules {
	return Rules{
		Bot:   PayoutRules{Multiplier: decimal.NewFromInt(1), FeeRate: decimal.Zero},
		PvP:   PayoutRules{Multiplier: decimal.NewFromInt(2), FeeRate: platformFeeRate},
		Scale: 8,
	}
}

// For возвращает правила выплат для режима.
func (r Rules) For(mode Mode) (PayoutRules, error) {
	switch mode {
	case ModeBot:
		return r.Bot, nil
	case ModePvP:
		return r.PvP, nil
	}
	return PayoutRules{}, fmt.Errorf("%w: %q", common.ErrInvalidMode, mode)
}

// Validate проверяет, что множители положительные, а комиссии в [0, 1).
func (r Rules) Validate() error {
	for mode, p := range map[Mode]PayoutRules{ModeBot: r.Bot, ModePvP: r.PvP} {
		if !p.Multiplier.IsPositive() {
			return fmt.Errorf("режим %s: множитель выплаты должен быть > 0", mode)
		}
		if p.FeeRate.IsNegative() || p.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fmt.Errorf("режим %s: комиссия должна быть в диапазоне [0, 1)", mode)
		}
	}
	return nil
}

// Settlement — движение средств из эскроу раунда.
//
// Эскроу (зарезервированная ставка) после расчёта всегда пуст:
//
//	Bet + Minted - Burned - Fee - Payout - Refund = 0
type Settlement struct {
	Outcome Outcome
	// Minted — ставка симулированного соперника или доплата дома при множителе > 1.
	Minted decimal.Decimal
	// Burned — проигранная ставка (или недоплата при множителе < 1), уходит дому.
	Burned decimal.Decimal
	// Fee — комиссия платформы, сжигается.
	Fee decimal.Decimal
	// Payout — зачисляется в withdrawableCredit.
	Payout decimal.Decimal
	// Refund — возврат ставки в wagerCredit при ничьей.
	Refund decimal.Decimal
}

// Settle считает исход и движение средств для ставки bet.
func Settle(bet decimal.Decimal, player, opponent Move, rules PayoutRules, scale int32) Settlement {
	s := Settlement{
		Outcome: Resolve(player, opponent),
		Minted:  decimal.Zero,
		Burned:  decimal.Zero,
		Fee:     decimal.Zero,
		Payout:  decimal.Zero,
		Refund:  decimal.Zero,
	}

	switch s.Outcome {
	case OutcomeDraw:
		s.Refund = bet
	case OutcomeLose:
		s.Burned = bet
	case OutcomeWin:
		gross := bet.Mul(rules.Multiplier).Round(scale)
		if gross.GreaterThan(bet) {
			s.Minted = gross.Sub(bet)
		} else {
			s.Burned = bet.Sub(gross)
		}
		s.Fee = gross.Mul(rules.FeeRate).Round(scale)
		s.Payout = gross.Sub(s.Fee)
	}
	return s
}
