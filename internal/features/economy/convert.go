package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/account"
)

// ConversionReceipt — итог обмена.
type ConversionReceipt struct {
	From     account.Balance
	To       account.Balance
	Debited  decimal.Decimal
	Credited decimal.Decimal
	Account  *account.Account
}

// Convert меняет amount с баланса from на баланс to по фиксированному курсу.
//
//	spendable    -> secondary  amount * rate (сжигание + эмиссия)
//	secondary    -> spendable  amount / rate (сжигание + эмиссия)
//	withdrawable -> spendable  1:1
//	spendable    -> wager      1:1
//
// Зачисление округляется вниз до шкалы: обмен туда и обратно не даёт прибыли.
func (o *Orchestrator) Convert(ctx context.Context, accountID string, from, to account.Balance, amount decimal.Decimal) (*ConversionReceipt, error) {
	if err := o.checkAmount(amount); err != nil {
		return nil, err
	}

	credited := amount
	direct := false
	switch {
	case from == account.BalanceSpendable && to == account.BalanceSecondary:
		credited = amount.Mul(o.opts.ConversionRate).Truncate(o.opts.Scale)
	case from == account.BalanceSecondary && to == account.BalanceSpendable:
		credited = amount.Div(o.opts.ConversionRate).Truncate(o.opts.Scale)
	case from == account.BalanceWithdrawable && to == account.BalanceSpendable,
		from == account.BalanceSpendable && to == account.BalanceWager:
		direct = true
	default:
		return nil, fmt.Errorf("%w: %s -> %s", common.ErrUnsupportedConversion, from, to)
	}
	if !credited.IsPositive() {
		return nil, fmt.Errorf("%w: сумма слишком мала для обмена", common.ErrInvalidAmount)
	}

	acc, err := o.mutate(ctx, accountID, "convert", func(acc *account.Account, _ time.Time, j *account.Journal) error {
		if direct {
			return j.Transfer(from, to, amount, account.ReasonConvert, "")
		}
		if err := j.Burn(from, amount, account.ReasonConvert, ""); err != nil {
			return err
		}
		return j.Mint(to, credited, account.ReasonConvert, "")
	})
	if err != nil {
		return nil, err
	}
	return &ConversionReceipt{From: from, To: to, Debited: amount, Credited: credited, Account: acc}, nil
}
