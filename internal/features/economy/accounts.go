package economy

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/tokenarena/internal/features/account"
)

// OpenAccount создаёт аккаунт и начисляет стартовые гранты в spendable и wagerCredit.
// Гранты проходят через журнал как эмиссия с причиной signup_grant.
func (o *Orchestrator) OpenAccount(ctx context.Context, accountID string) (*account.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("пустой ID аккаунта")
	}

	now := o.now()
	acc := account.New(accountID, now)
	j := account.NewJournal(acc, now)
	if err := j.Mint(account.BalanceSpendable, o.opts.SignupSpendable, account.ReasonSignupGrant, ""); err != nil {
		return nil, err
	}
	if err := j.Mint(account.BalanceWager, o.opts.SignupWager, account.ReasonSignupGrant, ""); err != nil {
		return nil, err
	}

	err := o.withRetry(ctx, "open_account", func() error {
		return o.store.Create(ctx, acc, j.Entries())
	})
	if err != nil {
		return nil, err
	}

	o.committed(ctx, "open_account", acc, j.Entries())
	return acc.Public(), nil
}

// Account возвращает текущее состояние аккаунта без скрытых полей раунда.
// Просроченный раунд при этом рассчитывается автоматически, так что ставка не висит в эскроу.
func (o *Orchestrator) Account(ctx context.Context, accountID string) (*account.Account, error) {
	acc, err := o.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.PendingRound == nil || !acc.PendingRound.Expired(o.now()) {
		return acc.Public(), nil
	}

	settled, _, err := o.settleExpired(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return settled, nil
}
