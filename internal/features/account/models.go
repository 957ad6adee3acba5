// Package account описывает запись аккаунта, журнал движений средств
// и контракт хранилища, через которое оркестратор читает и пишет аккаунты.
package account

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/quest"
	"serotonyl.ru/tokenarena/internal/features/staking"
	"serotonyl.ru/tokenarena/internal/features/wager"
)

// Balance — имя баланса в журнале.
type Balance string

const (
	BalanceSpendable    Balance = "spendable"
	BalanceStaked       Balance = "staked"
	BalanceWager        Balance = "wager_credit"
	BalanceWithdrawable Balance = "withdrawable_credit"
	BalanceSecondary    Balance = "secondary"
	// BalanceEscrow — ставка незавершённого раунда.
	BalanceEscrow Balance = "escrow"
	// BalanceHouse — условный счёт дома: источник эмиссии и приёмник сжиганий.
	BalanceHouse Balance = "house"
)

// ParseBalance разбирает имя баланса (без house).
func ParseBalance(raw string) (Balance, error) {
	switch b := Balance(raw); b {
	case BalanceSpendable, BalanceStaked, BalanceWager, BalanceWithdrawable, BalanceSecondary, BalanceEscrow:
		return b, nil
	}
	return "", fmt.Errorf("неизвестный баланс %q", raw)
}

// Account — запись одного пользователя. Единица изоляции: любая мутация
// пишется целиком одной условной записью по Version.
type Account struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`

	Spendable          decimal.Decimal `json:"spendable"`
	Staked             decimal.Decimal `json:"staked"`
	WagerCredit        decimal.Decimal `json:"wager_credit"`
	WithdrawableCredit decimal.Decimal `json:"withdrawable_credit"`
	SecondaryBalance   decimal.Decimal `json:"secondary_balance"`
	Escrow             decimal.Decimal `json:"escrow"`

	Positions    []staking.Position          `json:"positions"`
	Quests       map[quest.Kind]*quest.State `json:"quests"`
	PendingRound *wager.Round                `json:"pending_round,omitempty"`
	LastRound    *wager.Round                `json:"last_round,omitempty"`
	RoundsPlayed int64                       `json:"rounds_played"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New создаёт пустой аккаунт. Version = 0 до первой записи в хранилище.
func New(id string, now time.Time) *Account {
	return &Account{
		ID:                 id,
		Spendable:          decimal.Zero,
		Staked:             decimal.Zero,
		WagerCredit:        decimal.Zero,
		WithdrawableCredit: decimal.Zero,
		SecondaryBalance:   decimal.Zero,
		Escrow:             decimal.Zero,
		Quests:             make(map[quest.Kind]*quest.State),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Clone делает глубокую копию: изменения копии не видны хранилищу и другим читателям.
func (a *Account) Clone() *Account {
	c := *a
	if a.Positions != nil {
		c.Positions = append([]staking.Position(nil), a.Positions...)
	}
	c.Quests = make(map[quest.Kind]*quest.State, len(a.Quests))
	for k, st := range a.Quests {
		c.Quests[k] = st.Clone()
	}
	c.PendingRound = a.PendingRound.Clone()
	c.LastRound = a.LastRound.Clone()
	return &c
}

// Public — копия для выдачи наружу. Хранилища пишут полную запись,
// а у незавершённого раунда в Public скрыты ход соперника и соль.
func (a *Account) Public() *Account {
	c := a.Clone()
	c.PendingRound = c.PendingRound.Sealed()
	return c
}

// Get возвращает значение баланса по имени.
func (a *Account) Get(b Balance) (decimal.Decimal, error) {
	p, err := a.field(b)
	if err != nil {
		return decimal.Zero, err
	}
	return *p, nil
}

func (a *Account) field(b Balance) (*decimal.Decimal, error) {
	switch b {
	case BalanceSpendable:
		return &a.Spendable, nil
	case BalanceStaked:
		return &a.Staked, nil
	case BalanceWager:
		return &a.WagerCredit, nil
	case BalanceWithdrawable:
		return &a.WithdrawableCredit, nil
	case BalanceSecondary:
		return &a.SecondaryBalance, nil
	case BalanceEscrow:
		return &a.Escrow, nil
	}
	return nil, fmt.Errorf("баланс %q не принадлежит аккаунту", b)
}

// Total — сумма всех балансов аккаунта (включая эскроу).
func (a *Account) Total() decimal.Decimal {
	return a.Spendable.Add(a.Staked).Add(a.WagerCredit).Add(a.WithdrawableCredit).
		Add(a.SecondaryBalance).Add(a.Escrow)
}

// QuestState возвращает состояние квеста, создавая начальное при первом обращении.
func (a *Account) QuestState(def quest.Definition) *quest.State {
	if a.Quests == nil {
		a.Quests = make(map[quest.Kind]*quest.State)
	}
	st, ok := a.Quests[def.Kind]
	if !ok {
		st = quest.NewState(def)
		a.Quests[def.Kind] = st
	}
	return st
}

// Validate проверяет инварианты записи перед записью в хранилище.
func (a *Account) Validate() error {
	for _, b := range []Balance{BalanceSpendable, BalanceStaked, BalanceWager, BalanceWithdrawable, BalanceSecondary, BalanceEscrow} {
		v, _ := a.Get(b)
		if v.IsNegative() {
			return fmt.Errorf("%w: баланс %s отрицательный (%s)", common.ErrInvariantViolation, b, v)
		}
	}

	sum := decimal.Zero
	for _, p := range a.Positions {
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: позиция %s с неположительной суммой", common.ErrInvariantViolation, p.ID)
		}
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(a.Staked) {
		return fmt.Errorf("%w: staked=%s, сумма позиций=%s", common.ErrInvariantViolation, a.Staked, sum)
	}

	escrow := decimal.Zero
	if a.PendingRound != nil {
		escrow = a.PendingRound.Bet
	}
	if !escrow.Equal(a.Escrow) {
		return fmt.Errorf("%w: escrow=%s, ставка раунда=%s", common.ErrInvariantViolation, a.Escrow, escrow)
	}
	return nil
}
