package account

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"serotonyl.ru/tokenarena/internal/common"
)

// EntryKind — тип проводки.
type EntryKind string

const (
	// EntryTransfer — перенос между двумя балансами аккаунта.
	EntryTransfer EntryKind = "transfer"
	// EntryMint — эмиссия из дома (гранты, награды, ставка симулированного соперника).
	EntryMint EntryKind = "mint"
	// EntryBurn — сжигание в дом (проигрыш, штраф, комиссия).
	EntryBurn EntryKind = "burn"
)

// Reason — бизнес-причина проводки.
type Reason string

const (
	ReasonSignupGrant      Reason = "signup_grant"
	ReasonBetReserve       Reason = "bet_reserve"
	ReasonBetWin           Reason = "bet_win"
	ReasonBetDraw          Reason = "bet_draw"
	ReasonBetLoss          Reason = "bet_loss"
	ReasonOpponentStake    Reason = "opponent_stake"
	ReasonPlatformFee      Reason = "platform_fee"
	ReasonStake            Reason = "stake"
	ReasonUnstake          Reason = "unstake"
	ReasonEarlyExitPenalty Reason = "early_exit_penalty"
	ReasonQuestReward      Reason = "quest_reward"
	ReasonStakingReward    Reason = "staking_reward"
	ReasonConvert          Reason = "convert"
)

// LedgerEntry — одна проводка журнала. Проводки одной мутации делят GroupID
// и пишутся в хранилище вместе с записью аккаунта.
type LedgerEntry struct {
	ID        string          `json:"id"`
	GroupID   string          `json:"group_id"`
	AccountID string          `json:"account_id"`
	Kind      EntryKind       `json:"kind"`
	From      Balance         `json:"from"`
	To        Balance         `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    Reason          `json:"reason"`
	Ref       string          `json:"ref,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Journal применяет проводки к аккаунту и запоминает их.
// Баланс-источник не может уйти в минус: такая проводка отклоняется
// с ErrInsufficientFunds и аккаунт не меняется.
type Journal struct {
	acc     *Account
	groupID string
	now     time.Time
	entries []LedgerEntry
}

// NewJournal начинает журнал одной мутации аккаунта.
func NewJournal(acc *Account, now time.Time) *Journal {
	return &Journal{acc: acc, groupID: uuid.NewString(), now: now}
}

// Transfer переносит amount с from на to.
func (j *Journal) Transfer(from, to Balance, amount decimal.Decimal, reason Reason, ref string) error {
	return j.post(EntryTransfer, from, to, amount, reason, ref)
}

// Mint зачисляет amount на to из дома.
func (j *Journal) Mint(to Balance, amount decimal.Decimal, reason Reason, ref string) error {
	return j.post(EntryMint, BalanceHouse, to, amount, reason, ref)
}

// Burn списывает amount с from в дом.
func (j *Journal) Burn(from Balance, amount decimal.Decimal, reason Reason, ref string) error {
	return j.post(EntryBurn, from, BalanceHouse, amount, reason, ref)
}

func (j *Journal) post(kind EntryKind, from, to Balance, amount decimal.Decimal, reason Reason, ref string) error {
	if amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: проводка %s на %s", common.ErrInvalidAmount, reason, amount)
	}
	if from == to {
		return fmt.Errorf("проводка %s: источник и получатель совпадают (%s)", reason, from)
	}

	if from != BalanceHouse {
		src, err := j.acc.field(from)
		if err != nil {
			return err
		}
		if src.LessThan(amount) {
			return fmt.Errorf("%w: на балансе %s %s, нужно %s", common.ErrInsufficientFunds, from, src, amount)
		}
	}
	if to != BalanceHouse {
		if _, err := j.acc.field(to); err != nil {
			return err
		}
	}

	if from != BalanceHouse {
		src, _ := j.acc.field(from)
		*src = src.Sub(amount)
	}
	if to != BalanceHouse {
		dst, _ := j.acc.field(to)
		*dst = dst.Add(amount)
	}

	j.entries = append(j.entries, LedgerEntry{
		ID:        uuid.NewString(),
		GroupID:   j.groupID,
		AccountID: j.acc.ID,
		Kind:      kind,
		From:      from,
		To:        to,
		Amount:    amount,
		Reason:    reason,
		Ref:       ref,
		CreatedAt: j.now,
	})
	return nil
}

// Entries возвращает накопленные проводки.
func (j *Journal) Entries() []LedgerEntry {
	return j.entries
}

// HouseFlow — сколько выпущено и сожжено в наборе проводок.
// Для любой мутации изменение Account.Total() равно Minted - Burned.
func HouseFlow(entries []LedgerEntry) (minted, burned decimal.Decimal) {
	minted, burned = decimal.Zero, decimal.Zero
	for _, e := range entries {
		switch e.Kind {
		case EntryMint:
			minted = minted.Add(e.Amount)
		case EntryBurn:
			burned = burned.Add(e.Amount)
		}
	}
	return minted, burned
}
