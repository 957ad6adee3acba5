package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/account"
	"serotonyl.ru/tokenarena/internal/features/quest"
	"serotonyl.ru/tokenarena/internal/features/staking"
)

// QuestReceipt — начисленная награда квеста.
type QuestReceipt struct {
	Kind    quest.Kind
	Reward  decimal.Decimal
	Target  account.Balance
	Account *account.Account
}

// QuestView — квест глазами пользователя: состояние и можно ли забрать сейчас.
type QuestView struct {
	Definition  quest.Definition
	State       quest.State
	Reward      decimal.Decimal
	Eligibility quest.Eligibility
}

// StartQuest отмечает начало задания (unclaimed -> pending_verification).
// Для уже начатых и не требующих проверки квестов ничего не меняет.
func (o *Orchestrator) StartQuest(ctx context.Context, accountID string, kind quest.Kind) (*account.Account, error) {
	def, err := o.quests.Catalog().Get(kind)
	if err != nil {
		return nil, err
	}

	return o.mutate(ctx, accountID, "start_quest", func(acc *account.Account, now time.Time, _ *account.Journal) error {
		if !o.quests.Start(acc.QuestState(def), now) {
			return errNoChange
		}
		return nil
	})
}

// ClaimQuest забирает награду квеста. Статус и баланс меняются одной записью:
// отказ (NotEligible) не меняет ни того, ни другого.
func (o *Orchestrator) ClaimQuest(ctx context.Context, accountID string, kind quest.Kind) (*QuestReceipt, error) {
	return o.claimQuest(ctx, accountID, kind, 0)
}

// claimQuest забирает награду; tolerance > 0 только у плановых начислений.
func (o *Orchestrator) claimQuest(ctx context.Context, accountID string, kind quest.Kind, tolerance time.Duration) (*QuestReceipt, error) {
	def, err := o.quests.Catalog().Get(kind)
	if err != nil {
		return nil, err
	}
	target, err := rewardBalance(def.Target)
	if err != nil {
		return nil, err
	}
	reason := account.ReasonQuestReward
	if def.Computed {
		reason = account.ReasonStakingReward
	}

	var reward decimal.Decimal
	acc, err := o.mutate(ctx, accountID, "claim_quest", func(acc *account.Account, now time.Time, j *account.Journal) error {
		st := acc.QuestState(def)
		claim := o.quests.Claim
		if tolerance > 0 {
			claim = func(ctx context.Context, accountID string, def quest.Definition, st *quest.State, now time.Time) error {
				return o.quests.ClaimWithTolerance(ctx, accountID, def, st, now, tolerance)
			}
		}
		if err := claim(ctx, accountID, def, st, now); err != nil {
			return err
		}

		reward = o.questReward(def, acc)
		if !reward.IsPositive() {
			return &common.NotEligibleError{Kind: string(def.Kind), Reason: "нет активных стейков"}
		}
		return j.Mint(target, reward, reason, string(def.Kind))
	})
	if err != nil {
		return nil, err
	}
	return &QuestReceipt{Kind: def.Kind, Reward: reward, Target: target, Account: acc}, nil
}

// QuestStatus возвращает все квесты каталога с их текущей доступностью.
// Ничего не записывает: переход в verified сохраняется при следующем claim.
func (o *Orchestrator) QuestStatus(ctx context.Context, accountID string) ([]QuestView, error) {
	acc, err := o.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := o.now()
	defs := o.quests.Catalog().List()
	views := make([]QuestView, 0, len(defs))
	for _, def := range defs {
		st := acc.QuestState(def)
		el, err := o.quests.Evaluate(ctx, accountID, def, st, now)
		if err != nil {
			return nil, err
		}
		views = append(views, QuestView{
			Definition:  def,
			State:       *st.Clone(),
			Reward:      o.questReward(def, acc),
			Eligibility: el,
		})
	}
	return views, nil
}

func (o *Orchestrator) questReward(def quest.Definition, acc *account.Account) decimal.Decimal {
	if def.Computed {
		return staking.TotalDailyReward(acc.Positions).Round(o.opts.Scale)
	}
	return def.Reward
}

func rewardBalance(t quest.Target) (account.Balance, error) {
	switch t {
	case quest.TargetSpendable:
		return account.BalanceSpendable, nil
	case quest.TargetWithdrawable:
		return account.BalanceWithdrawable, nil
	}
	return "", fmt.Errorf("неизвестный баланс награды %q", t)
}
