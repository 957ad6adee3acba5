// Package quest ведёт квесты аккаунта: разовые социальные задания
// с проверкой и ежедневные награды с кулдауном.
// models.go описывает виды квестов, статусы и каталог.
package quest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/tokenarena/internal/common"
)

// Kind — вид квеста.
type Kind string

const (
	KindDailyStakingReward Kind = "daily_staking_reward"
	KindDailyCheckin       Kind = "daily_checkin"
	KindFollowX            Kind = "follow_x"
	KindJoinTelegram       Kind = "join_telegram"
	KindRetweetLaunch      Kind = "retweet_launch"
)

// Status — метка состояния квеста. Назад не откатывается.
type Status string

const (
	StatusUnclaimed           Status = "unclaimed"
	StatusPendingVerification Status = "pending_verification"
	StatusVerified            Status = "verified"
	StatusCompleted           Status = "completed"
)

// Target — на какой баланс зачисляется награда.
type Target string

const (
	TargetSpendable    Target = "spendable"
	TargetWithdrawable Target = "withdrawable"
)

// Definition — описание квеста в каталоге.
type Definition struct {
	Kind  Kind
	Title string
	// Reward — фиксированная награда. Для Computed игнорируется.
	Reward decimal.Decimal
	// Computed — награду считает вызывающий (ежедневная награда за стейкинг).
	Computed  bool
	Target    Target
	Recurring bool
	Cooldown  time.Duration
	// RequiresVerification — квест проходит через pending_verification.
	RequiresVerification bool
}

// State — состояние квеста у конкретного аккаунта.
type State struct {
	Kind          Kind       `json:"kind"`
	Status        Status     `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	LastClaimTime *time.Time `json:"last_claim_time,omitempty"`
	ClaimCount    int        `json:"claim_count"`
}

// Clone возвращает независимую копию.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.LastClaimTime != nil {
		t := *s.LastClaimTime
		c.LastClaimTime = &t
	}
	return &c
}

// Catalog — набор определений квестов.
type Catalog struct {
	defs  map[Kind]Definition
	order []Kind
}

// NewCatalog собирает каталог. Повторяющийся вид квеста — ошибка.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[Kind]Definition, len(defs))}
	for _, d := range defs {
		if _, dup := c.defs[d.Kind]; dup {
			return nil, fmt.Errorf("квест %s объявлен дважды", d.Kind)
		}
		if !d.Computed && !d.Reward.IsPositive() {
			return nil, fmt.Errorf("квест %s: награда должна быть > 0", d.Kind)
		}
		if d.Recurring && d.Cooldown <= 0 {
			return nil, fmt.Errorf("квест %s: у повторяемого квеста должен быть кулдаун", d.Kind)
		}
		c.defs[d.Kind] = d
		c.order = append(c.order, d.Kind)
	}
	return c, nil
}

// DefaultDefinitions — стандартный набор: ежедневная награда за стейкинг,
// ежедневный чек-ин и три социальных задания.
func DefaultDefinitions(cooldown time.Duration) []Definition {
	return []Definition{
		{
			Kind:      KindDailyStakingReward,
			Title:     "Ежедневная награда за стейкинг",
			Computed:  true,
			Target:    TargetWithdrawable,
			Recurring: true,
			Cooldown:  cooldown,
		},
		{
			Kind:      KindDailyCheckin,
			Title:     "Ежедневный вход",
			Reward:    decimal.NewFromInt(10),
			Target:    TargetSpendable,
			Recurring: true,
			Cooldown:  cooldown,
		},
		{
			Kind:                 KindFollowX,
			Title:                "Подписаться на X",
			Reward:               decimal.NewFromInt(50),
			Target:               TargetSpendable,
			RequiresVerification: true,
		},
		{
			Kind:                 KindJoinTelegram,
			Title:                "Вступить в Telegram-канал",
			Reward:               decimal.NewFromInt(50),
			Target:               TargetSpendable,
			RequiresVerification: true,
		},
		{
			Kind:                 KindRetweetLaunch,
			Title:                "Репост анонса запуска",
			Reward:               decimal.NewFromInt(25),
			Target:               TargetSpendable,
			RequiresVerification: true,
		},
	}
}

// Get ищет определение квеста.
func (c *Catalog) Get(kind Kind) (Definition, error) {
	d, ok := c.defs[kind]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", common.ErrUnknownQuest, kind)
	}
	return d, nil
}

// List возвращает определения в порядке объявления.
func (c *Catalog) List() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.defs[k])
	}
	return out
}
