package staking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	daysInYear = decimal.NewFromInt(365)
	day        = 24 * time.Hour
)

// DailyReward = amount * apr / 100 / 365. Считается по запросу, нигде не копится.
func DailyReward(p Position) decimal.Decimal {
	return p.Amount.Mul(p.APRPercent).Div(hundred).Div(daysInYear)
}

// TotalDailyReward — сумма DailyReward по всем позициям аккаунта.
func TotalDailyReward(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(DailyReward(p))
	}
	return total
}

// TotalStaked — сумма всех позиций.
func TotalStaked(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Amount)
	}
	return total
}

// WeightedAPR — Σ(amount*apr) / Σ amount, только для отображения.
// Без позиций возвращает 0.
func WeightedAPR(positions []Position) decimal.Decimal {
	weighted := decimal.Zero
	total := decimal.Zero
	for _, p := range positions {
		weighted = weighted.Add(p.Amount.Mul(p.APRPercent))
		total = total.Add(p.Amount)
	}
	if total.IsZero() {
		return decimal.Zero
	}
	return weighted.Div(total)
}

// ElapsedDays — сколько полных суток прошло с открытия позиции.
func ElapsedDays(p Position, now time.Time) int {
	if now.Before(p.StartTime) {
		return 0
	}
	return int(now.Sub(p.StartTime) / day)
}

// IsMature — истёк ли срок позиции.
func IsMature(p Position, now time.Time) bool {
	return ElapsedDays(p, now) >= p.DurationDays
}

// PenaltyPolicy — как выбирается ставка штрафа при досрочном выходе.
type PenaltyPolicy string

const (
	// PenaltyPolicyMax: ко всем досрочным позициям применяется максимальный
	// штраф среди всех текущих позиций аккаунта (включая созревшие).
	PenaltyPolicyMax PenaltyPolicy = "max"
	// PenaltyPolicyPerPosition: у каждой досрочной позиции свой штраф.
	PenaltyPolicyPerPosition PenaltyPolicy = "per_position"
)

// ParsePenaltyPolicy разбирает политику из конфигурации.
func ParsePenaltyPolicy(raw string) (PenaltyPolicy, error) {
	switch p := PenaltyPolicy(raw); p {
	case PenaltyPolicyMax, PenaltyPolicyPerPosition:
		return p, nil
	}
	return "", fmt.Errorf("неизвестная политика штрафа %q", raw)
}

// Exit — итог по одной позиции при анстейке.
type Exit struct {
	PositionID     string
	Amount         decimal.Decimal
	Early          bool
	PenaltyPercent decimal.Decimal
	Penalty        decimal.Decimal
}

// UnstakeResult — итог анстейка всех позиций аккаунта.
type UnstakeResult struct {
	Principal decimal.Decimal
	Returned  decimal.Decimal
	Penalty   decimal.Decimal
	// MaxPenaltyPercent — максимальный штраф среди позиций (для политики max это и есть применённая ставка).
	MaxPenaltyPercent decimal.Decimal
	Early             int
	Matured           int
	Exits             []Exit
}

// Unstake закрывает все позиции сразу; частичного вывода нет.
// Штраф позиции: amount * rate / 100, округлённый до scale; для созревших — 0.
func Unstake(positions []Position, now time.Time, policy PenaltyPolicy, scale int32) UnstakeResult {
	res := UnstakeResult{
		Principal:         decimal.Zero,
		Returned:          decimal.Zero,
		Penalty:           decimal.Zero,
		MaxPenaltyPercent: decimal.Zero,
	}
	for _, p := range positions {
		if p.EarlyExitPenaltyPercent.GreaterThan(res.MaxPenaltyPercent) {
			res.MaxPenaltyPercent = p.EarlyExitPenaltyPercent
		}
	}

	for _, p := range positions {
		exit := Exit{PositionID: p.ID, Amount: p.Amount, PenaltyPercent: decimal.Zero, Penalty: decimal.Zero}
		if !IsMature(p, now) {
			exit.Early = true
			exit.PenaltyPercent = p.EarlyExitPenaltyPercent
			if policy != PenaltyPolicyPerPosition {
				exit.PenaltyPercent = res.MaxPenaltyPercent
			}
			exit.Penalty = p.Amount.Mul(exit.PenaltyPercent).Div(hundred).Round(scale)
			res.Early++
		} else {
			res.Matured++
		}

		res.Principal = res.Principal.Add(p.Amount)
		res.Penalty = res.Penalty.Add(exit.Penalty)
		res.Exits = append(res.Exits, exit)
	}
	res.Returned = res.Principal.Sub(res.Penalty)
	return res
}

// Summary — сводка стейкинга аккаунта для чтения.
type Summary struct {
	Positions    int
	TotalStaked  decimal.Decimal
	WeightedAPR  decimal.Decimal
	DailyReward  decimal.Decimal
	NextMaturity *time.Time
	// ExitPenaltyIfNow — сколько сгорит, если закрыть всё сейчас.
	ExitPenaltyIfNow decimal.Decimal
}

// Summarize считает сводку по позициям на момент now.
func Summarize(positions []Position, now time.Time, policy PenaltyPolicy, scale int32) Summary {
	s := Summary{
		Positions:        len(positions),
		TotalStaked:      TotalStaked(positions),
		WeightedAPR:      WeightedAPR(positions),
		DailyReward:      TotalDailyReward(positions).Round(scale),
		ExitPenaltyIfNow: Unstake(positions, now, policy, scale).Penalty,
	}
	for _, p := range positions {
		if IsMature(p, now) {
			continue
		}
		m := p.MaturesAt()
		if s.NextMaturity == nil || m.Before(*s.NextMaturity) {
			s.NextMaturity = &m
		}
	}
	return s
}
