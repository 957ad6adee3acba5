// Package staking реализует стейкинг: каталог пакетов, позиции,
// ежедневное начисление и досрочный выход со штрафом.
// models.go описывает пакеты и позиции.
package staking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"serotonyl.ru/tokenarena/internal/common"
)

// Package — условия стейкинга из фиксированного каталога.
type Package struct {
	ID                      string          `json:"id"`
	DurationDays            int             `json:"duration_days"`
	APRPercent              decimal.Decimal `json:"apr_percent"`
	EarlyExitPenaltyPercent decimal.Decimal `json:"early_exit_penalty_percent"`
}

// Validate проверяет срок, APR и штраф пакета.
func (p Package) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("у пакета нет ID")
	}
	if p.DurationDays <= 0 {
		return fmt.Errorf("пакет %s: срок должен быть > 0 дней", p.ID)
	}
	if p.APRPercent.IsNegative() {
		return fmt.Errorf("пакет %s: APR не может быть отрицательным", p.ID)
	}
	if p.EarlyExitPenaltyPercent.IsNegative() || p.EarlyExitPenaltyPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("пакет %s: штраф должен быть в диапазоне 0–100%%", p.ID)
	}
	return nil
}

// Position — одна заблокированная сумма. Создаётся при стейке,
// удаляется только целиком при анстейке всех позиций аккаунта.
type Position struct {
	ID                      string          `json:"id"`
	PackageID               string          `json:"package_id"`
	Amount                  decimal.Decimal `json:"amount"`
	StartTime               time.Time       `json:"start_time"`
	DurationDays            int             `json:"duration_days"`
	APRPercent              decimal.Decimal `json:"apr_percent"`
	EarlyExitPenaltyPercent decimal.Decimal `json:"early_exit_penalty_percent"`
}

// NewPosition открывает позицию по условиям пакета.
func NewPosition(amount decimal.Decimal, pkg Package, now time.Time) (Position, error) {
	if !amount.IsPositive() {
		return Position{}, common.ErrInvalidAmount
	}
	return Position{
		ID:                      uuid.NewString(),
		PackageID:               pkg.ID,
		Amount:                  amount,
		StartTime:               now,
		DurationDays:            pkg.DurationDays,
		APRPercent:              pkg.APRPercent,
		EarlyExitPenaltyPercent: pkg.EarlyExitPenaltyPercent,
	}, nil
}

// MaturesAt — момент, после которого выход без штрафа.
func (p Position) MaturesAt() time.Time {
	return p.StartTime.Add(time.Duration(p.DurationDays) * 24 * time.Hour)
}

// Catalog — неизменяемый набор пакетов.
type Catalog struct {
	packages map[string]Package
	order    []string
}

// NewCatalog собирает каталог, проверяя каждый пакет и уникальность ID.
func NewCatalog(pkgs ...Package) (*Catalog, error) {
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("каталог стейкинга пуст")
	}
	c := &Catalog{packages: make(map[string]Package, len(pkgs))}
	for _, p := range pkgs {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.packages[p.ID]; dup {
			return nil, fmt.Errorf("пакет %s объявлен дважды", p.ID)
		}
		c.packages[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// DefaultPackages — пакеты по умолчанию.
func DefaultPackages() []Package {
	return []Package{
		{ID: "flex-7", DurationDays: 7, APRPercent: decimal.NewFromInt(12), EarlyExitPenaltyPercent: decimal.NewFromInt(5)},
		{ID: "core-30", DurationDays: 30, APRPercent: decimal.NewFromInt(25), EarlyExitPenaltyPercent: decimal.NewFromInt(10)},
		{ID: "boost-90", DurationDays: 90, APRPercent: decimal.NewFromInt(55), EarlyExitPenaltyPercent: decimal.NewFromInt(20)},
		{ID: "max-180", DurationDays: 180, APRPercent: decimal.NewFromInt(80), EarlyExitPenaltyPercent: decimal.NewFromInt(30)},
	}
}

// DefaultCatalog возвращает каталог из DefaultPackages.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultPackages()...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get ищет пакет по ID.
func (c *Catalog) Get(id string) (Package, error) {
	p, ok := c.packages[id]
	if !ok {
		return Package{}, fmt.Errorf("%w: %q", common.ErrUnknownPackage, id)
	}
	return p, nil
}

// List возвращает пакеты в порядке объявления.
func (c *Catalog) List() []Package {
	out := make([]Package, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.packages[id])
	}
	return out
}
