// Package wager реализует раунды «камень-ножницы-бумага» на ставку:
// ходы, исход, выплаты по режимам, соперников и коммитмент хода соперника.
// models.go описывает структуры данных раунда.
package wager

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/tokenarena/internal/common"
)

// Move — ход игрока или соперника.
type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

// Moves — все допустимые ходы, порядок используется при случайном выборе.
var Moves = []Move{MoveRock, MovePaper, MoveScissors}

// Valid сообщает, является ли ход одним из трёх допустимых.
func (m Move) Valid() bool {
	return m == MoveRock || m == MovePaper || m == MoveScissors
}

// ParseMove разбирает ход из строки без учёта регистра.
func ParseMove(raw string) (Move, error) {
	m := Move(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", common.ErrInvalidMove
	}
	return m, nil
}

// Outcome — исход раунда с точки зрения игрока.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomeDraw Outcome = "draw"
)

// Mode — против кого играет игрок.
type Mode string

const (
	ModeBot Mode = "bot"
	ModePvP Mode = "pvp"
)

// ParseMode разбирает режим игры.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeBot, ModePvP:
		return m, nil
	}
	return "", common.ErrInvalidMode
}

// Opponent — соперник, найденный для раунда.
type Opponent struct {
	Name    string `json:"name"`
	History []Move `json:"history,omitempty"`
}

// Round — раунд от ставки до расчёта. Незавершённый раунд хранится в записи аккаунта
// вместе с дедлайном; ставка Bet лежит в эскроу аккаунта до расчёта.
type Round struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Mode      Mode            `json:"mode"`
	Bet       decimal.Decimal `json:"bet"`
	PlacedAt  time.Time       `json:"placed_at"`
	Deadline  time.Time       `json:"deadline"`
	Opponent  Opponent        `json:"opponent"`

	// Ход соперника выбирается при ставке и закрывается коммитментом.
	// До расчёта наружу не отдаётся, см. Sealed.
	OpponentMove Move   `json:"opponent_move,omitempty"`
	Salt         string `json:"salt,omitempty"`
	Commitment   string `json:"commitment"`

	// Заполняются при расчёте.
	PlayerMove  Move            `json:"player_move,omitempty"`
	Outcome     Outcome         `json:"outcome,omitempty"`
	Payout      decimal.Decimal `json:"payout"`
	Fee         decimal.Decimal `json:"fee"`
	SettledAt   *time.Time      `json:"settled_at,omitempty"`
	AutoSettled bool            `json:"auto_settled,omitempty"`
}

// Expired — наступил ли дедлайн раунда.
func (r *Round) Expired(now time.Time) bool {
	return !now.Before(r.Deadline)
}

// Settled — рассчитан ли раунд.
func (r *Round) Settled() bool {
	return r.SettledAt != nil
}

// Sealed возвращает копию без хода соперника и соли. Commitment остаётся:
// по нему игрок сверит раунд после расчёта.
func (r *Round) Sealed() *Round {
	c := r.Clone()
	if c != nil {
		c.OpponentMove = ""
		c.Salt = ""
	}
	return c
}

// Clone возвращает независимую копию раунда.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	c := *r
	if r.Opponent.History != nil {
		c.Opponent.History = append([]Move(nil), r.Opponent.History...)
	}
	if r.SettledAt != nil {
		t := *r.SettledAt
		c.SettledAt = &t
	}
	return &c
}
