package wager

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// OpponentProvider находит соперника для раунда и выбирает его ход.
// Поиск соперника — локальная симуляция, сетевого матчмейкинга нет.
type OpponentProvider interface {
	FindOpponent(ctx context.Context, mode Mode) (Opponent, error)
	// DrawMove возвращает равновероятный ход. Используется и для хода соперника,
	// и для автоматического хода игрока по таймауту.
	DrawMove(ctx context.Context) (Move, error)
}

// BotName — имя соперника в режиме против бота.
const BotName = "Арена-бот"

var defaultOpponentNames = []string{
	"ShadowFox", "Кот_Бегемот", "NightOwl", "Громов", "PixelPirate",
	"Ледокол", "LuckyLuke", "Мятный_Пряник", "IronSpoon", "Бумажный_Тигр",
}

// RandomOpponents — боевая реализация: имя из пула и случайная история ходов.
// Случайность берётся из crypto/rand.
type RandomOpponents struct {
	names       []string
	historySize int
}

// NewRandomOpponents создаёт провайдера. Пустой пул заменяется пулом по умолчанию.
func NewRandomOpponents(names []string, historySize int) *RandomOpponents {
	if len(names) == 0 {
		names = defaultOpponentNames
	}
	if historySize < 0 {
		historySize = 0
	}
	return &RandomOpponents{names: names, historySize: historySize}
}

func (p *RandomOpponents) FindOpponent(ctx context.Context, mode Mode) (Opponent, error) {
	if err := ctx.Err(); err != nil {
		return Opponent{}, err
	}

	name := BotName
	if mode == ModePvP {
		i, err := randomIndex(len(p.names))
		if err != nil {
			return Opponent{}, err
		}
		name = p.names[i]
	}

	history := make([]Move, 0, p.historySize)
	for i := 0; i < p.historySize; i++ {
		m, err := p.DrawMove(ctx)
		if err != nil {
			return Opponent{}, err
		}
		history = append(history, m)
	}
	return Opponent{Name: name, History: history}, nil
}

func (p *RandomOpponents) DrawMove(ctx context.Context) (Move, error) {
	i, err := randomIndex(len(Moves))
	if err != nil {
		return "", err
	}
	return Moves[i], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("ошибка генерации случайного числа: %w", err)
	}
	return int(v.Int64()), nil
}

// ScriptedOpponents отдаёт ходы из заранее заданной очереди.
// Когда очередь кончается, повторяется последний ход. Нужен для тестов и демо.
type ScriptedOpponents struct {
	mu    sync.Mutex
	name  string
	moves []Move
	next  int
}

// NewScriptedOpponents создаёт провайдера с фиксированной очередью ходов.
func NewScriptedOpponents(name string, moves ...Move) *ScriptedOpponents {
	if len(moves) == 0 {
		moves = []Move{MoveRock}
	}
	return &ScriptedOpponents{name: name, moves: moves}
}

func (p *ScriptedOpponents) FindOpponent(_ context.Context, _ Mode) (Opponent, error) {
	return Opponent{Name: p.name}, nil
}

func (p *ScriptedOpponents) DrawMove(_ context.Context) (Move, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.moves[min(p.next, len(p.moves)-1)]
	p.next++
	return m, nil
}
