// Package common — errors.go определяет ошибки, которые используются
// во всех модулях экономики. Обработчики прикладного слоя различают их
// через errors.Is / errors.As и показывают пользователю понятный текст.
package common

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки суммы и балансов
var (
	// ErrInvalidAmount — сумма нулевая, отрицательная или не число
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrInsufficientFunds — на балансе меньше, чем требуется
	ErrInsufficientFunds = errors.New("недостаточно средств")
	// ErrUnsupportedConversion — такой пары балансов для обмена нет
	ErrUnsupportedConversion = errors.New("обмен между этими балансами не поддерживается")
	// ErrInvariantViolation — операция привела бы аккаунт в недопустимое состояние
	ErrInvariantViolation = errors.New("нарушен инвариант аккаунта")
)

// Ошибки аккаунтов и хранилища
var (
	ErrAccountNotFound = errors.New("аккаунт не найден")
	ErrAccountExists   = errors.New("аккаунт уже существует")
	// ErrConcurrentModification — версия аккаунта изменилась между чтением и записью
	ErrConcurrentModification = errors.New("аккаунт изменён параллельно")
	// ErrStoreUnavailable — хранилище не ответило или упало
	ErrStoreUnavailable = errors.New("хранилище недоступно")
)

// Ошибки ставок
var (
	ErrRoundNotFound       = errors.New("раунд не найден")
	ErrRoundAlreadySettled = errors.New("раунд уже рассчитан")
	// ErrRoundInProgress — у аккаунта уже есть незавершённый раунд
	ErrRoundInProgress = errors.New("предыдущий раунд ещё не завершён")
	ErrInvalidMove     = errors.New("некорректный ход")
	ErrInvalidMode     = errors.New("некорректный режим игры")
	// ErrRateLimited — слишком много ставок за окно
	ErrRateLimited = errors.New("слишком много ставок, подождите")
)

// Ошибки стейкинга и квестов
var (
	ErrUnknownPackage = errors.New("неизвестный пакет стейкинга")
	ErrNothingStaked  = errors.New("нет активных стейков")
	ErrUnknownQuest   = errors.New("неизвестный квест")
	// ErrNotEligible — квест сейчас нельзя забрать
	ErrNotEligible = errors.New("награда пока недоступна")
)

// NotEligibleError уточняет ErrNotEligible: какой квест и сколько ждать.
// Remaining равен нулю, когда срок ожидания неизвестен или ждать нечего
// (например, разовый квест уже забран).
type NotEligibleError struct {
	Kind      string
	Reason    string
	Remaining time.Duration
}

func (e *NotEligibleError) Error() string {
	msg := fmt.Sprintf("квест %s: %s", e.Kind, ErrNotEligible.Error())
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Remaining > 0 {
		msg += fmt.Sprintf(", осталось %s", e.Remaining.Round(time.Second))
	}
	return msg
}

func (e *NotEligibleError) Unwrap() error {
	return ErrNotEligible
}
