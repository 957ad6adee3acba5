package quest

import (
	"context"
	"time"
)

// Verifier решает, выполнено ли задание, требующее проверки.
// Вызывается при каждом обращении к квесту; блокироваться и ждать он не должен.
type Verifier interface {
	Verify(ctx context.Context, accountID string, kind Kind, startedAt, now time.Time) (Verification, error)
}

// Verification — ответ проверяющего. Remaining — оценка ожидания, если известна.
type Verification struct {
	Verified  bool
	Remaining time.Duration
}

// DelayVerifier считает задание выполненным через фиксированное окно после старта.
// Внешний сигнал не проверяется.
type DelayVerifier struct {
	Delay time.Duration
}

func (v DelayVerifier) Verify(_ context.Context, _ string, _ Kind, startedAt, now time.Time) (Verification, error) {
	readyAt := startedAt.Add(v.Delay)
	if now.Before(readyAt) {
		return Verification{Remaining: readyAt.Sub(now)}, nil
	}
	return Verification{Verified: true}, nil
}
