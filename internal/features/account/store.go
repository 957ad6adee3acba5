package account

import (
	"context"
	"time"
)

// Store — граница хранилища аккаунтов. Писать через него может только оркестратор экономики.
//
// Ошибки реализаций:
//   - common.ErrAccountNotFound — аккаунта нет;
//   - common.ErrAccountExists — Create для существующего ID;
//   - common.ErrConcurrentModification — версия в хранилище не равна expectedVersion;
//   - common.ErrStoreUnavailable — любой сбой инфраструктуры (оборачивает исходную ошибку).
type Store interface {
	// Get возвращает копию аккаунта; изменять её можно свободно.
	Get(ctx context.Context, id string) (*Account, error)
	// Create сохраняет новый аккаунт с Version = 1 вместе с проводками.
	Create(ctx context.Context, acc *Account, entries []LedgerEntry) error
	// Update атомарно заменяет запись и дописывает проводки, если текущая версия
	// равна expectedVersion. При успехе acc.Version = expectedVersion + 1.
	Update(ctx context.Context, acc *Account, expectedVersion int64, entries []LedgerEntry) error
	// FindByRound ищет аккаунт по ID незавершённого или последнего рассчитанного раунда.
	FindByRound(ctx context.Context, roundID string) (*Account, error)
	// ListExpiredRounds возвращает ID аккаунтов, чей незавершённый раунд просрочен к before.
	ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]string, error)
	// ListStakers возвращает ID аккаунтов с позициями, по возрастанию ID, начиная после afterID.
	ListStakers(ctx context.Context, afterID string, limit int) ([]string, error)
}
