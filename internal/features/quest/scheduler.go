package quest

import (
	"context"
	"fmt"
	"time"

	"serotonyl.ru/tokenarena/internal/common"
)

// Scheduler ведёт машину состояний квестов:
//
//	unclaimed -> pending_verification -> verified -> completed (-> completed после кулдауна)
//
// Сам ничего не хранит: состояние лежит в записи аккаунта, Scheduler только
// меняет переданный *State. Запись делает оркестратор экономики.
type Scheduler struct {
	catalog  *Catalog
	verifier Verifier
}

// NewScheduler создаёт планировщик квестов.
func NewScheduler(catalog *Catalog, verifier Verifier) *Scheduler {
	return &Scheduler{catalog: catalog, verifier: verifier}
}

// Catalog возвращает каталог квестов.
func (s *Scheduler) Catalog() *Catalog {
	return s.catalog
}

// NewState создаёт начальное состояние. Квест без проверки сразу verified.
func NewState(def Definition) *State {
	st := &State{Kind: def.Kind, Status: StatusUnclaimed}
	if !def.RequiresVerification {
		st.Status = StatusVerified
	}
	return st
}

// Start переводит квест из unclaimed в pending_verification (действие пользователя).
// Возвращает false, если переводить нечего.
func (s *Scheduler) Start(st *State, now time.Time) bool {
	if st.Status != StatusUnclaimed {
		return false
	}
	t := now
	st.Status = StatusPendingVerification
	st.StartedAt = &t
	return true
}

// Eligibility — можно ли сейчас забрать награду.
type Eligibility struct {
	Eligible    bool
	Reason      string
	Remaining   time.Duration
	NextClaimAt *time.Time
}

// Evaluate переоценивает квест на момент now: спрашивает Verifier для
// pending_verification и проверяет кулдаун. Может перевести st в verified.
func (s *Scheduler) Evaluate(ctx context.Context, accountID string, def Definition, st *State, now time.Time) (Eligibility, error) {
	return s.evaluate(ctx, accountID, def, st, now, 0)
}

// evaluate проверяет квест; tolerance сокращает кулдаун повторяемого квеста.
func (s *Scheduler) evaluate(ctx context.Context, accountID string, def Definition, st *State, now time.Time, tolerance time.Duration) (Eligibility, error) {
	if st.Status == StatusPendingVerification {
		startedAt := now
		if st.StartedAt != nil {
			startedAt = *st.StartedAt
		}
		v, err := s.verifier.Verify(ctx, accountID, def.Kind, startedAt, now)
		if err != nil {
			return Eligibility{}, fmt.Errorf("ошибка проверки квеста %s: %w", def.Kind, err)
		}
		if !v.Verified {
			return Eligibility{Reason: "задание на проверке", Remaining: v.Remaining}, nil
		}
		st.Status = StatusVerified
	}

	switch st.Status {
	case StatusUnclaimed:
		return Eligibility{Reason: "задание не начато"}, nil
	case StatusVerified:
		return Eligibility{Eligible: true}, nil
	case StatusCompleted:
		if !def.Recurring {
			return Eligibility{Reason: "награда уже получена"}, nil
		}
		if st.LastClaimTime == nil {
			return Eligibility{Eligible: true}, nil
		}
		next := st.LastClaimTime.Add(def.Cooldown - tolerance)
		if now.Before(next) {
			return Eligibility{Reason: "кулдаун", Remaining: next.Sub(now), NextClaimAt: &next}, nil
		}
		return Eligibility{Eligible: true}, nil
	}
	return Eligibility{}, fmt.Errorf("квест %s: неизвестный статус %q", def.Kind, st.Status)
}

// Claim отмечает квест выполненным, если награду можно забрать.
// Иначе возвращает *common.NotEligibleError и st не меняет по сути
// (возможен только переход pending_verification -> verified).
func (s *Scheduler) Claim(ctx context.Context, accountID string, def Definition, st *State, now time.Time) error {
	return s.ClaimWithTolerance(ctx, accountID, def, st, now, 0)
}

// ClaimWithTolerance — Claim для плановых начислений: повторяемый квест
// можно забрать на tolerance раньше конца кулдауна. Так запуск cron,
// пришедший чуть раньше вчерашнего, не теряет суточную награду.
//
// Параметры:
//   - tolerance: допуск к кулдауну, 0 — строгая проверка как в Claim
func (s *Scheduler) ClaimWithTolerance(ctx context.Context, accountID string, def Definition, st *State, now time.Time, tolerance time.Duration) error {
	if tolerance < 0 || (def.Recurring && tolerance >= def.Cooldown) {
		return fmt.Errorf("квест %s: допуск %s вне кулдауна %s", def.Kind, tolerance, def.Cooldown)
	}
	el, err := s.evaluate(ctx, accountID, def, st, now, tolerance)
	if err != nil {
		return err
	}
	if !el.Eligible {
		return &common.NotEligibleError{Kind: string(def.Kind), Reason: el.Reason, Remaining: el.Remaining}
	}

	t := now
	st.Status = StatusCompleted
	st.LastClaimTime = &t
	st.ClaimCount++
	return nil
}
