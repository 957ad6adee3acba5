package quest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/tokenarena/internal/common"
)

var t0 = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, delay time.Duration) *Scheduler {
	t.Helper()
	c, err := NewCatalog(DefaultDefinitions(24 * time.Hour)...)
	require.NoError(t, err)
	return NewScheduler(c, DelayVerifier{Delay: delay})
}

func TestSocialQuestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, 30*time.Second)
	def, err := s.Catalog().Get(KindFollowX)
	require.NoError(t, err)

	st := NewState(def)
	assert.Equal(t, StatusUnclaimed, st.Status)

	err = s.Claim(ctx, "acc", def, st, t0)
	var ne *common.NotEligibleError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "задание не начато", ne.Reason)

	require.True(t, s.Start(st, t0))
	assert.False(t, s.Start(st, t0.Add(time.Second)))
	assert.Equal(t, StatusPendingVerification, st.Status)

	err = s.Claim(ctx, "acc", def, st, t0.Add(10*time.Second))
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 20*time.Second, ne.Remaining)
	assert.Equal(t, StatusPendingVerification, st.Status)

	el, err := s.Evaluate(ctx, "acc", def, st, t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, el.Eligible)
	assert.Equal(t, StatusVerified, st.Status)

	require.NoError(t, s.Claim(ctx, "acc", def, st, t0.Add(31*time.Second)))
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 1, st.ClaimCount)

	// разовый квест повторно не забирается даже через сутки
	err = s.Claim(ctx, "acc", def, st, t0.Add(48*time.Hour))
	assert.ErrorIs(t, err, common.ErrNotEligible)
	assert.Equal(t, 1, st.ClaimCount)
}

func TestRecurringQuestCooldown(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, 0)
	def, err := s.Catalog().Get(KindDailyCheckin)
	require.NoError(t, err)

	st := NewState(def)
	assert.Equal(t, StatusVerified, st.Status)
	require.NoError(t, s.Claim(ctx, "acc", def, st, t0))

	cases := []struct {
		name     string
		after    time.Duration
		eligible bool
	}{
		{"right after", time.Minute, false},
		{"one second short", 24*time.Hour - time.Second, false},
		{"exactly 24h", 24 * time.Hour, true},
		{"two days later", 48 * time.Hour, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			probe := st.Clone()
			el, err := s.Evaluate(ctx, "acc", def, probe, t0.Add(tc.after))
			require.NoError(t, err)
			assert.Equal(t, tc.eligible, el.Eligible)
			if !tc.eligible {
				assert.Equal(t, 24*time.Hour-tc.after, el.Remaining)
				require.NotNil(t, el.NextClaimAt)
				assert.Equal(t, t0.Add(24*time.Hour), *el.NextClaimAt)
			}
		})
	}

	err = s.Claim(ctx, "acc", def, st, t0.Add(time.Hour))
	var ne *common.NotEligibleError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 23*time.Hour, ne.Remaining)

	require.NoError(t, s.Claim(ctx, "acc", def, st, t0.Add(25*time.Hour)))
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 2, st.ClaimCount)
	assert.Equal(t, t0.Add(25*time.Hour), *st.LastClaimTime)
}

type failingVerifier struct{}

func (failingVerifier) Verify(context.Context, string, Kind, time.Time, time.Time) (Verification, error) {
	return Verification{}, errors.New("api down")
}

func TestClaimWithToleranceAbsorbsEarlyRun(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, 0)
	def, err := s.Catalog().Get(KindDailyStakingReward)
	require.NoError(t, err)
	st := NewState(def)

	require.NoError(t, s.ClaimWithTolerance(ctx, "acc", def, st, t0.Add(200*time.Millisecond), time.Hour))

	// Следующий запуск пришёл на 100мс раньше суток: строгий Claim откажет, с допуском пройдёт.
	next := t0.Add(24*time.Hour + 100*time.Millisecond)
	strict := st.Clone()
	err = s.Claim(ctx, "acc", def, strict, next)
	var ne *common.NotEligibleError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "кулдаун", ne.Reason)

	require.NoError(t, s.ClaimWithTolerance(ctx, "acc", def, st, next, time.Hour))
	assert.Equal(t, 2, st.ClaimCount)

	err = s.ClaimWithTolerance(ctx, "acc", def, st, next.Add(time.Minute), time.Hour)
	require.ErrorAs(t, err, &ne)

	assert.Error(t, s.ClaimWithTolerance(ctx, "acc", def, st, next, 24*time.Hour))
	assert.Error(t, s.ClaimWithTolerance(ctx, "acc", def, st, next, -time.Second))
}

func TestVerifierIsPluggable(t *testing.T) {
	c, err := NewCatalog(DefaultDefinitions(24 * time.Hour)...)
	require.NoError(t, err)
	s := NewScheduler(c, failingVerifier{})
	def, _ := c.Get(KindJoinTelegram)

	st := NewState(def)
	s.Start(st, t0)
	err = s.Claim(context.Background(), "acc", def, st, t0.Add(time.Hour))
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotEligible)
	assert.Equal(t, StatusPendingVerification, st.Status)
}

func TestCatalogValidation(t *testing.T) {
	_, err := NewCatalog(Definition{Kind: "x", Reward: decimal.Zero})
	assert.Error(t, err)

	_, err = NewCatalog(Definition{Kind: "x", Reward: decimal.NewFromInt(1), Recurring: true})
	assert.Error(t, err)

	defs := DefaultDefinitions(time.Hour)
	_, err = NewCatalog(defs[0], defs[0])
	assert.Error(t, err)

	c, err := NewCatalog(defs...)
	require.NoError(t, err)
	assert.Len(t, c.List(), 5)
	_, err = c.Get("unknown")
	assert.ErrorIs(t, err, common.ErrUnknownQuest)
}

func TestNotEligibleErrorMessage(t *testing.T) {
	err := &common.NotEligibleError{Kind: "daily_checkin", Reason: "кулдаун", Remaining: 90 * time.Minute}
	assert.Contains(t, err.Error(), "daily_checkin")
	assert.Contains(t, err.Error(), "1h30m0s")
	assert.True(t, errors.Is(err, common.ErrNotEligible))
}
