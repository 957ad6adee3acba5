package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/tokenarena/internal/features/economy"
)

type stubEconomy struct {
	mu         sync.Mutex
	sweeps     int
	accruals   int
	sweepErr   error
	accrualErr error
}

func (e *stubEconomy) SettleExpiredRounds(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sweeps++
	return 1, e.sweepErr
}

func (e *stubEconomy) AccrueStakingRewards(context.Context) (economy.AccrualReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.accruals++
	return economy.AccrualReport{Credited: 1, Total: decimal.NewFromInt(1)}, e.accrualErr
}

func TestStartRegistersJobs(t *testing.T) {
	cases := []struct {
		name        string
		autoAccrual bool
		jobs        int
	}{
		{"with accrual", true, 2},
		{"without accrual", false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScheduler(&stubEconomy{}, Options{
				Timezone:               "Europe/Moscow",
				ExpiredRoundsSchedule:  "@every 30s",
				StakingAccrualSchedule: "0 0 * * *",
				AutoAccrual:            tc.autoAccrual,
			})
			require.NoError(t, s.Start(context.Background()))
			defer s.Stop()
			assert.Len(t, s.cron.Entries(), tc.jobs)
		})
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&stubEconomy{}, Options{
		Timezone:               "UTC",
		ExpiredRoundsSchedule:  "every now and then",
		StakingAccrualSchedule: "0 0 * * *",
	})
	assert.Error(t, s.Start(context.Background()))
}

func TestJobsCallEconomy(t *testing.T) {
	econ := &stubEconomy{sweepErr: errors.New("boom")}
	s := NewScheduler(econ, Options{Timezone: "UTC"})

	s.settleExpiredRounds(context.Background())
	s.accrueStakingRewards(context.Background())
	s.accrueStakingRewards(context.Background())

	assert.Equal(t, 1, econ.sweeps)
	assert.Equal(t, 2, econ.accruals)
}
