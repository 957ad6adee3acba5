// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: добивание брошенных раундов
// и ежедневное начисление наград за стейкинг.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/economy"
)

// Economy — то, что задачи вызывают у оркестратора.
type Economy interface {
	SettleExpiredRounds(ctx context.Context) (int, error)
	AccrueStakingRewards(ctx context.Context) (economy.AccrualReport, error)
}

// Options — расписания задач в формате cron.
type Options struct {
	Timezone               string
	ExpiredRoundsSchedule  string
	StakingAccrualSchedule string
	// AutoAccrual выключает плановое начисление; награду тогда забирают вручную через квест.
	AutoAccrual bool
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron    *cron.Cron
	economy Economy
	opts    Options
}

// NewScheduler создаёт планировщик в часовом поясе из настроек.
// Паника в задаче не роняет процесс, а наложение запусков пропускается.
func NewScheduler(econ Economy, opts Options) *Scheduler {
	logger := cron.VerbosePrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLocation(common.LoadLocation(opts.Timezone)),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{cron: c, economy: econ, opts: opts}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.opts.ExpiredRoundsSchedule, func() { s.settleExpiredRounds(ctx) }); err != nil {
		return fmt.Errorf("некорректное расписание раундов %q: %w", s.opts.ExpiredRoundsSchedule, err)
	}

	if s.opts.AutoAccrual {
		if _, err := s.cron.AddFunc(s.opts.StakingAccrualSchedule, func() { s.accrueStakingRewards(ctx) }); err != nil {
			return fmt.Errorf("некорректное расписание начислений %q: %w", s.opts.StakingAccrualSchedule, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"timezone":     s.opts.Timezone,
		"jobs":         len(s.cron.Entries()),
		"auto_accrual": s.opts.AutoAccrual,
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) settleExpiredRounds(ctx context.Context) {
	n, err := s.economy.SettleExpiredRounds(ctx)
	if err != nil {
		log.WithError(err).WithField("settled", n).Error("[CRON] Ошибка расчёта просроченных раундов")
		return
	}
	if n > 0 {
		log.WithField("settled", n).Debug("[CRON] Просроченные раунды рассчитаны")
	}
}

func (s *Scheduler) accrueStakingRewards(ctx context.Context) {
	log.Info("[CRON] Начисление наград за стейкинг")
	report, err := s.economy.AccrueStakingRewards(ctx)
	if err != nil {
		log.WithError(err).WithField("credited", report.Credited).Error("[CRON] Ошибка начисления наград")
	}
}
