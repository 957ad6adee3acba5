// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: хранилище, публикатор событий, каталоги,
// оркестратор экономики и планировщик задач.
package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tokenarena/internal/config"
	"serotonyl.ru/tokenarena/internal/db/postgres"
	"serotonyl.ru/tokenarena/internal/db/sqlite"
	"serotonyl.ru/tokenarena/internal/events"
	"serotonyl.ru/tokenarena/internal/features/account"
	"serotonyl.ru/tokenarena/internal/features/economy"
	"serotonyl.ru/tokenarena/internal/features/quest"
	"serotonyl.ru/tokenarena/internal/features/staking"
	"serotonyl.ru/tokenarena/internal/features/wager"
	"serotonyl.ru/tokenarena/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Economy   *economy.Orchestrator
	Scheduler *jobs.Scheduler
	Store     account.Store
	Publisher events.Publisher

	closers []func()
}

// New создаёт и инициализирует приложение.
// Порядок важен: хранилище -> события -> каталоги -> оркестратор -> задачи.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	// === 1. Хранилище аккаунтов ===
	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	// === 2. События ===
	a.Publisher = openPublisher(cfg)
	a.closers = append(a.closers, a.Publisher.Close)

	// === 3. Каталоги и правила ===
	quests, err := quest.NewCatalog(quest.DefaultDefinitions(cfg.QuestCooldown)...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка каталога квестов: %w", err)
	}
	scheduler := quest.NewScheduler(quests, quest.DelayVerifier{Delay: cfg.QuestVerificationDelay})
	opponents := wager.NewRandomOpponents(nil, cfg.OpponentHistorySize)

	opts, err := economy.OptionsFromConfig(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	// === 4. Оркестратор ===
	orchestrator, err := economy.NewOrchestrator(store, staking.DefaultCatalog(), scheduler, opponents, a.Publisher, opts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка создания оркестратора: %w", err)
	}
	a.Economy = orchestrator
	a.closers = append(a.closers, orchestrator.Close)

	// === 5. Фоновые задачи ===
	a.Scheduler = jobs.NewScheduler(orchestrator, jobs.Options{
		Timezone:               cfg.AppTimezone,
		ExpiredRoundsSchedule:  cfg.JobExpiredRoundsSchedule,
		StakingAccrualSchedule: cfg.JobStakingAccrualSchedule,
		AutoAccrual:            cfg.FeatureAutoAccrual,
	})

	log.WithFields(log.Fields{
		"store":         cfg.StoreDriver,
		"round_timeout": cfg.RoundTimeout,
		"fee_rate":      cfg.PlatformFeeRate.String(),
	}).Info("Приложение собрано")
	return a, nil
}

// Close освобождает ресурсы в обратном порядке создания.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (account.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return account.NewRepository(pool), nil

	case config.StoreDriverSQLite:
		store, err := sqlite.Open(ctx, log.StandardLogger(), cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				log.WithError(err).Warn("Ошибка закрытия SQLite")
			}
		})
		return store, nil

	case config.StoreDriverMemory:
		log.Warn("Хранилище в памяти: данные пропадут после перезапуска")
		return account.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("неизвестный STORE_DRIVER %q", cfg.StoreDriver)
}

// openPublisher подключается к RabbitMQ, а без него пишет события в лог.
func openPublisher(cfg *config.Config) events.Publisher {
	if cfg.RabbitMQURL == "" {
		return events.NewLogPublisher(log.StandardLogger())
	}
	p, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
	if err != nil {
		log.WithError(err).Warn("RabbitMQ недоступен, события пишутся в лог")
		return events.NewLogPublisher(log.StandardLogger())
	}
	return p
}
