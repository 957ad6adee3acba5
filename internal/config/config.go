// Package config загружает конфигурацию движка экономики из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Хранилища аккаунтов.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Store ---
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"arena.db"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"arena"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"token_arena"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Events ---
	// Пустой RABBITMQ_URL — события только в лог.
	RabbitMQURL    string `envconfig:"RABBITMQ_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"economy.events"`

	// --- Wager ---
	RoundTimeout        time.Duration   `envconfig:"ROUND_TIMEOUT" default:"5s"`
	PlatformFeeRate     decimal.Decimal `envconfig:"PLATFORM_FEE_RATE" default:"0.05"`
	BotPayoutMultiplier decimal.Decimal `envconfig:"BOT_PAYOUT_MULTIPLIER" default:"1"`
	PvPPayoutMultiplier decimal.Decimal `envconfig:"PVP_PAYOUT_MULTIPLIER" default:"2"`
	OpponentHistorySize int             `envconfig:"OPPONENT_HISTORY_SIZE" default:"5"`

	// --- Economy ---
	// Курс spendable -> secondary: сколько единиц второй валюты за один токен.
	TokenToSecondaryRate decimal.Decimal `envconfig:"TOKEN_TO_SECONDARY_RATE" default:"0.01"`
	AmountScale          int32           `envconfig:"AMOUNT_SCALE" default:"8"`
	SignupSpendableGrant decimal.Decimal `envconfig:"SIGNUP_SPENDABLE_GRANT" default:"1000"`
	SignupWagerGrant     decimal.Decimal `envconfig:"SIGNUP_WAGER_GRANT" default:"100"`

	// --- Staking ---
	// max — максимальный штраф среди позиций ко всем досрочным; per_position — свой у каждой.
	StakingPenaltyPolicy string `envconfig:"STAKING_PENALTY_POLICY" default:"max"`
	// Плановое начисление может прийти на столько раньше суточного кулдауна.
	StakingAccrualTolerance time.Duration `envconfig:"STAKING_ACCRUAL_TOLERANCE" default:"1h"`

	// --- Quests ---
	QuestCooldown          time.Duration `envconfig:"QUEST_COOLDOWN" default:"24h"`
	QuestVerificationDelay time.Duration `envconfig:"QUEST_VERIFICATION_DELAY" default:"30s"`

	// --- Retries ---
	ConflictRetries   int           `envconfig:"CONFLICT_RETRIES" default:"5"`
	StoreRetries      int           `envconfig:"STORE_RETRIES" default:"3"`
	StoreRetryBackoff time.Duration `envconfig:"STORE_RETRY_BACKOFF" default:"50ms"`

	// --- Rate Limiting ---
	BetRateLimitRequests int           `envconfig:"BET_RATE_LIMIT_REQUESTS" default:"30"`
	BetRateLimitWindow   time.Duration `envconfig:"BET_RATE_LIMIT_WINDOW" default:"1m"`

	// --- Jobs ---
	JobExpiredRoundsSchedule  string `envconfig:"JOB_EXPIRED_ROUNDS_SCHEDULE" default:"@every 30s"`
	JobStakingAccrualSchedule string `envconfig:"JOB_STAKING_ACCRUAL_SCHEDULE" default:"0 0 * * *"`
	JobBatchSize              int    `envconfig:"JOB_BATCH_SIZE" default:"200"`

	// --- Feature Flags ---
	FeatureAutoAccrual bool `envconfig:"FEATURE_AUTO_ACCRUAL" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для STORE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH не задан")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("неизвестный STORE_DRIVER %q", c.StoreDriver)
	}

	if c.RoundTimeout <= 0 {
		return fmt.Errorf("ROUND_TIMEOUT должен быть > 0")
	}
	one := decimal.NewFromInt(1)
	if c.PlatformFeeRate.IsNegative() || c.PlatformFeeRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("PLATFORM_FEE_RATE должен быть в диапазоне [0, 1)")
	}
	if !c.BotPayoutMultiplier.IsPositive() || !c.PvPPayoutMultiplier.IsPositive() {
		return fmt.Errorf("множители выплат должны быть > 0")
	}
	if !c.TokenToSecondaryRate.IsPositive() {
		return fmt.Errorf("TOKEN_TO_SECONDARY_RATE должен быть > 0")
	}
	if c.AmountScale < 0 || c.AmountScale > 18 {
		return fmt.Errorf("AMOUNT_SCALE должен быть в диапазоне 0–18")
	}
	if c.SignupSpendableGrant.IsNegative() || c.SignupWagerGrant.IsNegative() {
		return fmt.Errorf("стартовые гранты не могут быть отрицательными")
	}
	if c.StakingPenaltyPolicy != "max" && c.StakingPenaltyPolicy != "per_position" {
		return fmt.Errorf("STAKING_PENALTY_POLICY должен быть max или per_position")
	}
	if c.QuestCooldown <= 0 || c.QuestVerificationDelay < 0 {
		return fmt.Errorf("некорректные QUEST_COOLDOWN/QUEST_VERIFICATION_DELAY")
	}
	if c.StakingAccrualTolerance < 0 || c.StakingAccrualTolerance >= c.QuestCooldown {
		return fmt.Errorf("STAKING_ACCRUAL_TOLERANCE должен быть в диапазоне [0, QUEST_COOLDOWN)")
	}
	if c.ConflictRetries < 0 || c.StoreRetries < 0 || c.StoreRetryBackoff < 0 {
		return fmt.Errorf("параметры повторов не могут быть отрицательными")
	}
	if c.JobBatchSize <= 0 {
		return fmt.Errorf("JOB_BATCH_SIZE должен быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
