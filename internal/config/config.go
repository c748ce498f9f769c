package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	PostgresDSN     string  `env:"POSTGRES_DSN"`
	TargetGameID    int     `env:"TARGET_GAME_ID" envDefault:"0"`
	AllowedGroupIDs []int64 `env:"ALLOWED_GROUP_IDS" envSeparator:","`
	AdminUserIDs    []int64 `env:"ADMIN_USER_IDS" envSeparator:","`

	OneBotAccessToken string `env:"ONEBOT_ACCESS_TOKEN"`

	BroadcastEnabled    bool          `env:"BROADCAST_ENABLED" envDefault:"false"`
	PollInterval        time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`
	CycleTimeout        time.Duration `env:"CYCLE_TIMEOUT" envDefault:"30s"`
	MinLookback         time.Duration `env:"MIN_LOOKBACK" envDefault:"10s"`
	DedupCeiling        int           `env:"DEDUP_CEILING" envDefault:"1000"`
	DedupKeep           int           `env:"DEDUP_KEEP" envDefault:"500"`
	SendTimeout         time.Duration `env:"SEND_TIMEOUT" envDefault:"5s"`
	DeliveryConcurrency int           `env:"DELIVERY_CONCURRENCY" envDefault:"8"`
	Timezone            string        `env:"TIMEZONE" envDefault:"Asia/Shanghai"`

	RedisURL        string        `env:"REDIS_URL"`
	RankingCacheTTL time.Duration `env:"RANKING_CACHE_TTL" envDefault:"10s"`

	JournalPath string `env:"JOURNAL_PATH"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.CycleTimeout <= 0 {
		return fmt.Errorf("CYCLE_TIMEOUT must be positive, got %s", c.CycleTimeout)
	}
	if c.DedupKeep <= 0 || c.DedupCeiling < c.DedupKeep {
		return fmt.Errorf("DEDUP_KEEP (%d) must be positive and not exceed DEDUP_CEILING (%d)", c.DedupKeep, c.DedupCeiling)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("loading TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the display zone for publish times.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
