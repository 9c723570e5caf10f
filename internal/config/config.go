// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata" // ROSTER_TZ must resolve in minimal images

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/auth"
	"github.com/mcoot/rosterbot/internal/services/registration"
	"github.com/mcoot/rosterbot/internal/services/schedule"
	redisstorage "github.com/mcoot/rosterbot/internal/storage/redis"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config is the full service configuration
type Config struct {
	HTTPHost string `env:"ROSTER_HTTP_HOST"`
	HTTPPort int    `env:"ROSTER_HTTP_PORT" envDefault:"8080"`
	WebBoard bool   `env:"ROSTER_WEB_BOARD" envDefault:"false"`

	Storage       string `env:"ROSTER_STORAGE" envDefault:"sqlite"`
	SQLitePath    string `env:"ROSTER_SQLITE_PATH" envDefault:"data/roster.db"`
	RedisURL      string `env:"ROSTER_REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisPoolSize int    `env:"ROSTER_REDIS_POOL_SIZE" envDefault:"10"`

	GatewayTokenHash string   `env:"ROSTER_GATEWAY_TOKEN_HASH"`
	AdminIDs         []string `env:"ROSTER_ADMIN_IDS" envSeparator:","`

	ChatID          string `env:"ROSTER_CHAT_ID"`
	AutopostEnabled bool   `env:"ROSTER_AUTOPOST_ENABLED" envDefault:"true"`
	AutopostTime    string `env:"ROSTER_AUTOPOST_TIME" envDefault:"19:00"`
	Timezone        string `env:"ROSTER_TZ" envDefault:"UTC"`
	WeekdaySlots    string `env:"ROSTER_WEEKDAY_SLOTS"`
	WeekendSlots    string `env:"ROSTER_WEEKEND_SLOTS"`

	OneSessionPerDay bool          `env:"ROSTER_ONE_SESSION_PER_DAY" envDefault:"false"`
	LockTimeout      time.Duration `env:"ROSTER_LOCK_TIMEOUT" envDefault:"2s"`

	LogLevel  string `env:"ROSTER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ROSTER_LOG_FORMAT" envDefault:"json"`
}

// Load parses the configuration from environment variables and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the environment parser cannot
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory, StorageSQLite, StorageRedis:
	default:
		return fmt.Errorf("ROSTER_STORAGE must be one of memory, sqlite, redis: got %q", c.Storage)
	}
	if c.Storage == StorageSQLite && c.SQLitePath == "" {
		return fmt.Errorf("ROSTER_SQLITE_PATH is required for sqlite storage")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("ROSTER_LOCK_TIMEOUT must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.AutopostAt(); err != nil {
		return err
	}
	if _, err := c.SchedulePolicy(); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Location returns the timezone calendar days are evaluated in
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ROSTER_TZ: %w", err)
	}
	return loc, nil
}

// AutopostAt returns the time of day the daily job runs
func (c *Config) AutopostAt() (model.ClockTime, error) {
	at, err := model.ParseClockTime(c.AutopostTime)
	if err != nil {
		return 0, fmt.Errorf("ROSTER_AUTOPOST_TIME: %w", err)
	}
	return at, nil
}

// SchedulePolicy returns the default sessions, overridden per day type when set
func (c *Config) SchedulePolicy() (schedule.Policy, error) {
	policy := schedule.DefaultPolicy()
	if c.WeekdaySlots != "" {
		slots, err := schedule.ParseSlots(c.WeekdaySlots)
		if err != nil {
			return policy, fmt.Errorf("ROSTER_WEEKDAY_SLOTS: %w", err)
		}
		policy.Weekday = slots
	}
	if c.WeekendSlots != "" {
		slots, err := schedule.ParseSlots(c.WeekendSlots)
		if err != nil {
			return policy, fmt.Errorf("ROSTER_WEEKEND_SLOTS: %w", err)
		}
		policy.Weekend = slots
	}
	return policy, nil
}

// RunnerConfig returns the daily job settings
func (c *Config) RunnerConfig() (schedule.RunnerConfig, error) {
	at, err := c.AutopostAt()
	if err != nil {
		return schedule.RunnerConfig{}, err
	}
	loc, err := c.Location()
	if err != nil {
		return schedule.RunnerConfig{}, err
	}
	return schedule.RunnerConfig{At: at, Location: loc, ChatID: c.ChatID}, nil
}

// EnginePolicy returns the registration rules
func (c *Config) EnginePolicy() registration.Policy {
	return registration.Policy{
		OneSessionPerDay: c.OneSessionPerDay,
		LockTimeout:      c.LockTimeout,
	}
}

// AuthConfig returns the gateway and admin settings
func (c *Config) AuthConfig() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.GatewayTokenHash = c.GatewayTokenHash
	for _, id := range c.AdminIDs {
		if id = strings.TrimSpace(id); id != "" {
			cfg.AdminIDs = append(cfg.AdminIDs, model.ExternalID(id))
		}
	}
	return cfg
}

// RedisConfig returns the Redis connection settings
func (c *Config) RedisConfig() redisstorage.Config {
	cfg := redisstorage.DefaultConfig()
	cfg.URL = c.RedisURL
	if c.RedisPoolSize > 0 {
		cfg.PoolSize = c.RedisPoolSize
	}
	return cfg
}

// NewLogger builds the service logger writing to w
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("ROSTER_LOG_LEVEL: %w", err)
	}
	return level, nil
}
