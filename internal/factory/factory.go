package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/rosterbot/internal/api"
	"github.com/mcoot/rosterbot/internal/config"
	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/dependencies/random"
	"github.com/mcoot/rosterbot/internal/messaging/sse"
	"github.com/mcoot/rosterbot/internal/services/auth"
	"github.com/mcoot/rosterbot/internal/services/publish"
	"github.com/mcoot/rosterbot/internal/services/registration"
	"github.com/mcoot/rosterbot/internal/services/schedule"
	"github.com/mcoot/rosterbot/internal/storage"
	"github.com/mcoot/rosterbot/internal/storage/memory"
	redisstorage "github.com/mcoot/rosterbot/internal/storage/redis"
	sqlitestorage "github.com/mcoot/rosterbot/internal/storage/sqlite"
	"github.com/mcoot/rosterbot/internal/web"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService *auth.Service
	Engine      *registration.Engine
	HubManager  *sse.HubManager
	Broker      *sse.Broker
	Publisher   *publish.Publisher
	Scheduler   *schedule.Scheduler
	Runner      *schedule.Runner
	Calendar    schedule.Calendar

	DefaultChat string
	WebBoard    bool
	Logger      *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "sqlite" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// AuthConfig holds gateway and admin settings
	AuthConfig auth.Config
	// EnginePolicy holds the registration rules
	// If zero value, defaults to registration.DefaultPolicy()
	EnginePolicy registration.Policy
	// SchedulePolicy lists the default sessions (optional)
	SchedulePolicy *schedule.Policy
	// RunnerConfig holds the daily job settings; its ChatID is also the
	// chat sessions without a message are posted to
	RunnerConfig schedule.RunnerConfig
	// WebBoard serves the read-only HTML roster board next to the API
	WebBoard bool
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	clk := clock.New()

	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = config.StorageMemory
	}

	switch storageType {
	case config.StorageMemory:
		store = memory.New(clk)
	case config.StorageSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		sqliteStore, err := sqlitestorage.Open(ctx, cfg.SQLitePath, clk)
		if err != nil {
			return nil, err
		}
		store = sqliteStore
	case config.StorageRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig, clk)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'sqlite' or 'redis'", storageType)
	}

	app, err := newWithDependencies(store, clk, random.New(), cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

// FromConfig creates an application from the environment configuration
func FromConfig(ctx context.Context, c *config.Config, logger *slog.Logger) (*App, error) {
	policy, err := c.SchedulePolicy()
	if err != nil {
		return nil, err
	}
	runnerCfg, err := c.RunnerConfig()
	if err != nil {
		return nil, err
	}
	redisCfg := c.RedisConfig()

	return New(ctx, Config{
		Logger:         logger,
		StorageType:    c.Storage,
		SQLitePath:     c.SQLitePath,
		RedisConfig:    &redisCfg,
		AuthConfig:     c.AuthConfig(),
		EnginePolicy:   c.EnginePolicy(),
		SchedulePolicy: &policy,
		RunnerConfig:   runnerCfg,
		WebBoard:       c.WebBoard,
	})
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) (*App, error) {
	authService, err := auth.New(clk, cfg.AuthConfig)
	if err != nil {
		return nil, err
	}

	schedulePolicy := schedule.DefaultPolicy()
	if cfg.SchedulePolicy != nil {
		schedulePolicy = *cfg.SchedulePolicy
	}
	runnerCfg := cfg.RunnerConfig
	if runnerCfg.At == 0 && runnerCfg.Location == nil {
		runnerCfg = schedule.DefaultRunnerConfig()
		runnerCfg.ChatID = cfg.RunnerConfig.ChatID
	}

	engine := registration.NewEngine(store, authService, clk, cfg.EnginePolicy, logger)
	hubManager := sse.NewHubManager(logger)
	broker := sse.NewBroker(hubManager, rnd, clk, logger)
	publisher := publish.NewPublisher(store, broker, runnerCfg.ChatID, logger)
	scheduler := schedule.NewScheduler(store, schedulePolicy, logger)
	runner := schedule.NewRunner(scheduler, publisher, clk, runnerCfg, logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		AuthService: authService,
		Engine:      engine,
		HubManager:  hubManager,
		Broker:      broker,
		Publisher:   publisher,
		Scheduler:   scheduler,
		Runner:      runner,
		Calendar:    schedule.NewCalendar(clk, runnerCfg.Location),
		DefaultChat: runnerCfg.ChatID,
		WebBoard:    cfg.WebBoard,
		Logger:      logger,
	}, nil
}

// Router builds the HTTP API for the app, with the roster board mounted at
// the root when enabled
func (a *App) Router() http.Handler {
	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:      a.Logger,
		AuthService: a.AuthService,
		Engine:      a.Engine,
		Publisher:   a.Publisher,
		Scheduler:   a.Scheduler,
		Calendar:    a.Calendar,
		HubManager:  a.HubManager,
		DefaultChat: a.DefaultChat,
	})
	if !a.WebBoard {
		return apiRouter
	}

	webRouter := web.NewRouter(web.RouterConfig{
		Logger:   a.Logger,
		Engine:   a.Engine,
		Calendar: a.Calendar,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)
	return mux
}

// Close ends every event stream and releases the storage backend
func (a *App) Close() error {
	a.HubManager.Close()
	return a.Storage.Close()
}
