package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcoot/tabletop-bank/internal/dependencies/clock"
	"github.com/mcoot/tabletop-bank/internal/dependencies/idgen"
	"github.com/mcoot/tabletop-bank/internal/observability"
	"github.com/mcoot/tabletop-bank/internal/services/auth"
	"github.com/mcoot/tabletop-bank/internal/services/bank"
	"github.com/mcoot/tabletop-bank/internal/services/wallet"
	"github.com/mcoot/tabletop-bank/internal/sse"
	"github.com/mcoot/tabletop-bank/internal/storage"
	"github.com/mcoot/tabletop-bank/internal/storage/memory"
	redisstorage "github.com/mcoot/tabletop-bank/internal/storage/redis"
	"github.com/mcoot/tabletop-bank/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// App contains all wired application components. A bank server uses Bank,
// Auth and Hub; a player device uses Wallet. Both share one storage backend
// under different keys.
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock
	IDs   idgen.Generator

	// Observability
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// Services
	Bank   *bank.Service
	Wallet *wallet.Service
	Auth   *auth.Service
	Hub    *sse.Hub

	closer io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// AdminPIN guards bank resets; empty disables the guard
	AdminPIN string
	// AuthConfig tunes PIN lockout (optional)
	AuthConfig auth.Config
	// SyncHistoryLimit caps history in sync payloads (optional)
	SyncHistoryLimit int
}

// New creates a new application with all dependencies wired.
// State is not loaded; call Load on the services that will be used.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, closer, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	clk := clock.New()
	guard, err := auth.New(cfg.AdminPIN, clk, cfg.AuthConfig)
	if err != nil {
		closeQuietly(closer)
		return nil, fmt.Errorf("admin guard: %w", err)
	}

	app := newWithDependencies(store, clk, idgen.New(), guard, bank.Config{SyncHistoryLimit: cfg.SyncHistoryLimit}, logger)
	app.closer = closer
	return app, nil
}

func openStorage(cfg Config) (storage.Storage, io.Closer, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, nil, err
		}
		return redisStore, redisStore, nil
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		sqliteStore, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqliteStore, sqliteStore, nil
	default:
		return nil, nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sqlite'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	ids idgen.Generator,
	guard *auth.Service,
	bankCfg bank.Config,
	logger *slog.Logger,
) *App {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	hub := sse.NewHub(logger)
	bankService := bank.New(store, clk, metrics, sse.NewPublisher(hub, logger), bankCfg, logger)
	walletService := wallet.New(store, clk, ids, metrics, logger)

	return &App{
		Storage:  store,
		Clock:    clk,
		IDs:      ids,
		Registry: registry,
		Metrics:  metrics,
		Bank:     bankService,
		Wallet:   walletService,
		Auth:     guard,
		Hub:      hub,
	}
}

// Close releases the storage backend and stops the event hub
func (a *App) Close() error {
	a.Hub.Close()
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
