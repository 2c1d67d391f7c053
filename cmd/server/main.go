package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/tabletop-bank/internal/api"
	"github.com/mcoot/tabletop-bank/internal/factory"
	redisstorage "github.com/mcoot/tabletop-bank/internal/storage/redis"
)

func main() {
	// A .env file is optional
	_ = godotenv.Load()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	cfg := factory.Config{
		Logger:           logger,
		StorageType:      os.Getenv("STORAGE_TYPE"),
		SQLitePath:       getEnvOrDefault("SQLITE_PATH", "data/bank.db"),
		AdminPIN:         os.Getenv("BANK_ADMIN_PIN"),
		SyncHistoryLimit: getEnvInt(logger, "SYNC_HISTORY_LIMIT", 0),
	}

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	// Create application factory
	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	if err := app.Bank.Load(context.Background()); err != nil {
		logger.Error("failed to load ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !app.Auth.Enabled() {
		logger.Warn("BANK_ADMIN_PIN not set, ledger reset is unguarded")
	}

	go app.Hub.Run()

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		BankService:    app.Bank,
		AuthService:    app.Auth,
		Hub:            app.Hub,
		MetricsHandler: promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = getEnvInt(logger, "PORT", serverConfig.Port)
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		// Close event streams first so Shutdown does not wait on them
		app.Hub.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(logger *slog.Logger, key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		logger.Warn("ignoring invalid integer setting", slog.String("key", key), slog.String("value", val))
		return defaultVal
	}
	return n
}
