package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api/middleware"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/asset"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/config"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/db"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/idempotency"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/notify"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/observability"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and background workers, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	idemStore := idempotency.NewStore(redisClient, pool, cfg.IdempotencyTTL)
	store := repository.NewStore(pool)

	var notifier service.Notifier = notify.NopNotifier{}
	var processor *notify.Processor
	if cfg.NotificationsEnabled {
		queueNotifier := notify.NewNotifier(cfg.RedisAddr)
		defer queueNotifier.Close()
		notifier = queueNotifier

		processor = notify.NewProcessor(cfg.RedisAddr)
		processor.Start()
		logger.Info("notification processor started", zap.String("redis", cfg.RedisAddr))
	}

	registry := asset.NewRegistry(store, cfg.AssetCacheTTL)
	lockSvc := service.NewLockService(store, registry)
	sweeper := worker.NewLockSweeper(lockSvc).
		WithInterval(cfg.LockSweepInterval).
		WithBatchSize(cfg.LockSweepBatchSize)
	stopSweeper := sweeper.Run(ctx)
	logger.Info("lock sweeper started", zap.Duration("interval", cfg.LockSweepInterval), zap.Int32("batch", cfg.LockSweepBatchSize))

	reconciliationSvc := service.NewReconciliationService(store)
	reconciliationWorker := worker.NewReconciliationWorker(reconciliationSvc).
		WithInterval(cfg.ReconciliationInterval)
	stopReconciliation := reconciliationWorker.Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval))

	router := api.NewRouter(cfg, logger, pool, store, idemStore, redisClient, notifier)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping background workers")
	stopSweeper()
	stopReconciliation()
	if processor != nil {
		processor.Shutdown()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
