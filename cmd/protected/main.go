// Command protected serves a small fiber app that only answers when its license verifies.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/license-service/internal/api/http/handlers"
	"github.com/spec-kit/license-service/internal/config"
	"github.com/spec-kit/license-service/internal/observability"
	"github.com/spec-kit/license-service/internal/persistence"
	"github.com/spec-kit/license-service/internal/worker"
	"github.com/spec-kit/license-service/pkg/licensegate"
)

const pruneInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	opts := []licensegate.Option{licensegate.WithLogger(logger), licensegate.WithMetrics(metrics)}
	pingers := map[string]handlers.Pinger{}

	var redis *persistence.Redis
	if cfg.Gate.CacheBackend == config.BackendRedis || cfg.Gate.SessionStore == config.BackendRedis {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		pingers["redis"] = redis
	}

	switch cfg.Gate.CacheBackend {
	case config.BackendFile:
		opts = append(opts, licensegate.WithStore(licensegate.NewFileStore(cfg.Gate.CacheDir)))
	case config.BackendRedis:
		opts = append(opts, licensegate.WithStore(licensegate.NewRedisStore(redis.Universal(), "")))
	}

	var memorySessions *licensegate.MemorySessionStore
	switch cfg.Gate.SessionStore {
	case config.BackendRedis:
		opts = append(opts, licensegate.WithSessionStore(licensegate.NewRedisSessionStore(redis.Universal(), "")))
	default:
		memorySessions = licensegate.NewMemorySessionStore()
		opts = append(opts, licensegate.WithSessionStore(memorySessions))
		worker.StartPruneWorker(ctx, "license_sessions", memorySessions, pruneInterval, logger)
	}

	gate, err := licensegate.NewFromEndpoint(cfg.Gate.Endpoint, cfg.Auth.VerifySecret, cfg.Gate.Settings, opts...)
	if err != nil {
		logger.Fatal("failed to build license gate", zap.Error(err))
	}

	pingers["license_endpoint"] = gate
	app := newApp(appConfig{
		Name:        cfg.App.Name,
		Version:     cfg.App.Version,
		LicenseKey:  cfg.Gate.LicenseKey,
		ProductName: cfg.Gate.ProductName,
		SessionTTL:  cfg.Gate.Settings.SessionTTL(),
		Gate:        gate,
		Metrics:     metrics,
		Pingers:     pingers,
		Logger:      logger,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
