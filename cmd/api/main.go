package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/license-service/internal/api/http"
	"github.com/spec-kit/license-service/internal/api/http/handlers"
	"github.com/spec-kit/license-service/internal/auth"
	"github.com/spec-kit/license-service/internal/config"
	"github.com/spec-kit/license-service/internal/events"
	"github.com/spec-kit/license-service/internal/observability"
	"github.com/spec-kit/license-service/internal/persistence"
	"github.com/spec-kit/license-service/internal/repository"
	"github.com/spec-kit/license-service/internal/service"
	"github.com/spec-kit/license-service/internal/worker"
)

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required by the license server")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	verificationService := service.NewVerificationService(service.VerificationDependencies{
		Licenses:   repository.NewLicenseRepository(pg.PoolHandle()),
		Dispatcher: dispatcher,
		Recorder:   metrics,
		Logger:     logger,
	})

	var authMiddleware *auth.AuthMiddleware
	if cfg.Auth.VerifySecret != "" {
		authMiddleware = auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.VerifySecret))
	} else {
		logger.Warn("AUTH_VERIFY_SECRET not set; accepting unsigned verification requests")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{"postgres": pg}),
		Verify:         handlers.NewVerifyHandler(verificationService),
		AuthMiddleware: authMiddleware,
		RateLimiter:    httptransport.RateLimit(cfg.Verify.RatePerSecond, cfg.Verify.Burst, logger),
		Registry:       metrics.Registry(),
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
