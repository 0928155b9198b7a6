package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/license-service/internal/api/http/handlers"
	"github.com/spec-kit/license-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Verify         *handlers.VerifyHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    fiber.Handler
	Registry       *prometheus.Registry
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	verifyChain := []fiber.Handler{}
	if cfg.RateLimiter != nil {
		verifyChain = append(verifyChain, cfg.RateLimiter)
	}
	verifyChain = append(verifyChain, cfg.AuthMiddleware.Handle, cfg.Verify.Verify)
	app.Post("/verify", verifyChain...)
	app.Post("/api/verify", verifyChain...)
}
