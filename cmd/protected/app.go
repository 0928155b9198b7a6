package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spec-kit/license-service/internal/api/http/handlers"
	"github.com/spec-kit/license-service/internal/observability"
	"github.com/spec-kit/license-service/pkg/licensegate"
)

type appConfig struct {
	Name        string
	Version     string
	LicenseKey  string
	ProductName string
	SessionTTL  time.Duration
	Gate        *licensegate.Gate
	Metrics     *observability.Metrics
	Pingers     map[string]handlers.Pinger
	Logger      *zap.Logger
}

// Paths served without a license check.
var openPaths = []string{"/health/live", "/health/ready", "/metrics"}

func newApp(cfg appConfig) *fiber.App {
	sessions := session.New(session.Config{
		Expiration:     cfg.SessionTTL,
		CookieHTTPOnly: true,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	})
	health := handlers.NewHealthHandler(cfg.Name, cfg.Version, cfg.Pingers)

	app := fiber.New(fiber.Config{AppName: cfg.Name})
	app.Use(observability.RequestLogger(cfg.Logger, cfg.Metrics))
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))

	app.Use(licensegate.Middleware(cfg.Gate, licensegate.MiddlewareConfig{
		LicenseKey:  cfg.LicenseKey,
		ProductName: cfg.ProductName,
		Sessions:    sessions,
		SkipPaths:   openPaths,
		Logger:      cfg.Logger,
	}))

	app.Get("/", homePage(cfg.ProductName))
	app.Post("/logout", logout(cfg.Gate, sessions))
	return app
}

func homePage(productName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		verdict, _ := licensegate.VerdictFromContext(c)
		data := fiber.Map{
			"product": productName,
			"message": verdict.Message,
		}
		if verdict.LicenseData != nil {
			data["client_name"] = verdict.LicenseData.ClientName
			data["expiration_date"] = verdict.LicenseData.ExpirationDate
		}
		return c.JSON(fiber.Map{"data": data})
	}
}

// logout ends the fiber session and drops the gate's memo for it, so the next visitor on this
// browser is verified again.
func logout(gate *licensegate.Gate, sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessions.Get(c)
		if err != nil {
			return err
		}
		gate.EndSession(c.UserContext(), sess.ID())
		if err := sess.Destroy(); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
