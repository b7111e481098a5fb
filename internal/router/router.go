package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-notify/internal/config"
	"github.com/noah-isme/gema-notify/internal/handler"
	"github.com/noah-isme/gema-notify/internal/middleware"
	"github.com/noah-isme/gema-notify/internal/observability"
)

// Roles allowed to fire notification triggers by hand.
var triggerRoles = []string{"professor", "admin"}

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
	HealthProbes        map[string]handler.HealthProbe
	// TriggerRateLimit caps trigger calls per subject per second. Zero uses the middleware default.
	TriggerRateLimit int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications",
			jwtMiddleware,
			middleware.RequireRole(triggerRoles...),
			middleware.RateLimit("notifications", deps.TriggerRateLimit, time.Second),
		)
		deps.NotificationHandler.Register(notifications)
	}
}
