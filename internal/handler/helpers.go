package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-notify/internal/middleware"
)

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func subjectFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals("subject").(string); ok {
		return v
	}
	return ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		ctx := logger.With()
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			ctx = ctx.Str("correlation_id", correlation)
		}
		if subject := subjectFromContext(c); subject != "" {
			ctx = ctx.Str("subject", subject).Str("role", userRoleFromContext(c))
		}
		logger = ctx.Logger()
	}
	return &logger
}
