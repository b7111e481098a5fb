package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope of every notifier reply. Data holds a dispatch report, a scan summary
// or a health report.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess replies 200 with the payload.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus replies with a successful envelope; a zero status means 200.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return reply(c, status, true, orDefault(message, "success"), data)
}

// SendError replies with a failed envelope and no payload.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorWithData(c, status, message, nil)
}

// SendErrorWithData replies with a failed envelope that still carries a payload, e.g. a partially delivered
// dispatch report or a degraded health report.
func SendErrorWithData(c *fiber.Ctx, status int, message string, data interface{}) error {
	return reply(c, status, false, orDefault(message, "error"), data)
}

func reply(c *fiber.Ctx, status int, success bool, message string, data interface{}) error {
	return c.Status(status).JSON(APIResponse{
		Success: success,
		Data:    data,
		Message: message,
	})
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
