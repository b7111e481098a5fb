package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-notify/internal/dto"
	"github.com/noah-isme/gema-notify/internal/repository"
	"github.com/noah-isme/gema-notify/internal/service"
	"github.com/noah-isme/gema-notify/internal/utils"
)

// DeadlineScanner runs one deadline tracker scan on demand.
type DeadlineScanner interface {
	Tick(ctx context.Context) (dto.TickSummary, error)
}

// NotificationHandler exposes notification triggers over HTTP.
type NotificationHandler struct {
	service service.NotificationService
	scanner DeadlineScanner
	logger  zerolog.Logger
}

// NewNotificationHandler constructs a handler instance. scanner may be nil, in which case the scan route is not registered.
func NewNotificationHandler(service service.NotificationService, scanner DeadlineScanner, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		scanner: scanner,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Post("/triggers", h.trigger)
	if h.scanner != nil {
		router.Post("/deadlines/scan", h.scan)
	}
}

func (h *NotificationHandler) trigger(c *fiber.Ctx) error {
	var payload dto.TriggerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	report, err := h.service.HandleRequest(c.UserContext(), payload)
	if err != nil {
		logger := requestLogger(h.logger, c)
		switch {
		case errors.Is(err, service.ErrInvalidTrigger), errors.Is(err, service.ErrUnknownEventKind):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrDuplicateTrigger):
			return utils.SendError(c, fiber.StatusConflict, "trigger already handled")
		case errors.Is(err, repository.ErrNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "course, assignment or team not found")
		case errors.Is(err, repository.ErrStoreUnavailable):
			logger.Warn().Err(err).Str("kind", payload.Kind).Msg("trigger aborted, store unavailable")
			return utils.SendError(c, fiber.StatusServiceUnavailable, "course data temporarily unavailable")
		case errors.Is(err, service.ErrPartialDelivery):
			logger.Warn().Err(err).Str("dispatch_id", report.DispatchID).Msg("trigger partially delivered")
			return utils.SendErrorWithData(c, fiber.StatusMultiStatus, "some notifications could not be delivered", report)
		default:
			logger.Error().Err(err).Str("kind", payload.Kind).Msg("failed to handle trigger")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to handle trigger")
		}
	}

	return utils.SendSuccess(c, "notifications dispatched", report)
}

func (h *NotificationHandler) scan(c *fiber.Ctx) error {
	summary, err := h.scanner.Tick(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("deadline scan failed")
		return utils.SendError(c, fiber.StatusServiceUnavailable, "deadline scan failed")
	}

	return utils.SendSuccess(c, "deadline scan completed", summary)
}
