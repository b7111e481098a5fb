package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-notify/internal/dto"
)

// TriggerHandler handles one wire trigger.
type TriggerHandler interface {
	HandleRequest(ctx context.Context, req dto.TriggerRequest) (dto.DispatchReport, error)
}

// TriggerConsumer feeds trigger events published on NATS into the notification service.
type TriggerConsumer struct {
	conn    *nats.Conn
	subject string
	queue   string
	handler TriggerHandler
	timeout time.Duration
	logger  zerolog.Logger
}

// NewTriggerConsumer constructs a consumer. timeout bounds the handling of one message.
func NewTriggerConsumer(conn *nats.Conn, subject, queue string, handler TriggerHandler, timeout time.Duration, logger zerolog.Logger) *TriggerConsumer {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &TriggerConsumer{
		conn:    conn,
		subject: subject,
		queue:   queue,
		handler: handler,
		timeout: timeout,
		logger:  logger.With().Str("component", "trigger_consumer").Logger(),
	}
}

// Start subscribes with a queue group so that each trigger is handled by one replica.
// The subscription is drained once ctx is done.
func (c *TriggerConsumer) Start(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(c.subject, c.queue, func(msg *nats.Msg) {
		c.handleMessage(ctx, msg.Data)
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to drain trigger subscription")
		}
	}()

	c.logger.Info().Str("subject", c.subject).Str("queue", c.queue).Msg("trigger consumer subscribed")
	return nil
}

func (c *TriggerConsumer) handleMessage(ctx context.Context, payload []byte) {
	var req dto.TriggerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.logger.Warn().Err(err).Msg("invalid trigger payload")
		return
	}

	// a draining subscription still delivers buffered messages after ctx is done
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	report, err := c.handler.HandleRequest(ctx, req)
	switch {
	case err == nil:
		c.logger.Info().Str("kind", req.Kind).Str("dispatch_id", report.DispatchID).Int("sent", report.Sent).Msg("trigger handled")
	case errors.Is(err, ErrDuplicateTrigger):
		c.logger.Debug().Str("kind", req.Kind).Str("idempotency_key", req.IdempotencyKey).Msg("duplicate trigger ignored")
	default:
		c.logger.Error().Err(err).Str("kind", req.Kind).Str("course_id", req.CourseID).Uint("assignment_id", req.AssignmentID).Msg("trigger handling failed")
	}
}
