package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-notify/internal/dto"
	"github.com/noah-isme/gema-notify/internal/observability"
)

// EmailDispatcher renders and sends each envelope exactly once, isolating failures per recipient.
type EmailDispatcher struct {
	renderer    *EmailRenderer
	mailer      Mailer
	sendTimeout time.Duration
	concurrency int
	logger      zerolog.Logger
}

// NewEmailDispatcher constructs a dispatcher. Non-positive limits fall back to 10s per send and 8 parallel sends.
func NewEmailDispatcher(renderer *EmailRenderer, mailer Mailer, sendTimeout time.Duration, concurrency int, logger zerolog.Logger) *EmailDispatcher {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	if renderer == nil {
		renderer = NewEmailRenderer()
	}
	return &EmailDispatcher{
		renderer:    renderer,
		mailer:      mailer,
		sendTimeout: sendTimeout,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "email_dispatcher").Logger(),
	}
}

// SendAll attempts every envelope. Results follow the order of envelopes regardless of completion order.
// There are no retries; a failed recipient is reported and the others are still attempted.
func (d *EmailDispatcher) SendAll(ctx context.Context, envelopes []Envelope) dto.DispatchReport {
	results := make([]dto.DeliveryResult, len(envelopes))

	var group errgroup.Group
	group.SetLimit(d.concurrency)

	for i, envelope := range envelopes {
		i, envelope := i, envelope
		group.Go(func() error {
			results[i] = d.send(ctx, envelope)
			return nil
		})
	}
	_ = group.Wait()

	report := dto.DispatchReport{Results: results}
	for _, result := range results {
		if result.Sent() {
			report.Sent++
		} else {
			report.Failed++
		}
		observability.NotificationsDispatched().WithLabelValues(result.Template, result.Status).Inc()
	}

	return report
}

func (d *EmailDispatcher) send(ctx context.Context, envelope Envelope) dto.DeliveryResult {
	result := dto.DeliveryResult{
		Recipient: envelope.Recipient,
		Template:  string(envelope.Template),
		Status:    dto.DeliveryStatusSent,
	}

	msg, err := d.renderer.Render(envelope)
	if err == nil {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err = d.mailer.Send(sendCtx, msg)
		cancel()
	}

	if err != nil {
		result.Status = dto.DeliveryStatusFailed
		result.Reason = err.Error()
		d.logger.Warn().
			Err(err).
			Str("to", maskEmailAddress(envelope.Recipient)).
			Str("template", result.Template).
			Msg("notification delivery failed")
	}

	return result
}
