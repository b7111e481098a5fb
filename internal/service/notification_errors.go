package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/gema-notify/internal/dto"
	"github.com/noah-isme/gema-notify/internal/models"
)

var (
	// ErrPartialDelivery indicates at least one recipient did not receive its e-mail.
	ErrPartialDelivery = errors.New("partial delivery failure")
	// ErrDuplicateTrigger indicates a trigger with the same idempotency key was already handled.
	ErrDuplicateTrigger = errors.New("duplicate notification trigger")
	// ErrInvalidTrigger indicates a trigger request that cannot be mapped to an event.
	ErrInvalidTrigger = errors.New("invalid notification trigger")
	// ErrUnknownEventKind indicates an event kind outside the supported set.
	ErrUnknownEventKind = errors.New("unknown notification event kind")
)

// PartialDeliveryError enumerates the recipients whose delivery failed. Recipients not listed were sent.
type PartialDeliveryError struct {
	Failed []dto.DeliveryResult
}

func (e *PartialDeliveryError) Error() string {
	recipients := make([]string, 0, len(e.Failed))
	for _, result := range e.Failed {
		recipients = append(recipients, maskEmailAddress(result.Recipient))
	}
	return fmt.Sprintf("%s: %d recipient(s) failed: %s", ErrPartialDelivery, len(e.Failed), strings.Join(recipients, ", "))
}

// Is reports equivalence with ErrPartialDelivery.
func (e *PartialDeliveryError) Is(target error) bool {
	return target == ErrPartialDelivery
}

// SchedulingError is a failure contained to one (assignment, deadline kind) unit of a tracker tick.
type SchedulingError struct {
	AssignmentID models.AssignmentID
	Kind         models.DeadlineKind
	Err          error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("deadline tracker: assignment %d (%s): %v", e.AssignmentID, e.Kind, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}
