package dto

import "time"

// Delivery statuses reported per recipient.
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// TriggerRequest is the wire form of a notification trigger, accepted over HTTP and NATS.
type TriggerRequest struct {
	Kind           string `json:"kind" validate:"required,max=64"`
	CourseID       string `json:"course_id" validate:"required,max=128"`
	AssignmentID   uint   `json:"assignment_id" validate:"required"`
	TeamName       string `json:"team_name" validate:"omitempty,max=128"`
	StudentEmail   string `json:"student_email" validate:"omitempty,email,max=255"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128"`
}

// DeliveryResult is the outcome of one recipient's e-mail.
type DeliveryResult struct {
	Recipient string `json:"recipient"`
	Template  string `json:"template"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// Sent reports whether the e-mail was handed to the provider.
func (r DeliveryResult) Sent() bool {
	return r.Status == DeliveryStatusSent
}

// DispatchReport summarises one trigger handling.
type DispatchReport struct {
	DispatchID   string           `json:"dispatch_id"`
	EventKind    string           `json:"event_kind"`
	CourseID     string           `json:"course_id"`
	AssignmentID uint             `json:"assignment_id"`
	Sent         int              `json:"sent"`
	Failed       int              `json:"failed"`
	Results      []DeliveryResult `json:"results"`
}

// FailedResults returns only the failed deliveries.
func (r DispatchReport) FailedResults() []DeliveryResult {
	failed := make([]DeliveryResult, 0, r.Failed)
	for _, result := range r.Results {
		if !result.Sent() {
			failed = append(failed, result)
		}
	}
	return failed
}

// TickSummary describes one deadline tracker scan. Evaluated counts the crossings that were still pending;
// WindowStart is the earliest baseline among them, or the scan time when none were pending.
type TickSummary struct {
	StartedAt   time.Time `json:"started_at"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Evaluated   int       `json:"evaluated"`
	Fired       int       `json:"fired"`
	Failed      int       `json:"failed"`
}
