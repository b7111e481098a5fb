package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-notify/internal/dto"
	"github.com/noah-isme/gema-notify/internal/models"
	"github.com/noah-isme/gema-notify/internal/observability"
	"github.com/noah-isme/gema-notify/internal/repository"
)

// NotificationService exposes one entry point per notification trigger.
// Each resolves identifiers, decides recipients, and dispatches the e-mails.
type NotificationService interface {
	AssignmentCreatedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error)
	AssignmentSubmittedEmail(ctx context.Context, courseID models.CourseID, team models.TeamName, assignmentID models.AssignmentID) (dto.DispatchReport, error)
	AllAssignmentsSubmittedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error)
	PeerReviewAssignedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error)
	PeerReviewSubmittedEmail(ctx context.Context, reviewer models.StudentEmail, courseID models.CourseID, reviewedTeam models.TeamName, assignmentID models.AssignmentID) (dto.DispatchReport, error)
	AllPeerReviewsSubmittedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error)
	AssignmentDeadlinePassed(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error)
	PeerReviewDeadlinePassed(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error)
	GradeReceivedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID, team models.TeamName) (dto.DispatchReport, error)
	OutlierDetectedEmail(ctx context.Context, courseID models.CourseID, team models.TeamName, assignmentID models.AssignmentID) (dto.DispatchReport, error)

	Trigger(ctx context.Context, event NotificationEvent) (dto.DispatchReport, error)
	HandleRequest(ctx context.Context, req dto.TriggerRequest) (dto.DispatchReport, error)
}

// NotificationServiceOptions tunes timeouts of the trigger workflow.
type NotificationServiceOptions struct {
	LookupTimeout time.Duration
	DedupeTTL     time.Duration
}

type notificationService struct {
	rules         *NotificationRules
	dispatcher    *EmailDispatcher
	deliveries    repository.DeliveryRepository
	cache         *redis.Client
	validator     *validator.Validate
	lookupTimeout time.Duration
	dedupeTTL     time.Duration
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// NewNotificationService constructs the trigger workflow. deliveries and cache are optional.
func NewNotificationService(rules *NotificationRules, dispatcher *EmailDispatcher, deliveries repository.DeliveryRepository, cache *redis.Client, validate *validator.Validate, opts NotificationServiceOptions, logger zerolog.Logger) NotificationService {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 10 * time.Minute
	}
	if validate == nil {
		validate = validator.New()
	}

	return &notificationService{
		rules:         rules,
		dispatcher:    dispatcher,
		deliveries:    deliveries,
		cache:         cache,
		validator:     validate,
		lookupTimeout: opts.LookupTimeout,
		dedupeTTL:     opts.DedupeTTL,
		logger:        logger.With().Str("component", "notification_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/gema-notify/internal/service/notification"),
	}
}

func (s *notificationService) AssignmentCreatedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewAssignmentCreated(courseID, assignmentID))
}

func (s *notificationService) AssignmentSubmittedEmail(ctx context.Context, courseID models.CourseID, team models.TeamName, assignmentID models.AssignmentID) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewAssignmentSubmitted(courseID, team, assignmentID))
}

func (s *notificationService) AllAssignmentsSubmittedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewAllAssignmentsSubmitted(courseID, assignmentID))
}

func (s *notificationService) PeerReviewAssignedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewPeerReviewAssigned(courseID, assignmentID))
}

func (s *notificationService) PeerReviewSubmittedEmail(ctx context.Context, reviewer models.StudentEmail, courseID models.CourseID, reviewedTeam models.TeamName, assignmentID models.AssignmentID) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewPeerReviewSubmitted(reviewer, courseID, reviewedTeam, assignmentID))
}

func (s *notificationService) AllPeerReviewsSubmittedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewAllPeerReviewsSubmitted(courseID, assignmentID))
}

func (s *notificationService) AssignmentDeadlinePassed(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewSubmissionDeadlinePassed(courseID, assignmentID))
}

func (s *notificationService) PeerReviewDeadlinePassed(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewReviewDeadlinePassed(courseID, assignmentID))
}

func (s *notificationService) GradeReceivedEmail(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID, team models.TeamName) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewGradeReceived(courseID, assignmentID, team))
}

func (s *notificationService) OutlierDetectedEmail(ctx context.Context, courseID models.CourseID, team models.TeamName, assignmentID models.AssignmentID) (dto.DispatchReport, error) {
	return s.Trigger(ctx, NewOutlierDetected(courseID, team, assignmentID))
}

// Trigger decides and dispatches the e-mails of one event. A lookup failure aborts before anything is sent.
// When some recipients fail the report is still returned together with a *PartialDeliveryError.
func (s *notificationService) Trigger(ctx context.Context, event NotificationEvent) (dto.DispatchReport, error) {
	ctx, span := s.tracer.Start(ctx, "notifications.trigger")
	defer span.End()

	kind := string(event.Kind())
	span.SetAttributes(
		attribute.String("notification.kind", kind),
		attribute.String("notification.course_id", string(event.Course())),
		attribute.Int64("notification.assignment_id", int64(event.Assignment())),
	)

	report := dto.DispatchReport{
		EventKind:    kind,
		CourseID:     string(event.Course()),
		AssignmentID: uint(event.Assignment()),
		Results:      []dto.DeliveryResult{},
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	envelopes, err := s.rules.Decide(lookupCtx, event)
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decision failed")
		observability.NotificationTriggers().WithLabelValues(kind, triggerOutcome(err)).Inc()
		s.logger.Warn().Err(err).Str("kind", kind).Str("course_id", report.CourseID).Uint("assignment_id", report.AssignmentID).Msg("notification trigger aborted")
		return report, err
	}

	dispatched := s.dispatcher.SendAll(ctx, envelopes)
	report.DispatchID = uuid.NewString()
	report.Sent = dispatched.Sent
	report.Failed = dispatched.Failed
	report.Results = dispatched.Results

	s.recordDeliveries(ctx, report, envelopes)

	span.SetAttributes(
		attribute.String("notification.dispatch_id", report.DispatchID),
		attribute.Int("notification.sent", report.Sent),
		attribute.Int("notification.failed", report.Failed),
	)

	if report.Failed > 0 {
		partial := &PartialDeliveryError{Failed: report.FailedResults()}
		span.RecordError(partial)
		span.SetStatus(codes.Error, "partial delivery")
		observability.NotificationTriggers().WithLabelValues(kind, "partial").Inc()
		s.logger.Warn().Str("dispatch_id", report.DispatchID).Str("kind", kind).Int("sent", report.Sent).Int("failed", report.Failed).Msg("notification partially delivered")
		return report, partial
	}

	outcome := "sent"
	if len(envelopes) == 0 {
		outcome = "empty"
	}
	observability.NotificationTriggers().WithLabelValues(kind, outcome).Inc()
	s.logger.Info().Str("dispatch_id", report.DispatchID).Str("kind", kind).Int("sent", report.Sent).Msg("notification trigger handled")
	span.SetStatus(codes.Ok, outcome)

	return report, nil
}

// HandleRequest validates a wire trigger, applies idempotency-key de-duplication and triggers the event.
func (s *notificationService) HandleRequest(ctx context.Context, req dto.TriggerRequest) (dto.DispatchReport, error) {
	if err := s.validator.Struct(req); err != nil {
		observability.NotificationTriggers().WithLabelValues(req.Kind, "invalid").Inc()
		return dto.DispatchReport{}, fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
	}

	event, err := EventFromRequest(req)
	if err != nil {
		observability.NotificationTriggers().WithLabelValues(req.Kind, "invalid").Inc()
		return dto.DispatchReport{}, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if s.cache == nil || key == "" {
		return s.Trigger(ctx, event)
	}

	cacheKey := fmt.Sprintf("notify:trigger:%s", key)
	ok, err := s.cache.SetNX(ctx, cacheKey, string(event.Kind()), s.dedupeTTL).Result()
	if err != nil {
		return dto.DispatchReport{}, fmt.Errorf("%w: trigger dedupe: %w", repository.ErrStoreUnavailable, err)
	}
	if !ok {
		observability.NotificationTriggers().WithLabelValues(req.Kind, "duplicate").Inc()
		return dto.DispatchReport{}, ErrDuplicateTrigger
	}

	report, err := s.Trigger(ctx, event)
	if err != nil && !errors.Is(err, ErrPartialDelivery) {
		// nothing was sent, so a retry with the same key must be accepted
		if delErr := s.cache.Del(context.WithoutCancel(ctx), cacheKey).Err(); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("failed to release trigger idempotency key")
		}
	}

	return report, err
}

func (s *notificationService) recordDeliveries(ctx context.Context, report dto.DispatchReport, envelopes []Envelope) {
	if s.deliveries == nil || len(report.Results) == 0 {
		return
	}

	records := make([]models.NotificationDelivery, 0, len(report.Results))
	for i, result := range report.Results {
		record := models.NotificationDelivery{
			DispatchID:   report.DispatchID,
			EventKind:    report.EventKind,
			CourseID:     models.CourseID(report.CourseID),
			AssignmentID: models.AssignmentID(report.AssignmentID),
			Recipient:    result.Recipient,
			Template:     result.Template,
			Status:       result.Status,
			Reason:       result.Reason,
		}
		if i < len(envelopes) {
			record.Data = datatypes.JSONMap(envelopes[i].Data.AsMap())
		}
		records = append(records, record)
	}

	if err := s.deliveries.CreateBatch(context.WithoutCancel(ctx), records); err != nil {
		s.logger.Warn().Err(err).Str("dispatch_id", report.DispatchID).Msg("failed to record notification deliveries")
	}
}

func triggerOutcome(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}

// EventFromRequest converts a wire trigger into its event, checking the fields each kind requires.
func EventFromRequest(req dto.TriggerRequest) (NotificationEvent, error) {
	courseID := models.CourseID(strings.TrimSpace(req.CourseID))
	assignmentID := models.AssignmentID(req.AssignmentID)
	team := models.TeamName(strings.TrimSpace(req.TeamName))
	student := models.StudentEmail(req.StudentEmail).Normalize()

	if courseID == "" || assignmentID == 0 {
		return nil, fmt.Errorf("%w: course_id and assignment_id are required", ErrInvalidTrigger)
	}

	requireTeam := func() error {
		if team == "" {
			return fmt.Errorf("%w: team_name is required for %s", ErrInvalidTrigger, req.Kind)
		}
		return nil
	}

	switch EventKind(strings.TrimSpace(req.Kind)) {
	case KindAssignmentCreated:
		return NewAssignmentCreated(courseID, assignmentID), nil
	case KindAssignmentSubmitted:
		if err := requireTeam(); err != nil {
			return nil, err
		}
		return NewAssignmentSubmitted(courseID, team, assignmentID), nil
	case KindAllAssignmentsSubmitted:
		return NewAllAssignmentsSubmitted(courseID, assignmentID), nil
	case KindPeerReviewAssigned:
		return NewPeerReviewAssigned(courseID, assignmentID), nil
	case KindPeerReviewSubmitted:
		if err := requireTeam(); err != nil {
			return nil, err
		}
		if student == "" {
			return nil, fmt.Errorf("%w: student_email is required for %s", ErrInvalidTrigger, req.Kind)
		}
		return NewPeerReviewSubmitted(student, courseID, team, assignmentID), nil
	case KindAllPeerReviewsSubmitted:
		return NewAllPeerReviewsSubmitted(courseID, assignmentID), nil
	case KindSubmissionDeadlinePassed:
		return NewSubmissionDeadlinePassed(courseID, assignmentID), nil
	case KindReviewDeadlinePassed:
		return NewReviewDeadlinePassed(courseID, assignmentID), nil
	case KindGradeReceived:
		if err := requireTeam(); err != nil {
			return nil, err
		}
		return NewGradeReceived(courseID, assignmentID, team), nil
	case KindOutlierDetected:
		if err := requireTeam(); err != nil {
			return nil, err
		}
		return NewOutlierDetected(courseID, team, assignmentID), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, req.Kind)
	}
}
