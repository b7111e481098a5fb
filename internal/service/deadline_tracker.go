package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-notify/internal/dto"
	"github.com/noah-isme/gema-notify/internal/models"
	"github.com/noah-isme/gema-notify/internal/observability"
	"github.com/noah-isme/gema-notify/internal/repository"
)

// DeadlineNotifier is the part of NotificationService the tracker drives.
type DeadlineNotifier interface {
	AssignmentDeadlinePassed(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error)
	PeerReviewDeadlinePassed(ctx context.Context, courseID models.CourseID, assignmentID models.AssignmentID) (dto.DispatchReport, error)
}

// TrackerOptions configures the deadline tracker. Zero values fall back to the documented defaults.
type TrackerOptions struct {
	Interval      time.Duration // 1m
	UnitTimeout   time.Duration // 30s
	CatchUpWindow time.Duration // 168h
	Concurrency   int           // 4
	Clock         func() time.Time
}

type checkpointKey struct {
	assignment models.AssignmentID
	kind       models.DeadlineKind
}

// DeadlineTracker periodically detects freshly passed deadlines and fires the matching trigger once per crossing.
type DeadlineTracker struct {
	repo     repository.CourseworkRepository
	store    repository.CheckpointStore
	notifier DeadlineNotifier
	opts     TrackerOptions
	logger   zerolog.Logger
	tracer   trace.Tracer

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}

	tickMu sync.Mutex

	cacheMu     sync.Mutex
	checkpoints map[checkpointKey]time.Time
}

// NewDeadlineTracker constructs a stopped tracker.
func NewDeadlineTracker(repo repository.CourseworkRepository, store repository.CheckpointStore, notifier DeadlineNotifier, opts TrackerOptions, logger zerolog.Logger) *DeadlineTracker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = 30 * time.Second
	}
	if opts.CatchUpWindow <= 0 {
		opts.CatchUpWindow = 7 * 24 * time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &DeadlineTracker{
		repo:        repo,
		store:       store,
		notifier:    notifier,
		opts:        opts,
		logger:      logger.With().Str("component", "deadline_tracker").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-notify/internal/service/deadline_tracker"),
		checkpoints: make(map[checkpointKey]time.Time),
	}
}

// Init starts the tick loop. Calling it on a running tracker does nothing.
func (t *DeadlineTracker) Init() {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.loop(ctx, done)
	t.logger.Info().Dur("interval", t.opts.Interval).Msg("deadline tracker started")
}

// Stop ends the tick loop and waits for it to exit. An in-flight tick sees its context cancelled.
func (t *DeadlineTracker) Stop() {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	if t.cancel == nil {
		return
	}

	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
	t.logger.Info().Msg("deadline tracker stopped")
}

// Running reports whether the tick loop is active.
func (t *DeadlineTracker) Running() bool {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()
	return t.cancel != nil
}

func (t *DeadlineTracker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.Tick(ctx); err != nil && ctx.Err() == nil {
				t.logger.Error().Err(err).Msg("deadline tracker tick failed")
			}
		}
	}
}

type trackerUnit struct {
	assignment models.Assignment
	kind       models.DeadlineKind
	deadline   time.Time
}

// Tick runs one scan. Ticks never overlap; a concurrent call waits for the active one.
// Failures of individual units are counted in the summary; only a failed assignment listing returns an error.
func (t *DeadlineTracker) Tick(ctx context.Context) (dto.TickSummary, error) {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	ctx, span := t.tracer.Start(ctx, "deadline_tracker.tick")
	defer span.End()

	started := time.Now()
	defer func() {
		observability.TrackerTicks().Inc()
		observability.TrackerTickDuration().Observe(time.Since(started).Seconds())
	}()

	now := repository.NormalizeCheckpoint(t.opts.Clock())
	summary := dto.TickSummary{
		StartedAt:   now,
		WindowStart: now,
		WindowEnd:   now,
	}

	// every passed deadline is listed; the per-pair checkpoint decides whether a crossing is still pending
	listCtx, cancel := context.WithTimeout(ctx, t.opts.UnitTimeout)
	assignments, err := t.repo.ListAssignmentsDue(listCtx, time.Time{}, now)
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing failed")
		return summary, fmt.Errorf("list assignments due: %w", err)
	}

	units := make([]trackerUnit, 0, len(assignments))
	for _, assignment := range assignments {
		for _, kind := range models.DeadlineKinds {
			deadline, ok := assignment.DeadlineFor(kind)
			if !ok || deadline.After(now) {
				continue
			}
			units = append(units, trackerUnit{assignment: assignment, kind: kind, deadline: deadline})
		}
	}

	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	group.SetLimit(t.opts.Concurrency)

	for _, unit := range units {
		unit := unit
		group.Go(func() error {
			outcome, err := t.processUnit(ctx, unit, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Evaluated++
				summary.Failed++
				observability.TrackerUnitFailures().WithLabelValues(string(unit.kind)).Inc()
				t.logger.Error().Err(err).Uint("assignment_id", uint(unit.assignment.ID)).Str("kind", string(unit.kind)).Msg("deadline evaluation failed")
				return nil
			}
			if !outcome.pending {
				return nil
			}
			summary.Evaluated++
			if outcome.baseline.Before(summary.WindowStart) {
				summary.WindowStart = outcome.baseline
			}
			if outcome.fired {
				summary.Fired++
				observability.TrackerCrossings().WithLabelValues(string(unit.kind)).Inc()
			}
			return nil
		})
	}
	_ = group.Wait()

	span.SetAttributes(
		attribute.Int("tracker.evaluated", summary.Evaluated),
		attribute.Int("tracker.fired", summary.Fired),
		attribute.Int("tracker.failed", summary.Failed),
	)
	if summary.Failed > 0 {
		span.SetStatus(codes.Error, "unit failures")
	}

	return summary, nil
}

type unitOutcome struct {
	pending  bool
	baseline time.Time
	fired    bool
}

// processUnit fires the trigger of one (assignment, kind) pair if its deadline lies in (baseline, now].
// The baseline is the stored checkpoint, else the assignment's creation time, else now minus the catch-up window.
// The checkpoint is claimed before triggering so that no other tick or replica can fire the same crossing.
func (t *DeadlineTracker) processUnit(ctx context.Context, unit trackerUnit, now time.Time) (unitOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.UnitTimeout)
	defer cancel()

	key := checkpointKey{assignment: unit.assignment.ID, kind: unit.kind}
	schedulingErr := func(err error) error {
		return &SchedulingError{AssignmentID: unit.assignment.ID, Kind: unit.kind, Err: err}
	}

	stored, err := t.checkpoint(ctx, key)
	if err != nil {
		return unitOutcome{}, schedulingErr(err)
	}

	effective := stored
	if effective.IsZero() {
		effective = repository.NormalizeCheckpoint(unit.assignment.CreatedAt)
	}
	if effective.IsZero() {
		effective = now.Add(-t.opts.CatchUpWindow)
	}

	if !effective.Before(unit.deadline) || unit.deadline.After(now) {
		return unitOutcome{}, nil
	}
	outcome := unitOutcome{pending: true, baseline: effective}

	claimed, err := t.store.CompareAndSwap(ctx, key.assignment, key.kind, stored, now)
	if err != nil {
		t.forget(key)
		return outcome, schedulingErr(err)
	}
	if !claimed {
		t.forget(key)
		t.logger.Debug().Uint("assignment_id", uint(key.assignment)).Str("kind", string(key.kind)).Msg("deadline crossing claimed elsewhere")
		return outcome, nil
	}
	t.remember(key, now)

	_, err = t.fire(ctx, unit)
	if err == nil {
		outcome.fired = true
		return outcome, nil
	}

	if errors.Is(err, ErrPartialDelivery) {
		t.logger.Warn().Err(err).Uint("assignment_id", uint(key.assignment)).Str("kind", string(key.kind)).Msg("deadline notification partially delivered")
		outcome.fired = true
		return outcome, nil
	}

	t.release(ctx, key, now, stored)
	return outcome, schedulingErr(err)
}

func (t *DeadlineTracker) fire(ctx context.Context, unit trackerUnit) (dto.DispatchReport, error) {
	switch unit.kind {
	case models.DeadlineSubmission:
		return t.notifier.AssignmentDeadlinePassed(ctx, unit.assignment.CourseID, unit.assignment.ID)
	case models.DeadlinePeerReview:
		return t.notifier.PeerReviewDeadlinePassed(ctx, unit.assignment.CourseID, unit.assignment.ID)
	default:
		return dto.DispatchReport{}, fmt.Errorf("unsupported deadline kind %q", unit.kind)
	}
}

// release hands a claimed window back after a trigger that sent nothing, so the next tick retries it.
func (t *DeadlineTracker) release(ctx context.Context, key checkpointKey, claimed, previous time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.opts.UnitTimeout)
	defer cancel()

	reverted, err := t.store.CompareAndSwap(ctx, key.assignment, key.kind, claimed, previous)
	if err != nil || !reverted {
		t.forget(key)
		t.logger.Error().Err(err).Uint("assignment_id", uint(key.assignment)).Str("kind", string(key.kind)).Msg("failed to release deadline checkpoint")
		return
	}
	t.remember(key, previous)
}

func (t *DeadlineTracker) checkpoint(ctx context.Context, key checkpointKey) (time.Time, error) {
	t.cacheMu.Lock()
	cached, ok := t.checkpoints[key]
	t.cacheMu.Unlock()
	if ok {
		return cached, nil
	}

	stored, err := t.store.Get(ctx, key.assignment, key.kind)
	if err != nil {
		return time.Time{}, err
	}
	t.remember(key, stored)
	return stored, nil
}

func (t *DeadlineTracker) remember(key checkpointKey, at time.Time) {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	t.checkpoints[key] = repository.NormalizeCheckpoint(at)
}

func (t *DeadlineTracker) forget(key checkpointKey) {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	delete(t.checkpoints, key)
}
