// Package service implements the case workflow engine: stage completion with
// gate enforcement, derived progress, and terminal-state detection.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"certflow/internal/platform/caselock"
	"certflow/internal/workflow"
	"certflow/internal/workflow/metrics"
	"certflow/internal/workflow/ports"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/sentinel"
	"certflow/pkg/requestcontext"
)

// Type aliases for shared interfaces.
type (
	CaseStore         = ports.CaseStore
	AppointmentLookup = ports.AppointmentLookup
)

// Service is the case workflow engine. All writes go through the per-case
// locker; reads operate on store snapshots.
type Service struct {
	store        CaseStore
	appointments AppointmentLookup
	locker       caselock.Locker
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the workflow engine.
func New(store CaseStore, appointments AppointmentLookup, locker caselock.Locker, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("case store is required")
	}
	if appointments == nil {
		return nil, fmt.Errorf("appointment lookup is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("case locker is required")
	}

	svc := &Service{
		store:        store,
		appointments: appointments,
		locker:       locker,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates a case in its initial state: every stage Pending, progress
// at the intake baseline. Callers hand cases to the engine through this
// operation.
func (s *Service) Register(ctx context.Context, processType string) (*workflow.Case, error) {
	if processType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "process type is required")
	}

	c := workflow.NewCase(id.NewCaseID(), processType, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "case already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create case")
	}

	s.logInfo(ctx, "case registered", "case_id", c.ID, "process_type", processType)
	return c, nil
}

// CompleteStage marks one stage Completed and reports the resulting progress
// and any threshold signal.
//
// Errors: CodeUnknownStage for a value outside the registry,
// CodeNotFound when the case is missing, CodeCaseAlreadyComplete once the
// case is terminal, CodeStageAlreadyCompleted on repeat completion,
// CodeGateNotSatisfied for a gated stage without an appointment.
func (s *Service) CompleteStage(ctx context.Context, caseID id.CaseID, stage id.Stage) (*workflow.CompletionResult, error) {
	start := time.Now()

	if !stage.IsValid() {
		s.metrics.ObserveRejection(string(dErrors.CodeUnknownStage))
		return nil, dErrors.Newf(dErrors.CodeUnknownStage, "unknown stage %q", stage)
	}

	var result *workflow.CompletionResult
	err := s.locker.WithLock(ctx, caseID, func(ctx context.Context) error {
		var err error
		result, err = s.completeStageLocked(ctx, caseID, stage)
		return err
	})
	if err != nil {
		s.metrics.ObserveRejection(string(dErrors.CodeOf(err)))
		return nil, err
	}

	s.metrics.ObserveCompletion(stage.String())
	s.metrics.ObserveCompleteStageLatency(time.Since(start))
	return result, nil
}

func (s *Service) completeStageLocked(ctx context.Context, caseID id.CaseID, stage id.Stage) (*workflow.CompletionResult, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if c.IsComplete() {
		return nil, dErrors.New(dErrors.CodeCaseAlreadyComplete, "case has completed all stages")
	}
	if c.Stages[stage] == id.StageCompleted {
		// Repeat completion is a distinct, caller-visible rejection - not a
		// silent success with a different notification.
		s.logInfo(ctx, "stage already completed", "case_id", caseID, "stage", stage)
		return nil, dErrors.Newf(dErrors.CodeStageAlreadyCompleted, "stage %s is already completed", stage)
	}

	var appointmentExists bool
	var appointmentChecked bool
	if stage.Gated() {
		appointmentExists, err = s.appointmentExists(ctx, caseID)
		if err != nil {
			return nil, err
		}
		appointmentChecked = true
		if !appointmentExists {
			return nil, dErrors.Newf(dErrors.CodeGateNotSatisfied,
				"stage %s requires a scheduled appointment", stage)
		}
	}

	if err := s.store.SetStage(ctx, caseID, stage, id.StagePending, id.StageCompleted); err != nil {
		return nil, s.translateSetStage(err)
	}

	c, err = s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.validateSnapshot(ctx, c); err != nil {
		return nil, err
	}

	result := &workflow.CompletionResult{
		Stage:    stage,
		Progress: c.Progress(),
		Signal:   workflow.SignalNone,
	}

	completed := c.CompletedCount()
	switch {
	case completed == id.StageCount:
		result.Signal = workflow.SignalCaseComplete
		s.metrics.ObserveCaseComplete()
		s.logInfo(ctx, "case complete", "case_id", caseID, "progress", result.Progress)
	case completed == id.SchedulingThreshold:
		if !appointmentChecked {
			appointmentExists, err = s.appointmentExists(ctx, caseID)
			if err != nil {
				return nil, err
			}
		}
		if !appointmentExists {
			result.Signal = workflow.SignalNeedsScheduling
			s.logInfo(ctx, "case needs appointment scheduling", "case_id", caseID)
		}
	}

	s.logInfo(ctx, "stage completed",
		"case_id", caseID,
		"stage", stage,
		"progress", result.Progress,
		"completed_stages", completed,
	)
	return result, nil
}

// Reopen sets a Completed stage back to Pending. It exists for the
// rehabilitation service and is the only path out of the terminal state.
//
// Errors: CodeUnknownStage, CodeNotFound, CodeStageNotCompleted when the
// stage is not currently Completed.
func (s *Service) Reopen(ctx context.Context, caseID id.CaseID, stage id.Stage) (progress int, err error) {
	if !stage.IsValid() {
		return 0, dErrors.Newf(dErrors.CodeUnknownStage, "unknown stage %q", stage)
	}

	err = s.locker.WithLock(ctx, caseID, func(ctx context.Context) error {
		c, err := s.load(ctx, caseID)
		if err != nil {
			return err
		}
		if c.Stages[stage] != id.StageCompleted {
			return dErrors.Newf(dErrors.CodeStageNotCompleted, "stage %s is not completed", stage)
		}

		if err := s.store.SetStage(ctx, caseID, stage, id.StageCompleted, id.StagePending); err != nil {
			return s.translateSetStage(err)
		}

		c, err = s.load(ctx, caseID)
		if err != nil {
			return err
		}
		if err := s.validateSnapshot(ctx, c); err != nil {
			return err
		}

		progress = c.Progress()
		s.logInfo(ctx, "stage reopened",
			"case_id", caseID,
			"stage", stage,
			"progress", progress,
		)
		return nil
	})
	return progress, err
}

// Get returns a snapshot of the case.
func (s *Service) Get(ctx context.Context, caseID id.CaseID) (*workflow.Case, error) {
	return s.load(ctx, caseID)
}

// Progress returns the derived completion percentage for the case.
func (s *Service) Progress(ctx context.Context, caseID id.CaseID) (int, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return 0, err
	}
	return c.Progress(), nil
}

// IsComplete reports whether the case has reached its terminal state.
func (s *Service) IsComplete(ctx context.Context, caseID id.CaseID) (bool, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return false, err
	}
	return c.IsComplete(), nil
}

// List returns snapshots of all cases.
func (s *Service) List(ctx context.Context) ([]*workflow.Case, error) {
	cases, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cases")
	}
	return cases, nil
}

func (s *Service) load(ctx context.Context, caseID id.CaseID) (*workflow.Case, error) {
	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "case %s not found", caseID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case")
	}
	return c, nil
}

func (s *Service) appointmentExists(ctx context.Context, caseID id.CaseID) (bool, error) {
	exists, err := s.appointments.Exists(ctx, caseID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check appointment")
	}
	return exists, nil
}

// translateSetStage maps store sentinels from guarded stage transitions. The
// prior-state guard failing under the case lock means the snapshot diverged
// from the store between read and write.
func (s *Service) translateSetStage(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "case not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvariantViolation, "stage state changed outside the case lock")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist stage state")
	}
}

// validateSnapshot checks stage-state integrity after a mutation. A mismatch
// indicates a broken invariant rather than bad input, so it is surfaced
// loudly and returned as an invariant violation.
func (s *Service) validateSnapshot(ctx context.Context, c *workflow.Case) error {
	if len(c.Stages) != id.StageCount {
		s.logError(ctx, "case stage set corrupted", "case_id", c.ID, "stage_count", len(c.Stages))
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"case %s holds %d stages, want %d", c.ID, len(c.Stages), id.StageCount)
	}
	for _, stage := range id.AllStages() {
		state, ok := c.Stages[stage]
		if !ok {
			s.logError(ctx, "case stage missing", "case_id", c.ID, "stage", stage)
			return dErrors.Newf(dErrors.CodeInvariantViolation, "case %s is missing stage %s", c.ID, stage)
		}
		if !state.IsValid() {
			s.logError(ctx, "case stage state invalid", "case_id", c.ID, "stage", stage, "state", state)
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"case %s stage %s holds invalid state %q", c.ID, stage, state)
		}
	}
	return nil
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...any) {
	if s.logger != nil {
		if requestID := requestcontext.RequestID(ctx); requestID != "" {
			attrs = append(attrs, "request_id", requestID)
		}
		s.logger.InfoContext(ctx, msg, attrs...)
	}
}

func (s *Service) logError(ctx context.Context, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg, attrs...)
	}
}
