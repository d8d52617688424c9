// Package service implements privileged rehabilitation of completed
// evaluation stages. Every attempt, granted or denied, lands in the
// append-only audit trail, and the audit write always precedes the state
// change. If the trail cannot be written, the operation does not happen.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"certflow/internal/credential"
	"certflow/internal/rehab"
	"certflow/internal/rehab/metrics"
	"certflow/internal/workflow"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/tx"
	"certflow/pkg/requestcontext"
)

// Engine is the slice of the workflow service the rehabilitation flow
// needs.
type Engine interface {
	Get(ctx context.Context, caseID id.CaseID) (*workflow.Case, error)
	Reopen(ctx context.Context, caseID id.CaseID, stage id.Stage) (int, error)
}

// Store is the append-only audit trail.
type Store interface {
	Append(ctx context.Context, record *rehab.Record) error
	ListByCase(ctx context.Context, caseID id.CaseID) ([]*rehab.Record, error)
}

// TxBeginner opens database transactions. *sql.DB satisfies it. When
// configured, a granted rehabilitation writes its audit record and reopens
// the stage in one transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Result is the outcome of a granted rehabilitation.
type Result struct {
	Stage    id.Stage
	Progress int
}

// Service coordinates credential verification, audit writes, and the
// reopening of stages.
type Service struct {
	engine   Engine
	store    Store
	verifier credential.Verifier
	beginner TxBeginner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTxBeginner enables transactional coupling of the audit write and the
// stage reopen. Only meaningful when the audit store and the case store
// share the database.
func WithTxBeginner(beginner TxBeginner) Option {
	return func(s *Service) {
		s.beginner = beginner
	}
}

// New constructs the rehabilitation service.
func New(engine Engine, store Store, verifier credential.Verifier, opts ...Option) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("audit record store is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("credential verifier is required")
	}

	svc := &Service{engine: engine, store: store, verifier: verifier}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Rehabilitate reopens a completed stage after verifying the supervisor
// credential. The stage returns to Pending and the case leaves the terminal
// state if it was there.
//
// Errors: CodeUnknownStage, CodeNotFound, CodeStageNotCompleted when the
// stage is not currently Completed, CodeCredentialDenied on a failed
// credential check, CodeInternal when the audit trail cannot be written (the
// stage is left untouched).
func (s *Service) Rehabilitate(ctx context.Context, caseID id.CaseID, stage id.Stage, presented, reason string) (*Result, error) {
	if !stage.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeUnknownStage, "unknown stage %q", stage)
	}

	c, err := s.engine.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Stages[stage] != id.StageCompleted {
		return nil, dErrors.Newf(dErrors.CodeStageNotCompleted,
			"stage %s is not completed and cannot be rehabilitated", stage)
	}

	if !s.verifier.Verify(presented) {
		if err := s.store.Append(ctx, s.newRecord(ctx, caseID, stage, rehab.OutcomeDenied, reason)); err != nil {
			s.logError(ctx, "failed to record denied rehabilitation", "case_id", caseID, "stage", stage, "error", err)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record rehabilitation attempt")
		}
		s.metrics.ObserveOutcome(string(rehab.OutcomeDenied))
		s.logInfo(ctx, "rehabilitation denied", "case_id", caseID, "stage", stage)
		return nil, dErrors.New(dErrors.CodeCredentialDenied, "supervisor credential rejected")
	}

	var progress int
	grant := func(ctx context.Context) error {
		// Audit before mutation: a failed append aborts with the stage
		// untouched.
		if err := s.store.Append(ctx, s.newRecord(ctx, caseID, stage, rehab.OutcomeGranted, reason)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record rehabilitation attempt")
		}
		progress, err = s.engine.Reopen(ctx, caseID, stage)
		return err
	}

	if err := s.inTx(ctx, grant); err != nil {
		s.logError(ctx, "rehabilitation failed", "case_id", caseID, "stage", stage, "error", err)
		return nil, err
	}

	s.metrics.ObserveOutcome(string(rehab.OutcomeGranted))
	s.logInfo(ctx, "rehabilitation granted",
		"case_id", caseID,
		"stage", stage,
		"progress", progress,
	)
	return &Result{Stage: stage, Progress: progress}, nil
}

// History returns the audit trail for a case, oldest first. An empty trail
// is not an error.
func (s *Service) History(ctx context.Context, caseID id.CaseID) ([]*rehab.Record, error) {
	records, err := s.store.ListByCase(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rehabilitation history")
	}
	return records, nil
}

func (s *Service) newRecord(ctx context.Context, caseID id.CaseID, stage id.Stage, outcome rehab.Outcome, reason string) *rehab.Record {
	var actor string
	if a := requestcontext.ActorID(ctx); !a.IsNil() {
		actor = a.String()
	}
	return &rehab.Record{
		ID:        uuid.New(),
		CaseID:    caseID,
		Stage:     stage,
		Timestamp: requestcontext.Now(ctx),
		Outcome:   outcome,
		Actor:     actor,
		Reason:    reason,
	}
}

// inTx runs fn inside a database transaction when a beginner is configured,
// directly otherwise.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.beginner == nil {
		return fn(ctx)
	}

	dbTx, err := s.beginner.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin rehabilitation transaction")
	}
	defer dbTx.Rollback()

	if err := fn(tx.WithTx(ctx, dbTx)); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit rehabilitation transaction")
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
		if requestID := requestcontext.RequestID(ctx); requestID != "" {
			attrs = append(attrs, "request_id", requestID)
		}
		s.logger.ErrorContext(ctx, msg, attrs...)
	}
}
