// Package service implements license issuance for completed certification
// cases.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"certflow/internal/license"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/requestcontext"
)

// Engine is the slice of the workflow service issuance needs: the terminal
// gate.
type Engine interface {
	IsComplete(ctx context.Context, caseID id.CaseID) (bool, error)
}

// Store persists issued licenses.
type Store interface {
	Create(ctx context.Context, l *license.License) error
	ListByCase(ctx context.Context, caseID id.CaseID) ([]*license.License, error)
}

// IssueRequest carries the recipient details for a new license.
type IssueRequest struct {
	RecipientID string
	Category    string
	ExamDate    time.Time
	PhotoRef    string
}

// Service coordinates the completion gate and the license record.
type Service struct {
	engine Engine
	store  Store
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs the license service.
func New(engine Engine, store Store, opts ...Option) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("license store is required")
	}

	svc := &Service{engine: engine, store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue creates a license for a case that has completed all evaluation
// stages. Issuing again for the same case creates a fresh record with its
// own registration code; it never overwrites an earlier one.
//
// Errors: CodeNotFound when the case is missing, CodeCaseNotComplete while
// any stage is still pending, CodeValidation for missing recipient details.
func (s *Service) Issue(ctx context.Context, caseID id.CaseID, req IssueRequest) (*license.License, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	complete, err := s.engine.IsComplete(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, dErrors.New(dErrors.CodeCaseNotComplete,
			"license requires all evaluation stages to be completed")
	}

	issueDate := requestcontext.Now(ctx)
	licenseID := id.NewLicenseID()
	l := &license.License{
		ID:               licenseID,
		CaseID:           caseID,
		RecipientID:      req.RecipientID,
		Category:         req.Category,
		ExamDate:         req.ExamDate,
		PhotoRef:         req.PhotoRef,
		IssueDate:        issueDate,
		ExpiryDate:       license.ExpiryFor(issueDate),
		RegistrationCode: license.NewRegistrationCode(licenseID, issueDate),
	}

	if err := s.store.Create(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist license")
	}

	s.logInfo(ctx, "license issued",
		"case_id", caseID,
		"license_id", l.ID,
		"registration_code", l.RegistrationCode,
		"expiry_date", l.ExpiryDate,
	)
	return l, nil
}

// ListByCase returns every license ever issued for the case, oldest first.
func (s *Service) ListByCase(ctx context.Context, caseID id.CaseID) ([]*license.License, error) {
	licenses, err := s.store.ListByCase(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load licenses")
	}
	return licenses, nil
}

func validateRequest(req IssueRequest) error {
	if req.RecipientID == "" {
		return dErrors.New(dErrors.CodeValidation, "recipient id is required")
	}
	if req.Category == "" {
		return dErrors.New(dErrors.CodeValidation, "license category is required")
	}
	if req.ExamDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "exam date is required")
	}
	if req.PhotoRef == "" {
		return dErrors.New(dErrors.CodeValidation, "photo reference is required")
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
