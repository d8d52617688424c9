// Package service implements appointment scheduling for certification cases.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"certflow/internal/appointment"
	"certflow/internal/platform/caselock"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/sentinel"
	"certflow/pkg/requestcontext"
)

// Store persists appointments keyed by case.
type Store interface {
	// Create stores the first appointment for a case. Returns
	// sentinel.ErrConflict when one already exists.
	Create(ctx context.Context, appt *appointment.Appointment) error

	// Replace swaps the live appointment wholesale. Returns
	// sentinel.ErrNotFound when none exists yet.
	Replace(ctx context.Context, appt *appointment.Appointment) error

	// Get returns the live appointment, or sentinel.ErrNotFound.
	Get(ctx context.Context, caseID id.CaseID) (*appointment.Appointment, error)
}

// Service owns the appointment lifecycle: schedule, reschedule, query. It
// also serves the workflow engine's gate checks through Exists.
type Service struct {
	store  Store
	locker caselock.Locker
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

// New constructs the appointment service.
func New(store Store, locker caselock.Locker, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("appointment store is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("case locker is required")
	}

	svc := &Service{store: store, locker: locker}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Schedule creates the first appointment for a case. Its side effect is
// making the case's gated stages eligible for completion.
//
// Errors: CodeValidation for empty or past details, CodeConflict when an
// appointment already exists (use Reschedule to replace).
func (s *Service) Schedule(ctx context.Context, caseID id.CaseID, details appointment.Details) (*appointment.Appointment, error) {
	if err := validateDetails(ctx, details); err != nil {
		return nil, err
	}

	var appt *appointment.Appointment
	err := s.locker.WithLock(ctx, caseID, func(ctx context.Context) error {
		appt = newAppointment(ctx, caseID, details, nil)
		if err := s.store.Create(ctx, appt); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict,
					"an appointment already exists for this case; use reschedule")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create appointment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logInfo(ctx, "appointment scheduled", "case_id", caseID, "room", appt.Room, "date_time", appt.DateTime)
	return appt, nil
}

// Reschedule atomically replaces the live appointment. It does not reset
// gated-stage completion state: a stage finished under the old appointment
// stays finished.
//
// Errors: CodeValidation for empty or past details, CodeNotFound when no
// appointment exists yet.
func (s *Service) Reschedule(ctx context.Context, caseID id.CaseID, details appointment.Details) (*appointment.Appointment, error) {
	if err := validateDetails(ctx, details); err != nil {
		return nil, err
	}

	var appt *appointment.Appointment
	err := s.locker.WithLock(ctx, caseID, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		appt = newAppointment(ctx, caseID, details, &now)
		if err := s.store.Replace(ctx, appt); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound,
					"no appointment exists for this case; use schedule")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to replace appointment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logInfo(ctx, "appointment rescheduled", "case_id", caseID, "room", appt.Room, "date_time", appt.DateTime)
	return appt, nil
}

// Get returns the live appointment for the case. Absence is not an error;
// found reports it.
func (s *Service) Get(ctx context.Context, caseID id.CaseID) (*appointment.Appointment, bool, error) {
	appt, err := s.store.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load appointment")
	}
	return appt, true, nil
}

// Exists implements the workflow engine's gate check.
func (s *Service) Exists(ctx context.Context, caseID id.CaseID) (bool, error) {
	_, found, err := s.Get(ctx, caseID)
	return found, err
}

func newAppointment(ctx context.Context, caseID id.CaseID, details appointment.Details, replacedAt *time.Time) *appointment.Appointment {
	return &appointment.Appointment{
		CaseID:         caseID,
		DateTime:       details.DateTime,
		Room:           details.Room,
		AttendeeCounts: details.AttendeeCounts,
		TestsIncluded:  details.TestsIncluded,
		CreatedAt:      requestcontext.Now(ctx),
		ReplacedAt:     replacedAt,
	}
}

func validateDetails(ctx context.Context, details appointment.Details) error {
	if details.DateTime.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "appointment date/time is required")
	}
	if details.Room == "" {
		return dErrors.New(dErrors.CodeValidation, "appointment room is required")
	}
	if details.DateTime.Before(requestcontext.Now(ctx)) {
		return dErrors.New(dErrors.CodeValidation, "appointment date/time must not be in the past")
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
