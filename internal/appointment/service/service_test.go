package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certflow/internal/appointment"
	apptStore "certflow/internal/appointment/store"
	"certflow/internal/platform/caselock"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/requestcontext"
)

// =============================================================================
// Appointment Service Test Suite
// =============================================================================
// The single-live-appointment rule and the schedule/reschedule asymmetry are
// the contract the gated stages depend on, so they are pinned down here.

type AppointmentServiceSuite struct {
	suite.Suite
	store   *apptStore.InMemoryAppointmentStore
	service *Service
	now     time.Time
}

func TestAppointmentServiceSuite(t *testing.T) {
	suite.Run(t, new(AppointmentServiceSuite))
}

func (s *AppointmentServiceSuite) SetupTest() {
	s.store = apptStore.NewMemory()
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	var err error
	s.service, err = New(s.store, caselock.NewMemoryLocker())
	s.Require().NoError(err)
}

func (s *AppointmentServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *AppointmentServiceSuite) validDetails() appointment.Details {
	return appointment.Details{
		DateTime:       s.now.Add(48 * time.Hour),
		Room:           "Exam Hall 2",
		AttendeeCounts: map[string]int{"examiners": 3, "candidates": 12},
		TestsIncluded:  map[string]bool{"practical_theoretical_exam": true, "psychological_review": true},
	}
}

func (s *AppointmentServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, caselock.NewMemoryLocker())
		s.Error(err)
	})

	s.Run("nil locker returns error", func() {
		_, err := New(s.store, nil)
		s.Error(err)
	})
}

// =============================================================================
// Schedule Tests
// =============================================================================

func (s *AppointmentServiceSuite) TestSchedule() {
	s.Run("valid details create the appointment", func() {
		caseID := id.NewCaseID()
		appt, err := s.service.Schedule(s.ctx(), caseID, s.validDetails())
		s.Require().NoError(err)
		s.Equal(caseID, appt.CaseID)
		s.Equal("Exam Hall 2", appt.Room)
		s.Nil(appt.ReplacedAt)

		exists, err := s.service.Exists(s.ctx(), caseID)
		s.Require().NoError(err)
		s.True(exists)
	})

	s.Run("zero date rejected", func() {
		details := s.validDetails()
		details.DateTime = time.Time{}
		_, err := s.service.Schedule(s.ctx(), id.NewCaseID(), details)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("empty room rejected", func() {
		details := s.validDetails()
		details.Room = ""
		_, err := s.service.Schedule(s.ctx(), id.NewCaseID(), details)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("past date rejected", func() {
		details := s.validDetails()
		details.DateTime = s.now.Add(-time.Hour)
		_, err := s.service.Schedule(s.ctx(), id.NewCaseID(), details)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("second schedule for the same case conflicts", func() {
		caseID := id.NewCaseID()
		_, err := s.service.Schedule(s.ctx(), caseID, s.validDetails())
		s.Require().NoError(err)

		_, err = s.service.Schedule(s.ctx(), caseID, s.validDetails())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// =============================================================================
// Reschedule Tests
// =============================================================================

func (s *AppointmentServiceSuite) TestReschedule() {
	s.Run("without existing appointment fails", func() {
		_, err := s.service.Reschedule(s.ctx(), id.NewCaseID(), s.validDetails())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("replaces the appointment wholesale", func() {
		caseID := id.NewCaseID()
		_, err := s.service.Schedule(s.ctx(), caseID, s.validDetails())
		s.Require().NoError(err)

		replacement := s.validDetails()
		replacement.DateTime = s.now.Add(96 * time.Hour)
		replacement.Room = "Exam Hall 5"
		replacement.AttendeeCounts = nil

		appt, err := s.service.Reschedule(s.ctx(), caseID, replacement)
		s.Require().NoError(err)
		s.NotNil(appt.ReplacedAt)

		got, found, err := s.service.Get(s.ctx(), caseID)
		s.Require().NoError(err)
		s.Require().True(found)
		s.Equal("Exam Hall 5", got.Room)
		s.Equal(replacement.DateTime, got.DateTime)
		s.Nil(got.AttendeeCounts, "old details must not survive the replacement")
	})

	s.Run("validates details like schedule", func() {
		caseID := id.NewCaseID()
		_, err := s.service.Schedule(s.ctx(), caseID, s.validDetails())
		s.Require().NoError(err)

		details := s.validDetails()
		details.Room = ""
		_, err = s.service.Reschedule(s.ctx(), caseID, details)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Get Tests
// =============================================================================

func (s *AppointmentServiceSuite) TestGet() {
	s.Run("absence is not an error", func() {
		_, found, err := s.service.Get(s.ctx(), id.NewCaseID())
		s.NoError(err)
		s.False(found)
	})

	s.Run("snapshot is isolated from the store", func() {
		caseID := id.NewCaseID()
		_, err := s.service.Schedule(s.ctx(), caseID, s.validDetails())
		s.Require().NoError(err)

		got, found, err := s.service.Get(s.ctx(), caseID)
		s.Require().NoError(err)
		s.Require().True(found)
		got.AttendeeCounts["examiners"] = 99

		fresh, _, err := s.service.Get(s.ctx(), caseID)
		s.Require().NoError(err)
		s.Equal(3, fresh.AttendeeCounts["examiners"])
	})
}
