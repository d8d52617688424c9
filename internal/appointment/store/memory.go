package store

import (
	"context"
	"sync"

	"certflow/internal/appointment"
	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

// InMemoryAppointmentStore keeps appointments in process memory.
type InMemoryAppointmentStore struct {
	mu           sync.RWMutex
	appointments map[id.CaseID]*appointment.Appointment
}

// NewMemory constructs an in-memory appointment store.
func NewMemory() *InMemoryAppointmentStore {
	return &InMemoryAppointmentStore{appointments: make(map[id.CaseID]*appointment.Appointment)}
}

func (s *InMemoryAppointmentStore) Create(_ context.Context, appt *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.appointments[appt.CaseID]; exists {
		return sentinel.ErrConflict
	}
	s.appointments[appt.CaseID] = appt.Clone()
	return nil
}

func (s *InMemoryAppointmentStore) Replace(_ context.Context, appt *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.appointments[appt.CaseID]; !exists {
		return sentinel.ErrNotFound
	}
	s.appointments[appt.CaseID] = appt.Clone()
	return nil
}

func (s *InMemoryAppointmentStore) Get(_ context.Context, caseID id.CaseID) (*appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, exists := s.appointments[caseID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return appt.Clone(), nil
}
