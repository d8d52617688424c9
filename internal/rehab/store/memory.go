package store

import (
	"context"
	"sync"

	"certflow/internal/rehab"
	id "certflow/pkg/domain"
)

// InMemoryRecordStore keeps the rehabilitation audit trail in process
// memory. Suitable for development and tests; production uses the
// PostgreSQL store.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[id.CaseID][]*rehab.Record

	failAppend error
}

// NewMemory constructs an in-memory audit record store.
func NewMemory() *InMemoryRecordStore {
	return &InMemoryRecordStore{records: make(map[id.CaseID][]*rehab.Record)}
}

func (s *InMemoryRecordStore) Append(_ context.Context, record *rehab.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAppend != nil {
		return s.failAppend
	}
	s.records[record.CaseID] = append(s.records[record.CaseID], record.Clone())
	return nil
}

func (s *InMemoryRecordStore) ListByCase(_ context.Context, caseID id.CaseID) ([]*rehab.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[caseID]
	out := make([]*rehab.Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out, nil
}

// FailAppendWith makes every subsequent Append return err. Tests use it to
// exercise the fail-closed path.
func (s *InMemoryRecordStore) FailAppendWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend = err
}
