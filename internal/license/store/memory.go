package store

import (
	"context"
	"sync"

	"certflow/internal/license"
	id "certflow/pkg/domain"
)

// InMemoryLicenseStore keeps issued licenses in process memory. Suitable for
// development and tests; production uses the PostgreSQL store.
type InMemoryLicenseStore struct {
	mu       sync.RWMutex
	licenses map[id.CaseID][]*license.License
}

// NewMemory constructs an in-memory license store.
func NewMemory() *InMemoryLicenseStore {
	return &InMemoryLicenseStore{licenses: make(map[id.CaseID][]*license.License)}
}

func (s *InMemoryLicenseStore) Create(_ context.Context, l *license.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.licenses[l.CaseID] = append(s.licenses[l.CaseID], l.Clone())
	return nil
}

func (s *InMemoryLicenseStore) ListByCase(_ context.Context, caseID id.CaseID) ([]*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	licenses := s.licenses[caseID]
	out := make([]*license.License, 0, len(licenses))
	for _, l := range licenses {
		out = append(out, l.Clone())
	}
	return out, nil
}
