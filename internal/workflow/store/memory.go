package store

import (
	"context"
	"sync"

	"certflow/internal/workflow"
	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
	"certflow/pkg/requestcontext"
)

// InMemoryCaseStore keeps case state in process memory. Suitable for
// development and tests; production uses the PostgreSQL store.
type InMemoryCaseStore struct {
	mu    sync.RWMutex
	cases map[id.CaseID]*workflow.Case
}

// NewMemory constructs an in-memory case store.
func NewMemory() *InMemoryCaseStore {
	return &InMemoryCaseStore{cases: make(map[id.CaseID]*workflow.Case)}
}

func (s *InMemoryCaseStore) Create(_ context.Context, c *workflow.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cases[c.ID]; exists {
		return sentinel.ErrConflict
	}
	s.cases[c.ID] = c.Clone()
	return nil
}

func (s *InMemoryCaseStore) Get(_ context.Context, caseID id.CaseID) (*workflow.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.cases[caseID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemoryCaseStore) SetStage(ctx context.Context, caseID id.CaseID, stage id.Stage, from, to id.StageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.cases[caseID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if c.Stages[stage] != from {
		return sentinel.ErrInvalidState
	}
	c.Stages[stage] = to
	c.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemoryCaseStore) List(_ context.Context) ([]*workflow.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*workflow.Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c.Clone())
	}
	return out, nil
}
