// Package caselock provides per-case mutual exclusion for workflow writes.
//
// Two concurrent CompleteStage calls for the same case racing on the
// completed-stage count could double-count or miss the scheduling and
// completion thresholds, so every write path takes the case lock first.
// Reads operate on store snapshots and bypass the lock.
package caselock

import (
	"context"
	"sync"

	id "certflow/pkg/domain"
)

// Locker serializes write operations within a single case. Operations on
// different cases proceed concurrently.
type Locker interface {
	// WithLock runs fn while holding the exclusive lock for caseID.
	WithLock(ctx context.Context, caseID id.CaseID, fn func(ctx context.Context) error) error
}

// MemoryLocker implements per-case locking with in-process mutexes. Suitable
// for single-instance deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[id.CaseID]*sync.Mutex
}

// NewMemoryLocker constructs an in-process case locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[id.CaseID]*sync.Mutex)}
}

func (l *MemoryLocker) WithLock(ctx context.Context, caseID id.CaseID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[caseID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[caseID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
