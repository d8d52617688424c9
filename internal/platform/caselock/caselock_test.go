package caselock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "certflow/pkg/domain"
)

// TestMemoryLocker_SerializesWithinCase verifies the single-writer-per-case
// discipline: concurrent critical sections for one case never overlap.
func TestMemoryLocker_SerializesWithinCase(t *testing.T) {
	locker := NewMemoryLocker()
	caseID := id.NewCaseID()

	const workers = 16
	var inSection, maxInSection, counter int
	var observe sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), caseID, func(context.Context) error {
				observe.Lock()
				inSection++
				if inSection > maxInSection {
					maxInSection = inSection
				}
				observe.Unlock()

				counter++ // unguarded except by the case lock

				observe.Lock()
				inSection--
				observe.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInSection, "critical sections for one case must not overlap")
	assert.Equal(t, workers, counter)
}

// TestMemoryLocker_IndependentCases verifies locks are per-case, not global:
// a section for case A can run while case B holds its own lock.
func TestMemoryLocker_IndependentCases(t *testing.T) {
	locker := NewMemoryLocker()
	caseA, caseB := id.NewCaseID(), id.NewCaseID()

	holdingA := make(chan struct{})
	releaseA := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- locker.WithLock(context.Background(), caseA, func(context.Context) error {
			close(holdingA)
			<-releaseA
			return nil
		})
	}()

	<-holdingA
	err := locker.WithLock(context.Background(), caseB, func(context.Context) error { return nil })
	require.NoError(t, err, "case B must not wait on case A's lock")

	close(releaseA)
	require.NoError(t, <-done)
}

func TestMemoryLocker_PropagatesError(t *testing.T) {
	locker := NewMemoryLocker()
	wantErr := assert.AnError
	err := locker.WithLock(context.Background(), id.NewCaseID(), func(context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}
