// Package rehab defines the rehabilitation domain: the privileged reopening
// of a completed evaluation stage, and the append-only audit trail every
// attempt leaves behind.
package rehab

import (
	"time"

	"github.com/google/uuid"

	id "certflow/pkg/domain"
)

// Outcome records how a rehabilitation attempt ended.
type Outcome string

const (
	OutcomeGranted Outcome = "Granted"
	OutcomeDenied  Outcome = "Denied"
)

// Record is one entry in the rehabilitation audit trail. Records are
// append-only: they are never updated or deleted, and every attempt writes
// one regardless of outcome.
type Record struct {
	ID        uuid.UUID
	CaseID    id.CaseID
	Stage     id.Stage
	Timestamp time.Time
	Outcome   Outcome
	Actor     string
	Reason    string
}

// Clone returns a copy safe to hand to callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}
