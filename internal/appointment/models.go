// Package appointment owns the single live examination appointment per case.
// A scheduled appointment is what unlocks the gated stages.
package appointment

import (
	"time"

	id "certflow/pkg/domain"
)

// Appointment is the scheduled gating event for a case. Reschedule replaces
// the record wholesale; there is no partial update.
type Appointment struct {
	CaseID         id.CaseID
	DateTime       time.Time
	Room           string
	AttendeeCounts map[string]int
	TestsIncluded  map[string]bool
	CreatedAt      time.Time
	// ReplacedAt is set on records created by Reschedule, pointing at the
	// moment the previous appointment was superseded.
	ReplacedAt *time.Time
}

// Details carries the caller-supplied fields for Schedule and Reschedule.
type Details struct {
	DateTime       time.Time
	Room           string
	AttendeeCounts map[string]int
	TestsIncluded  map[string]bool
}

// Clone returns a deep copy so store snapshots cannot alias live state.
func (a *Appointment) Clone() *Appointment {
	out := *a
	if a.AttendeeCounts != nil {
		out.AttendeeCounts = make(map[string]int, len(a.AttendeeCounts))
		for k, v := range a.AttendeeCounts {
			out.AttendeeCounts[k] = v
		}
	}
	if a.TestsIncluded != nil {
		out.TestsIncluded = make(map[string]bool, len(a.TestsIncluded))
		for k, v := range a.TestsIncluded {
			out.TestsIncluded[k] = v
		}
	}
	if a.ReplacedAt != nil {
		t := *a.ReplacedAt
		out.ReplacedAt = &t
	}
	return &out
}
