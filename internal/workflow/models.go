// Package workflow holds the per-case stage state machine: the case model,
// its derived progress, and the signals emitted when a case crosses the
// scheduling or completion thresholds.
package workflow

import (
	"math"
	"time"

	id "certflow/pkg/domain"
)

// Progress constants. Case intake happens before this engine is invoked and
// is worth a fixed 20 points; the seven stages share the remaining 80.
const (
	intakeProgress = 20
	stagesWeight   = 80
	fullProgress   = 100
)

// Case is one certification request under evaluation. Stage state is owned
// exclusively by the workflow service; other modules read snapshots.
type Case struct {
	ID          id.CaseID
	ProcessType string
	Stages      map[id.Stage]id.StageState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewCase returns a case with every stage Pending.
func NewCase(caseID id.CaseID, processType string, now time.Time) *Case {
	stages := make(map[id.Stage]id.StageState, id.StageCount)
	for _, s := range id.AllStages() {
		stages[s] = id.StagePending
	}
	return &Case{
		ID:          caseID,
		ProcessType: processType,
		Stages:      stages,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CompletedCount returns the number of Completed stages.
func (c *Case) CompletedCount() int {
	n := 0
	for _, state := range c.Stages {
		if state == id.StageCompleted {
			n++
		}
	}
	return n
}

// Progress is the derived completion percentage. It is always recomputed
// from stage state, never stored as ground truth, so it cannot drift.
func (c *Case) Progress() int {
	return ProgressFor(c.CompletedCount())
}

// IsComplete reports whether every stage is Completed.
func (c *Case) IsComplete() bool {
	return c.CompletedCount() == id.StageCount
}

// Clone returns a deep copy so store snapshots cannot alias live state.
func (c *Case) Clone() *Case {
	stages := make(map[id.Stage]id.StageState, len(c.Stages))
	for s, st := range c.Stages {
		stages[s] = st
	}
	out := *c
	out.Stages = stages
	return &out
}

// ProgressFor computes the progress percentage for a completed-stage count,
// rounded to the nearest integer and clamped to [20,100].
func ProgressFor(completed int) int {
	p := int(math.Round(intakeProgress + stagesWeight*float64(completed)/float64(id.StageCount)))
	if p < intakeProgress {
		return intakeProgress
	}
	if p > fullProgress {
		return fullProgress
	}
	return p
}

// Signal is the advisory side effect of a stage completion.
type Signal string

const (
	// SignalNone: no threshold crossed.
	SignalNone Signal = ""

	// SignalNeedsScheduling: all non-gated stages are complete and no
	// appointment exists yet; the caller should present the scheduling step.
	// Advisory only - it does not block further non-gated completions.
	SignalNeedsScheduling Signal = "needs_scheduling"

	// SignalCaseComplete: the case has reached its terminal state.
	SignalCaseComplete Signal = "case_complete"
)

// CompletionResult reports the outcome of a successful CompleteStage call.
type CompletionResult struct {
	Stage    id.Stage
	Progress int
	Signal   Signal
}
