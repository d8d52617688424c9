package domain

import dErrors "certflow/pkg/domain-errors"

// Stage is a domain value identifying one of the fixed evaluation domains a
// certification case passes through.
//
// Invariant: the value must be one of the seven registered stages.
//
// Usage: construct via ParseStage at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Stage string

// The seven evaluation stages, in fixed domain order.
const (
	StageMedicalReview            Stage = "medical_review"
	StageFinancialReview          Stage = "financial_review"
	StageAntiDopingReview         Stage = "anti_doping_review"
	StageBackgroundReview         Stage = "background_review"
	StageTrainingSchool           Stage = "training_school"
	StagePracticalTheoreticalExam Stage = "practical_theoretical_exam"
	StagePsychologicalReview      Stage = "psychological_review"
)

const (
	// StageCount is the size of the fixed stage set.
	StageCount = 7

	// SchedulingThreshold is the completed-stage count at which a case needs
	// an examination appointment scheduled. It equals the number of non-gated
	// stages: once those are done, only gated stages remain.
	SchedulingThreshold = 5
)

// stageTable is the single source of truth for stage order and gating.
// Gated stages cannot be completed until an appointment exists for the case.
var stageTable = []struct {
	stage Stage
	gated bool
}{
	{StageMedicalReview, false},
	{StageFinancialReview, false},
	{StageAntiDopingReview, false},
	{StageBackgroundReview, false},
	{StageTrainingSchool, false},
	{StagePracticalTheoreticalExam, true},
	{StagePsychologicalReview, true},
}

var stageGated = func() map[Stage]bool {
	m := make(map[Stage]bool, len(stageTable))
	for _, e := range stageTable {
		m[e.stage] = e.gated
	}
	return m
}()

// AllStages returns the full stage set in fixed order. The returned slice is
// a fresh copy on every call.
func AllStages() []Stage {
	out := make([]Stage, len(stageTable))
	for i, e := range stageTable {
		out[i] = e.stage
	}
	return out
}

// ParseStage constructs a Stage from external input.
//
// Errors: returns CodeUnknownStage when the value is empty or not one of the
// seven registered stages; no other errors are expected.
func ParseStage(s string) (Stage, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeUnknownStage, "stage cannot be empty")
	}
	st := Stage(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeUnknownStage, "unknown stage %q", s)
	}
	return st, nil
}

// IsValid checks if the stage is one of the registered values.
func (s Stage) IsValid() bool {
	_, ok := stageGated[s]
	return ok
}

// Gated reports whether the stage requires a scheduled appointment before it
// can be completed. Unknown stages report false; validate first.
func (s Stage) Gated() bool {
	return stageGated[s]
}

// String returns the string representation of the stage.
func (s Stage) String() string { return string(s) }

// StageState is the completion state of one stage within a case. There is no
// in-progress state; a stage is atomically completed by a single call.
type StageState string

const (
	StagePending   StageState = "Pending"
	StageCompleted StageState = "Completed"
)

// IsValid checks if the state is one of the supported values.
func (s StageState) IsValid() bool {
	return s == StagePending || s == StageCompleted
}
