// Package ports defines the interfaces the workflow service consumes.
// Interfaces live here so stores and collaborating modules can implement them
// without importing the service.
package ports

import (
	"context"

	"certflow/internal/workflow"
	id "certflow/pkg/domain"
)

// CaseStore persists case stage state. Implementations return sentinel errors
// (pkg/platform/sentinel); the service translates them into domain errors.
type CaseStore interface {
	// Create stores a new case. Returns sentinel.ErrConflict when the case
	// already exists.
	Create(ctx context.Context, c *workflow.Case) error

	// Get returns a consistent snapshot of the case. Returns
	// sentinel.ErrNotFound when absent.
	Get(ctx context.Context, caseID id.CaseID) (*workflow.Case, error)

	// SetStage transitions one stage from an expected prior state. Returns
	// sentinel.ErrInvalidState when the stored state does not match from,
	// sentinel.ErrNotFound when the case is absent.
	SetStage(ctx context.Context, caseID id.CaseID, stage id.Stage, from, to id.StageState) error

	// List returns snapshots of all cases.
	List(ctx context.Context) ([]*workflow.Case, error)
}

// AppointmentLookup is the engine's view of the appointment module: the gate
// on examination stages only needs existence.
type AppointmentLookup interface {
	Exists(ctx context.Context, caseID id.CaseID) (bool, error)
}
