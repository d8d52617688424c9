// Package domain holds the core value types of certflow: typed identifiers
// and the evaluation stage registry.
//
// Typed IDs prevent cross-type assignment at compile time. Construct them via
// the Parse functions at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "certflow/pkg/domain-errors"
)

// CaseID identifies one certification case.
type CaseID uuid.UUID

// ActorID identifies whoever performs an operation (case worker, supervisor).
type ActorID uuid.UUID

// LicenseID identifies an issued license record.
type LicenseID uuid.UUID

// NewCaseID returns a fresh random case ID.
func NewCaseID() CaseID { return CaseID(uuid.New()) }

// NewLicenseID returns a fresh random license ID.
func NewLicenseID() LicenseID { return LicenseID(uuid.New()) }

// ParseCaseID constructs a CaseID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CaseID{}, err
	}
	return CaseID(u), nil
}

// ParseActorID constructs an ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ActorID{}, err
	}
	return ActorID(u), nil
}

// ParseLicenseID constructs a LicenseID from external input.
func ParseLicenseID(s string) (LicenseID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return LicenseID{}, err
	}
	return LicenseID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func (c CaseID) String() string    { return uuid.UUID(c).String() }
func (a ActorID) String() string   { return uuid.UUID(a).String() }
func (l LicenseID) String() string { return uuid.UUID(l).String() }

// IsNil reports whether the ID is the zero value.
func (c CaseID) IsNil() bool    { return uuid.UUID(c) == uuid.Nil }
func (a ActorID) IsNil() bool   { return uuid.UUID(a) == uuid.Nil }
func (l LicenseID) IsNil() bool { return uuid.UUID(l) == uuid.Nil }
