// Package license defines the issued-license record. Issuance is the final
// step of a certification case: the record is immutable once written.
package license

import (
	"fmt"
	"time"

	id "certflow/pkg/domain"
)

// ValidityYears is how long an issued license stays valid, in calendar
// years.
const ValidityYears = 2

// License is one issued license. Re-issuance for the same case creates a
// fresh record with its own registration code; existing records are never
// modified.
type License struct {
	ID               id.LicenseID
	CaseID           id.CaseID
	RecipientID      string
	Category         string
	ExamDate         time.Time
	PhotoRef         string
	IssueDate        time.Time
	ExpiryDate       time.Time
	RegistrationCode string
}

// Clone returns a copy safe to hand to callers.
func (l *License) Clone() *License {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// NewRegistrationCode derives the printable registration code from the
// license identity and issue year, e.g. "CF-2026-9f86d081".
func NewRegistrationCode(licenseID id.LicenseID, issueDate time.Time) string {
	return fmt.Sprintf("CF-%d-%.8s", issueDate.Year(), licenseID.String())
}

// ExpiryFor computes the expiry for a license issued at issueDate.
func ExpiryFor(issueDate time.Time) time.Time {
	return issueDate.AddDate(ValidityYears, 0, 0)
}
