package service

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certflow/internal/license"
	licenseStore "certflow/internal/license/store"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/requestcontext"
)

// =============================================================================
// License Service Test Suite
// =============================================================================

type stubEngine struct {
	complete map[id.CaseID]bool
}

func (e *stubEngine) IsComplete(_ context.Context, caseID id.CaseID) (bool, error) {
	complete, known := e.complete[caseID]
	if !known {
		return false, dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return complete, nil
}

type LicenseServiceSuite struct {
	suite.Suite
	engine  *stubEngine
	service *Service
	now     time.Time
}

func TestLicenseServiceSuite(t *testing.T) {
	suite.Run(t, new(LicenseServiceSuite))
}

func (s *LicenseServiceSuite) SetupTest() {
	s.engine = &stubEngine{complete: make(map[id.CaseID]bool)}
	s.now = time.Date(2026, 5, 20, 14, 30, 0, 0, time.UTC)

	var err error
	s.service, err = New(s.engine, licenseStore.NewMemory())
	s.Require().NoError(err)
}

func (s *LicenseServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *LicenseServiceSuite) completedCase() id.CaseID {
	caseID := id.NewCaseID()
	s.engine.complete[caseID] = true
	return caseID
}

func (s *LicenseServiceSuite) validRequest() IssueRequest {
	return IssueRequest{
		RecipientID: "NL-1982-044571",
		Category:    "security_officer",
		ExamDate:    s.now.AddDate(0, 0, -3),
		PhotoRef:    "photos/044571.jpg",
	}
}

func (s *LicenseServiceSuite) TestNew() {
	s.Run("nil engine returns error", func() {
		_, err := New(nil, licenseStore.NewMemory())
		s.Error(err)
	})

	s.Run("nil store returns error", func() {
		_, err := New(s.engine, nil)
		s.Error(err)
	})
}

// =============================================================================
// Issue Tests
// =============================================================================

func (s *LicenseServiceSuite) TestIssue() {
	caseID := s.completedCase()

	l, err := s.service.Issue(s.ctx(), caseID, s.validRequest())
	s.Require().NoError(err)

	s.False(l.ID.IsNil())
	s.Equal(caseID, l.CaseID)
	s.Equal(s.now, l.IssueDate)
	s.Equal(s.now.AddDate(license.ValidityYears, 0, 0), l.ExpiryDate)
	s.Regexp(regexp.MustCompile(`^CF-2026-[0-9a-f]{8}$`), l.RegistrationCode)
}

func (s *LicenseServiceSuite) TestIssueRequiresCompleteCase() {
	caseID := id.NewCaseID()
	s.engine.complete[caseID] = false

	_, err := s.service.Issue(s.ctx(), caseID, s.validRequest())
	s.True(dErrors.HasCode(err, dErrors.CodeCaseNotComplete))
}

func (s *LicenseServiceSuite) TestIssueMissingCase() {
	_, err := s.service.Issue(s.ctx(), id.NewCaseID(), s.validRequest())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LicenseServiceSuite) TestIssueValidation() {
	caseID := s.completedCase()

	tests := []struct {
		name   string
		mutate func(*IssueRequest)
	}{
		{"missing recipient", func(r *IssueRequest) { r.RecipientID = "" }},
		{"missing category", func(r *IssueRequest) { r.Category = "" }},
		{"missing exam date", func(r *IssueRequest) { r.ExamDate = time.Time{} }},
		{"missing photo ref", func(r *IssueRequest) { r.PhotoRef = "" }},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.validRequest()
			tt.mutate(&req)
			_, err := s.service.Issue(s.ctx(), caseID, req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *LicenseServiceSuite) TestReissuanceCreatesFreshRecord() {
	caseID := s.completedCase()

	first, err := s.service.Issue(s.ctx(), caseID, s.validRequest())
	s.Require().NoError(err)

	later := requestcontext.WithTime(context.Background(), s.now.AddDate(1, 0, 0))
	second, err := s.service.Issue(later, caseID, s.validRequest())
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.NotEqual(first.RegistrationCode, second.RegistrationCode)
	s.Equal(fmt.Sprintf("CF-%d-", 2027), second.RegistrationCode[:8])

	licenses, err := s.service.ListByCase(s.ctx(), caseID)
	s.Require().NoError(err)
	s.Len(licenses, 2, "re-issuance must not overwrite the original record")
}

func (s *LicenseServiceSuite) TestListByCaseEmpty() {
	licenses, err := s.service.ListByCase(s.ctx(), id.NewCaseID())
	s.NoError(err)
	s.Empty(licenses)
}
