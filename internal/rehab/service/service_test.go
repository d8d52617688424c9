package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certflow/internal/credential"
	"certflow/internal/platform/caselock"
	"certflow/internal/rehab"
	rehabStore "certflow/internal/rehab/store"
	"certflow/internal/workflow"
	workflowService "certflow/internal/workflow/service"
	workflowStore "certflow/internal/workflow/store"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/requestcontext"
)

// =============================================================================
// Rehabilitation Service Test Suite
// =============================================================================
// Runs against a real workflow engine over in-memory stores so the tests
// observe the actual stage state before and after each attempt. The two
// load-bearing properties: a failed credential check never mutates state,
// and a stage never reopens without its audit record landing first.

type RehabServiceSuite struct {
	suite.Suite
	records *rehabStore.InMemoryRecordStore
	engine  *workflowService.Service
	service *Service
	now     time.Time
}

func TestRehabServiceSuite(t *testing.T) {
	suite.Run(t, new(RehabServiceSuite))
}

type allScheduled struct{}

func (allScheduled) Exists(context.Context, id.CaseID) (bool, error) { return true, nil }

func (s *RehabServiceSuite) SetupTest() {
	s.records = rehabStore.NewMemory()
	s.now = time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)

	var err error
	s.engine, err = workflowService.New(workflowStore.NewMemory(), allScheduled{}, caselock.NewMemoryLocker())
	s.Require().NoError(err)

	s.service, err = New(s.engine, s.records, credential.NewStaticVerifier("supervisor-secret"))
	s.Require().NoError(err)
}

func (s *RehabServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

// newCaseWith registers a case and completes the given stages.
func (s *RehabServiceSuite) newCaseWith(stages ...id.Stage) *workflow.Case {
	c, err := s.engine.Register(s.ctx(), "security_officer")
	s.Require().NoError(err)
	for _, stage := range stages {
		_, err := s.engine.CompleteStage(s.ctx(), c.ID, stage)
		s.Require().NoError(err)
	}
	return c
}

func (s *RehabServiceSuite) stageState(caseID id.CaseID, stage id.Stage) id.StageState {
	c, err := s.engine.Get(s.ctx(), caseID)
	s.Require().NoError(err)
	return c.Stages[stage]
}

func (s *RehabServiceSuite) TestNew() {
	verifier := credential.NewStaticVerifier("x")

	s.Run("nil engine returns error", func() {
		_, err := New(nil, s.records, verifier)
		s.Error(err)
	})

	s.Run("nil store returns error", func() {
		_, err := New(s.engine, nil, verifier)
		s.Error(err)
	})

	s.Run("nil verifier returns error", func() {
		_, err := New(s.engine, s.records, nil)
		s.Error(err)
	})
}

// =============================================================================
// Rehabilitate Tests
// =============================================================================

func (s *RehabServiceSuite) TestRehabilitateGranted() {
	c := s.newCaseWith(id.StageMedicalReview, id.StageFinancialReview)

	result, err := s.service.Rehabilitate(s.ctx(), c.ID, id.StageMedicalReview, "supervisor-secret", "document expired")
	s.Require().NoError(err)
	s.Equal(id.StageMedicalReview, result.Stage)
	s.Equal(workflow.ProgressFor(1), result.Progress)

	s.Equal(id.StagePending, s.stageState(c.ID, id.StageMedicalReview))

	records, err := s.service.History(s.ctx(), c.ID)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(rehab.OutcomeGranted, records[0].Outcome)
	s.Equal(id.StageMedicalReview, records[0].Stage)
	s.Equal("document expired", records[0].Reason)
	s.Equal(s.now, records[0].Timestamp)
}

func (s *RehabServiceSuite) TestRehabilitateDenied() {
	c := s.newCaseWith(id.StageMedicalReview)

	_, err := s.service.Rehabilitate(s.ctx(), c.ID, id.StageMedicalReview, "wrong-credential", "attempt")
	s.True(dErrors.HasCode(err, dErrors.CodeCredentialDenied))

	s.Equal(id.StageCompleted, s.stageState(c.ID, id.StageMedicalReview),
		"a denied attempt must not touch stage state")

	records, err := s.service.History(s.ctx(), c.ID)
	s.Require().NoError(err)
	s.Require().Len(records, 1, "denied attempts are audited too")
	s.Equal(rehab.OutcomeDenied, records[0].Outcome)
}

func (s *RehabServiceSuite) TestRehabilitateReopensTerminalCase() {
	c := s.newCaseWith(id.AllStages()...)

	complete, err := s.engine.IsComplete(s.ctx(), c.ID)
	s.Require().NoError(err)
	s.Require().True(complete)

	result, err := s.service.Rehabilitate(s.ctx(), c.ID, id.StagePsychologicalReview, "supervisor-secret", "retest ordered")
	s.Require().NoError(err)
	s.Equal(workflow.ProgressFor(6), result.Progress)

	complete, err = s.engine.IsComplete(s.ctx(), c.ID)
	s.Require().NoError(err)
	s.False(complete)
}

func (s *RehabServiceSuite) TestRehabilitatePreconditions() {
	c := s.newCaseWith(id.StageMedicalReview)

	s.Run("pending stage is rejected before the credential check", func() {
		_, err := s.service.Rehabilitate(s.ctx(), c.ID, id.StageFinancialReview, "supervisor-secret", "")
		s.True(dErrors.HasCode(err, dErrors.CodeStageNotCompleted))

		records, err := s.service.History(s.ctx(), c.ID)
		s.Require().NoError(err)
		s.Empty(records, "precondition failures are not credential decisions")
	})

	s.Run("unknown stage", func() {
		_, err := s.service.Rehabilitate(s.ctx(), c.ID, id.Stage("astrology_review"), "supervisor-secret", "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownStage))
	})

	s.Run("missing case", func() {
		_, err := s.service.Rehabilitate(s.ctx(), id.NewCaseID(), id.StageMedicalReview, "supervisor-secret", "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RehabServiceSuite) TestAuditFailureAbortsReopen() {
	c := s.newCaseWith(id.StageMedicalReview)
	s.records.FailAppendWith(errors.New("disk full"))

	_, err := s.service.Rehabilitate(s.ctx(), c.ID, id.StageMedicalReview, "supervisor-secret", "")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	s.Equal(id.StageCompleted, s.stageState(c.ID, id.StageMedicalReview),
		"the stage must not reopen when the audit record cannot be written")
}

func (s *RehabServiceSuite) TestAuditFailureOnDeniedAttempt() {
	c := s.newCaseWith(id.StageMedicalReview)
	s.records.FailAppendWith(errors.New("disk full"))

	_, err := s.service.Rehabilitate(s.ctx(), c.ID, id.StageMedicalReview, "wrong-credential", "")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal),
		"an unrecordable denial surfaces as internal, not as a credential error")
}

// =============================================================================
// History Tests
// =============================================================================

func (s *RehabServiceSuite) TestHistory() {
	c := s.newCaseWith(id.StageMedicalReview, id.StageBackgroundReview)

	_, err := s.service.Rehabilitate(s.ctx(), c.ID, id.StageMedicalReview, "wrong", "first try")
	s.True(dErrors.HasCode(err, dErrors.CodeCredentialDenied))

	_, err = s.service.Rehabilitate(s.ctx(), c.ID, id.StageMedicalReview, "supervisor-secret", "second try")
	s.Require().NoError(err)

	records, err := s.service.History(s.ctx(), c.ID)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(rehab.OutcomeDenied, records[0].Outcome)
	s.Equal(rehab.OutcomeGranted, records[1].Outcome)

	s.Run("empty trail for unknown case", func() {
		records, err := s.service.History(s.ctx(), id.NewCaseID())
		s.NoError(err)
		s.Empty(records)
	})
}
