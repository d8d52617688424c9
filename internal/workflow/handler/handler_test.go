package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	appointmentService "certflow/internal/appointment/service"
	appointmentStore "certflow/internal/appointment/store"
	"certflow/internal/platform/caselock"
	"certflow/internal/platform/middleware"
	"certflow/internal/workflow/service"
	workflowStore "certflow/internal/workflow/store"
	id "certflow/pkg/domain"
)

// =============================================================================
// Workflow Handler Test Suite
// =============================================================================
// End-to-end over httptest with in-memory stores: request parsing, status
// mapping, and the JSON shape clients depend on.

type WorkflowHandlerSuite struct {
	suite.Suite
	server *httptest.Server
}

func TestWorkflowHandlerSuite(t *testing.T) {
	suite.Run(t, new(WorkflowHandlerSuite))
}

func (s *WorkflowHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locker := caselock.NewMemoryLocker()

	appointments, err := appointmentService.New(appointmentStore.NewMemory(), locker)
	s.Require().NoError(err)

	engine, err := service.New(workflowStore.NewMemory(), appointments, locker)
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RequestTime)
	New(engine, logger).Register(r)

	s.server = httptest.NewServer(r)
	s.T().Cleanup(s.server.Close)
}

func (s *WorkflowHandlerSuite) postJSON(path string, body any) (*http.Response, map[string]any) {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)

	resp, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(raw))
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (s *WorkflowHandlerSuite) getJSON(path string) (*http.Response, map[string]any) {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (s *WorkflowHandlerSuite) registerCase() string {
	resp, body := s.postJSON("/cases", map[string]string{"process_type": "security_officer"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func (s *WorkflowHandlerSuite) TestRegisterCase() {
	resp, body := s.postJSON("/cases", map[string]string{"process_type": "security_officer"})
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("security_officer", body["process_type"])
	s.Equal(float64(20), body["completion_percent"])
	s.Equal(false, body["is_complete"])

	states := body["stage_states"].(map[string]any)
	s.Len(states, id.StageCount)
	for _, state := range states {
		s.Equal("Pending", state)
	}
}

func (s *WorkflowHandlerSuite) TestCompleteStage() {
	caseID := s.registerCase()

	resp, body := s.postJSON(fmt.Sprintf("/cases/%s/stages/medical_review/complete", caseID), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("medical_review", body["stage"])
	s.Equal(float64(31), body["completion_percent"])
	s.Equal("", body["signal"])
}

func (s *WorkflowHandlerSuite) TestCompleteStageErrors() {
	caseID := s.registerCase()

	s.Run("unknown stage maps to 400", func() {
		resp, body := s.postJSON(fmt.Sprintf("/cases/%s/stages/astrology_review/complete", caseID), nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
		s.Equal("unknown_stage", body["error"])
	})

	s.Run("repeat completion maps to 409", func() {
		resp, _ := s.postJSON(fmt.Sprintf("/cases/%s/stages/medical_review/complete", caseID), nil)
		s.Equal(http.StatusOK, resp.StatusCode)

		resp, body := s.postJSON(fmt.Sprintf("/cases/%s/stages/medical_review/complete", caseID), nil)
		s.Equal(http.StatusConflict, resp.StatusCode)
		s.Equal("stage_already_completed", body["error"])
	})

	s.Run("gated stage without appointment maps to 409", func() {
		resp, body := s.postJSON(fmt.Sprintf("/cases/%s/stages/psychological_review/complete", caseID), nil)
		s.Equal(http.StatusConflict, resp.StatusCode)
		s.Equal("gate_not_satisfied", body["error"])
	})

	s.Run("missing case maps to 404", func() {
		resp, _ := s.postJSON(fmt.Sprintf("/cases/%s/stages/medical_review/complete", id.NewCaseID()), nil)
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("malformed case id maps to 400", func() {
		resp, _ := s.postJSON("/cases/not-a-uuid/stages/medical_review/complete", nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *WorkflowHandlerSuite) TestProgress() {
	caseID := s.registerCase()

	resp, body := s.getJSON(fmt.Sprintf("/cases/%s/progress", caseID))
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(float64(20), body["completion_percent"])
}

func (s *WorkflowHandlerSuite) TestGetCase() {
	caseID := s.registerCase()

	resp, body := s.getJSON("/cases/" + caseID)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(caseID, body["id"])
}
