// Package handler wires the workflow engine to its HTTP endpoints. Handlers
// stay thin: parse, delegate, render.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certflow/internal/workflow"
	id "certflow/pkg/domain"
	"certflow/pkg/platform/httputil"
	"certflow/pkg/requestcontext"
)

// Service defines the engine operations the HTTP layer needs.
type Service interface {
	Register(ctx context.Context, processType string) (*workflow.Case, error)
	CompleteStage(ctx context.Context, caseID id.CaseID, stage id.Stage) (*workflow.CompletionResult, error)
	Get(ctx context.Context, caseID id.CaseID) (*workflow.Case, error)
	Progress(ctx context.Context, caseID id.CaseID) (int, error)
	List(ctx context.Context) ([]*workflow.Case, error)
}

// Handler wires case workflow endpoints to the engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a workflow handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts workflow endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cases", h.HandleRegisterCase)
	r.Get("/cases", h.HandleListCases)
	r.Get("/cases/{caseID}", h.HandleGetCase)
	r.Get("/cases/{caseID}/progress", h.HandleProgress)
	r.Post("/cases/{caseID}/stages/{stage}/complete", h.HandleCompleteStage)
}

type registerCaseRequest struct {
	ProcessType string `json:"process_type"`
}

type caseResponse struct {
	ID          string            `json:"id"`
	ProcessType string            `json:"process_type"`
	StageStates map[string]string `json:"stage_states"`
	Progress    int               `json:"completion_percent"`
	IsComplete  bool              `json:"is_complete"`
}

func toCaseResponse(c *workflow.Case) caseResponse {
	states := make(map[string]string, len(c.Stages))
	for stage, state := range c.Stages {
		states[stage.String()] = string(state)
	}
	return caseResponse{
		ID:          c.ID.String(),
		ProcessType: c.ProcessType,
		StageStates: states,
		Progress:    c.Progress(),
		IsComplete:  c.IsComplete(),
	}
}

// HandleRegisterCase handles POST /cases.
func (h *Handler) HandleRegisterCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[registerCaseRequest](w, r, h.logger)
	if !ok {
		return
	}

	c, err := h.service.Register(ctx, req.ProcessType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCaseResponse(c))
}

// HandleCompleteStage handles POST /cases/{caseID}/stages/{stage}/complete.
func (h *Handler) HandleCompleteStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stage, err := id.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.CompleteStage(ctx, caseID, stage)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "stage completion handled",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID,
		"stage", stage,
		"signal", result.Signal,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"stage":              result.Stage.String(),
		"completion_percent": result.Progress,
		"signal":             string(result.Signal),
	})
}

// HandleGetCase handles GET /cases/{caseID}.
func (h *Handler) HandleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

// HandleProgress handles GET /cases/{caseID}/progress.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	progress, err := h.service.Progress(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"completion_percent": progress})
}

// HandleListCases handles GET /cases.
func (h *Handler) HandleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]caseResponse, 0, len(cases))
	for _, c := range cases {
		out = append(out, toCaseResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
