// Package handler exposes the rehabilitation endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certflow/internal/rehab"
	"certflow/internal/rehab/service"
	id "certflow/pkg/domain"
	"certflow/pkg/platform/httputil"
)

// Service defines the rehabilitation operations the HTTP layer needs.
type Service interface {
	Rehabilitate(ctx context.Context, caseID id.CaseID, stage id.Stage, credential, reason string) (*service.Result, error)
	History(ctx context.Context, caseID id.CaseID) ([]*rehab.Record, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a rehabilitation handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts rehabilitation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cases/{caseID}/stages/{stage}/rehabilitate", h.HandleRehabilitate)
	r.Get("/cases/{caseID}/rehabilitations", h.HandleHistory)
}

type rehabilitateRequest struct {
	SupervisorCredential string `json:"supervisor_credential"`
	Reason               string `json:"reason"`
}

type recordResponse struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
	Actor     string    `json:"actor,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

func toRecordResponse(r *rehab.Record) recordResponse {
	return recordResponse{
		ID:        r.ID.String(),
		CaseID:    r.CaseID.String(),
		Stage:     r.Stage.String(),
		Timestamp: r.Timestamp,
		Outcome:   string(r.Outcome),
		Actor:     r.Actor,
		Reason:    r.Reason,
	}
}

// HandleRehabilitate handles POST /cases/{caseID}/stages/{stage}/rehabilitate.
func (h *Handler) HandleRehabilitate(w http.ResponseWriter, r *http.Request) {
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

	req, ok := httputil.Decode[rehabilitateRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.Rehabilitate(r.Context(), caseID, stage, req.SupervisorCredential, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"stage":              result.Stage.String(),
		"completion_percent": result.Progress,
	})
}

// HandleHistory handles GET /cases/{caseID}/rehabilitations.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.service.History(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordResponse(record))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
