// Package handler exposes license issuance over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certflow/internal/license"
	"certflow/internal/license/service"
	id "certflow/pkg/domain"
	"certflow/pkg/platform/httputil"
)

// Service defines the license operations the HTTP layer needs.
type Service interface {
	Issue(ctx context.Context, caseID id.CaseID, req service.IssueRequest) (*license.License, error)
	ListByCase(ctx context.Context, caseID id.CaseID) ([]*license.License, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a license handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts license endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cases/{caseID}/license", h.HandleIssue)
	r.Get("/cases/{caseID}/licenses", h.HandleList)
}

type issueRequest struct {
	RecipientID string    `json:"recipient_id"`
	Category    string    `json:"category"`
	ExamDate    time.Time `json:"exam_date"`
	PhotoRef    string    `json:"photo_ref"`
}

type licenseResponse struct {
	ID               string    `json:"id"`
	CaseID           string    `json:"case_id"`
	RecipientID      string    `json:"recipient_id"`
	Category         string    `json:"category"`
	ExamDate         time.Time `json:"exam_date"`
	PhotoRef         string    `json:"photo_ref"`
	IssueDate        time.Time `json:"issue_date"`
	ExpiryDate       time.Time `json:"expiry_date"`
	RegistrationCode string    `json:"registration_code"`
}

func toLicenseResponse(l *license.License) licenseResponse {
	return licenseResponse{
		ID:               l.ID.String(),
		CaseID:           l.CaseID.String(),
		RecipientID:      l.RecipientID,
		Category:         l.Category,
		ExamDate:         l.ExamDate,
		PhotoRef:         l.PhotoRef,
		IssueDate:        l.IssueDate,
		ExpiryDate:       l.ExpiryDate,
		RegistrationCode: l.RegistrationCode,
	}
}

// HandleIssue handles POST /cases/{caseID}/license.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.Decode[issueRequest](w, r, h.logger)
	if !ok {
		return
	}

	l, err := h.service.Issue(r.Context(), caseID, service.IssueRequest{
		RecipientID: req.RecipientID,
		Category:    req.Category,
		ExamDate:    req.ExamDate,
		PhotoRef:    req.PhotoRef,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toLicenseResponse(l))
}

// HandleList handles GET /cases/{caseID}/licenses.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	licenses, err := h.service.ListByCase(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]licenseResponse, 0, len(licenses))
	for _, l := range licenses {
		out = append(out, toLicenseResponse(l))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
