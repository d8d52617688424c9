// Package handler exposes appointment scheduling over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certflow/internal/appointment"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/httputil"
)

// Service defines the appointment operations the HTTP layer needs.
type Service interface {
	Schedule(ctx context.Context, caseID id.CaseID, details appointment.Details) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, caseID id.CaseID, details appointment.Details) (*appointment.Appointment, error)
	Get(ctx context.Context, caseID id.CaseID) (*appointment.Appointment, bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an appointment handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts appointment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/cases/{caseID}/appointment", func(r chi.Router) {
		r.Post("/", h.HandleSchedule)
		r.Put("/", h.HandleReschedule)
		r.Get("/", h.HandleGet)
	})
}

type detailsRequest struct {
	DateTime       time.Time       `json:"date_time"`
	Room           string          `json:"room"`
	AttendeeCounts map[string]int  `json:"attendee_counts"`
	TestsIncluded  map[string]bool `json:"tests_included"`
}

func (r detailsRequest) toDomain() appointment.Details {
	return appointment.Details{
		DateTime:       r.DateTime,
		Room:           r.Room,
		AttendeeCounts: r.AttendeeCounts,
		TestsIncluded:  r.TestsIncluded,
	}
}

type appointmentResponse struct {
	CaseID         string          `json:"case_id"`
	DateTime       time.Time       `json:"date_time"`
	Room           string          `json:"room"`
	AttendeeCounts map[string]int  `json:"attendee_counts,omitempty"`
	TestsIncluded  map[string]bool `json:"tests_included,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ReplacedAt     *time.Time      `json:"replaced_at,omitempty"`
}

func toResponse(a *appointment.Appointment) appointmentResponse {
	return appointmentResponse{
		CaseID:         a.CaseID.String(),
		DateTime:       a.DateTime,
		Room:           a.Room,
		AttendeeCounts: a.AttendeeCounts,
		TestsIncluded:  a.TestsIncluded,
		CreatedAt:      a.CreatedAt,
		ReplacedAt:     a.ReplacedAt,
	}
}

// HandleSchedule handles POST /cases/{caseID}/appointment.
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.Decode[detailsRequest](w, r, h.logger)
	if !ok {
		return
	}

	appt, err := h.service.Schedule(r.Context(), caseID, req.toDomain())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(appt))
}

// HandleReschedule handles PUT /cases/{caseID}/appointment.
func (h *Handler) HandleReschedule(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.Decode[detailsRequest](w, r, h.logger)
	if !ok {
		return
	}

	appt, err := h.service.Reschedule(r.Context(), caseID, req.toDomain())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(appt))
}

// HandleGet handles GET /cases/{caseID}/appointment.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	appt, found, err := h.service.Get(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !found {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no appointment scheduled for case"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(appt))
}
