package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "certflow/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("validation error includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "room is required"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "validation_failed" {
			t.Fatalf("expected error code validation_failed, got %q", body["error"])
		}
		if body["error_description"] != "room is required" {
			t.Fatalf("expected error_description to be returned for validation errors")
		}
	})

	t.Run("workflow codes map to conflict", func(t *testing.T) {
		for _, code := range []dErrors.Code{
			dErrors.CodeStageAlreadyCompleted,
			dErrors.CodeCaseAlreadyComplete,
			dErrors.CodeGateNotSatisfied,
			dErrors.CodeStageNotCompleted,
			dErrors.CodeCaseNotComplete,
		} {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(code, "x"))
			if w.Code != http.StatusConflict {
				t.Fatalf("code %s: expected status %d, got %d", code, http.StatusConflict, w.Code)
			}
		}
	})

	t.Run("credential denied maps to forbidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeCredentialDenied, "wrong credential"))
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected status %d, got %d", http.StatusForbidden, w.Code)
		}
	})

	t.Run("non-domain error collapses to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, http.ErrBodyNotAllowed)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}
