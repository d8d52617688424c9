// Package httputil provides shared JSON response helpers for HTTP handlers.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "certflow/pkg/domain-errors"
)

// codeStatus maps domain error codes to HTTP statuses. Unmapped codes fall
// back to 500.
var codeStatus = map[dErrors.Code]int{
	dErrors.CodeBadRequest:            http.StatusBadRequest,
	dErrors.CodeValidation:            http.StatusBadRequest,
	dErrors.CodeInvalidInput:          http.StatusBadRequest,
	dErrors.CodeUnknownStage:          http.StatusBadRequest,
	dErrors.CodeNotFound:              http.StatusNotFound,
	dErrors.CodeConflict:              http.StatusConflict,
	dErrors.CodeStageAlreadyCompleted: http.StatusConflict,
	dErrors.CodeCaseAlreadyComplete:   http.StatusConflict,
	dErrors.CodeGateNotSatisfied:      http.StatusConflict,
	dErrors.CodeStageNotCompleted:     http.StatusConflict,
	dErrors.CodeCaseNotComplete:       http.StatusConflict,
	dErrors.CodeCredentialDenied:      http.StatusForbidden,
	dErrors.CodeForbidden:             http.StatusForbidden,
	dErrors.CodeUnauthorized:          http.StatusUnauthorized,
	dErrors.CodeInternal:              http.StatusInternalServerError,
	dErrors.CodeInvariantViolation:    http.StatusInternalServerError,
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a domain error as a JSON error response. Internal errors
// omit the description so infrastructure detail never reaches clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := map[string]string{"error": string(code)}
	if status < http.StatusInternalServerError {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}
	WriteJSON(w, status, body)
}

// Decode parses the JSON request body into T. On failure it writes a
// bad-request response and returns ok=false; handlers should return
// immediately.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "failed to decode request body", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return v, false
	}
	return v, true
}
