// Package domainerrors provides coded errors for the certflow domain.
//
// Services return these so transport layers can map failures to specific
// responses without string matching. Stores return sentinel errors
// (pkg/platform/sentinel) and services translate them into coded errors at
// the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable API: handlers map them to
// HTTP statuses and clients branch on them.
type Code string

const (
	// Generic codes.
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_failed"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"

	// Workflow codes.
	CodeUnknownStage          Code = "unknown_stage"
	CodeStageAlreadyCompleted Code = "stage_already_completed"
	CodeCaseAlreadyComplete   Code = "case_already_complete"
	CodeGateNotSatisfied      Code = "gate_not_satisfied"
	CodeStageNotCompleted     Code = "stage_not_completed"
	CodeCredentialDenied      Code = "credential_denied"
	CodeCaseNotComplete       Code = "case_not_complete"
)

// Error is a coded domain error. The message is caller-facing; wrapped causes
// stay internal.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error with a caller-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause remains
// reachable via errors.Unwrap for logging; only code and message are exposed
// to callers.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code. Alias of HasCode kept for
// call-site readability in tests.
func Is(err error, code Code) bool { return HasCode(err, code) }

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or CodeInternal when err is not a domain
// error. Unknown failures must not leak detail, so they collapse to internal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-facing message from err, empty for non-domain
// errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
