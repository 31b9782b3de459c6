package models

import (
	"fmt"
	"net/http"
)

// Error codes surfaced in the API error envelope.
const (
	CodeNotFound                = "NOT_FOUND"
	CodeValidationError         = "VALIDATION_ERROR"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeInvalidReadinessState   = "INVALID_READINESS_STATE"
	CodeLockConflict            = "LOCK_CONFLICT"
	CodeInternalError           = "INTERNAL_ERROR"
)

// Error is the closed taxonomy of failures raised inside the core and
// translated at the transport boundary into the error envelope. It carries
// the HTTP status the transport should emit, a machine code, and optional
// structured details.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Details    map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFound reports a missing entity (404).
func NotFound(message string) *Error {
	return &Error{HTTPStatus: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// Validation reports a request-shape or schema-bounds failure (422).
func Validation(message string, details map[string]any) *Error {
	return &Error{
		HTTPStatus: http.StatusUnprocessableEntity,
		Code:       CodeValidationError,
		Message:    message,
		Details:    details,
	}
}

// CallerMismatch reports a lock operation attempted by a caller that does
// not hold the lease (403, VALIDATION_ERROR code per the API contract).
func CallerMismatch(message string) *Error {
	return &Error{HTTPStatus: http.StatusForbidden, Code: CodeValidationError, Message: message}
}

// InvalidStatusTransition reports a transition outside the state machine
// table (422) with {from, to} details.
func InvalidStatusTransition(from, to Status) *Error {
	return &Error{
		HTTPStatus: http.StatusUnprocessableEntity,
		Code:       CodeInvalidStatusTransition,
		Message:    fmt.Sprintf("invalid transition from %s to %s", from, to),
		Details:    map[string]any{"from": string(from), "to": string(to)},
	}
}

// InvalidReadinessState reports a failed lock-purpose or completion
// precondition (422).
func InvalidReadinessState(message string) *Error {
	return &Error{
		HTTPStatus: http.StatusUnprocessableEntity,
		Code:       CodeInvalidReadinessState,
		Message:    message,
	}
}

// LockConflict reports an acquire against an active lease, or a heartbeat
// against an expired one (409).
func LockConflict(message string) *Error {
	return &Error{HTTPStatus: http.StatusConflict, Code: CodeLockConflict, Message: message}
}

// Internal wraps an unexpected failure. The transport logs the cause and
// surfaces only the generic message.
func Internal(message string) *Error {
	return &Error{HTTPStatus: http.StatusInternalServerError, Code: CodeInternalError, Message: message}
}
