package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrAdvancementBlocked = New("ADVANCEMENT_BLOCKED", http.StatusConflict, "stage requirements are not satisfied")
	ErrInvalidStage       = New("INVALID_STAGE", http.StatusBadRequest, "stage is not part of the workflow")
)

// AdvancementBlocked builds an error carrying the unsatisfied stage requirements.
func AdvancementBlocked(blocking []string) *Error {
	return &Error{
		Code:    ErrAdvancementBlocked.Code,
		Status:  ErrAdvancementBlocked.Status,
		Message: ErrAdvancementBlocked.Message,
		Details: map[string]interface{}{"blocking": blocking},
	}
}

// PrerequisitesNotMet builds an error carrying the unmet prerequisite form codes.
func PrerequisitesNotMet(missing []string) *Error {
	return &Error{
		Code:    "PREREQUISITES_NOT_MET",
		Status:  http.StatusUnprocessableEntity,
		Message: fmt.Sprintf("prerequisite forms not approved: %s", strings.Join(missing, ", ")),
		Details: map[string]interface{}{"missing": missing},
	}
}

// SubmissionLimitExceeded builds an error carrying the configured submission limit.
func SubmissionLimitExceeded(limit int) *Error {
	return &Error{
		Code:    "SUBMISSION_LIMIT_EXCEEDED",
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("submission limit of %d reached for this form", limit),
		Details: map[string]interface{}{"limit": limit},
	}
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
