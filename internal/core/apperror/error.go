// Package apperror provides structured error handling for the sync platform.
// Every error that crosses a component boundary should be an AppError so the
// run status and the HTTP surfaces can report a stable code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"
	CodeCanceled = "CANCELED"

	// Sync pipeline errors
	CodeTransport       = "TRANSPORT_ERROR"
	CodeTranslation     = "TRANSLATION_ERROR"
	CodeDependencyCycle = "DEPENDENCY_CYCLE"
	CodeIntegration     = "INTEGRATION_ERROR"
	CodeProcessor       = "PROCESSOR_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict = "CONFLICT"
)

// AppError is the standard error type for the platform.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (table, record id, attempt, ...)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal error (hides details from clients)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewDatabase wraps a storage failure.
func NewDatabase(op string, err error) *AppError {
	return &AppError{
		Code:       CodeDatabase,
		Message:    op,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewTransport wraps a network or peer failure. Retried by the driver.
func NewTransport(op string, err error) *AppError {
	return &AppError{
		Code:       CodeTransport,
		Message:    op,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewTranslation reports a malformed or unresolvable wire payload.
func NewTranslation(table, recordID, message string) *AppError {
	return &AppError{
		Code:       CodeTranslation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"table": table, "record_id": recordID},
	}
}

// NewDependencyCycle reports circular translator dependencies.
func NewDependencyCycle(path []string) *AppError {
	return &AppError{
		Code:       CodeDependencyCycle,
		Message:    "translator dependencies form a cycle",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"path": path},
	}
}

// NewIntegration reports a storage failure while applying a translated row.
func NewIntegration(table, recordID string, err error) *AppError {
	return &AppError{
		Code:       CodeIntegration,
		Message:    "failed to apply record",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"table": table, "record_id": recordID},
		Err:        err,
	}
}

// NewProcessor reports a failing processor check or mutation.
func NewProcessor(processor, recordID string, err error) *AppError {
	return &AppError{
		Code:       CodeProcessor,
		Message:    "processor failed",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"processor": processor, "record_id": recordID},
		Err:        err,
	}
}

// NewCanceled reports work stopped by shutdown between two steps.
func NewCanceled(op string, err error) *AppError {
	return &AppError{
		Code:       CodeCanceled,
		Message:    op,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the AppError code of err, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func hasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsTransport checks if error is CodeTransport
func IsTransport(err error) bool { return hasCode(err, CodeTransport) }

// IsTranslation checks if error is CodeTranslation
func IsTranslation(err error) bool { return hasCode(err, CodeTranslation) }

// IsDependencyCycle checks if error is CodeDependencyCycle
func IsDependencyCycle(err error) bool { return hasCode(err, CodeDependencyCycle) }

// IsIntegration checks if error is CodeIntegration
func IsIntegration(err error) bool { return hasCode(err, CodeIntegration) }

// IsProcessor checks if error is CodeProcessor
func IsProcessor(err error) bool { return hasCode(err, CodeProcessor) }
