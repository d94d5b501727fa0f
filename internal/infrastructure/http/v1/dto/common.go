// Package dto provides the request and response bodies of the sync API.
package dto

import "sitesync/internal/core/apperror"

// ErrorResponse is the body of every failed request. Sites map Code back to
// an error kind, so TRANSPORT_ERROR answers are retried and the rest are not.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// FromAppError renders err as an ErrorResponse.
func FromAppError(err *apperror.AppError) ErrorResponse {
	return ErrorResponse{Code: err.Code, Message: err.Message, Details: err.Details}
}

// Internal hides an unexpected failure behind the request id.
func Internal(requestID string) ErrorResponse {
	return ErrorResponse{
		Code:    apperror.CodeInternal,
		Message: "Internal server error",
		Details: map[string]any{"request_id": requestID},
	}
}
