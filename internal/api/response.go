// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

// Package api provides the HTTP surface of the annotation service.
//
// Success responses are flat resource shapes consumed directly by the
// page script. Error responses use a structured envelope carrying a
// machine-readable code and the request ID for tracing.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/mkroh/siteplan/internal/logging"
	"github.com/mkroh/siteplan/internal/middleware"
)

// APIError is the error envelope body.
type APIError struct {
	Success bool          `json:"success"`
	Error   *ErrorDetails `json:"error"`
}

// ErrorDetails carries machine-readable error information.
type ErrorDetails struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// RequestID is the request ID for tracing
	RequestID string `json:"request_id,omitempty"`
}

// Error codes for API responses
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeTooManyRequests     = "TOO_MANY_REQUESTS"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeExternalServiceFail = "EXTERNAL_SERVICE_FAILED"
)

// ResponseWriter provides methods for writing API responses.
type ResponseWriter struct {
	w http.ResponseWriter
	r *http.Request
}

// NewResponseWriter creates a response writer for the request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r}
}

// Success writes a 200 response with the flat payload.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.writeJSON(http.StatusOK, data)
}

// Error writes an error envelope with the given status code.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.writeJSON(statusCode, APIError{
		Success: false,
		Error: &ErrorDetails{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(rw.r.Context()),
		},
	})
}

// BadRequest writes a 400 Bad Request error.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// ValidationFailed writes a 400 error with the validation code.
func (rw *ResponseWriter) ValidationFailed(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, message)
}

// Unauthorized writes a 401 Unauthorized error.
func (rw *ResponseWriter) Unauthorized(message string) {
	rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// NotFound writes a 404 Not Found error.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// TooManyRequests writes a 429 Too Many Requests error.
func (rw *ResponseWriter) TooManyRequests(message string) {
	rw.Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, message)
}

// InternalError writes a 500 Internal Server Error.
func (rw *ResponseWriter) InternalError(message string) {
	rw.Error(http.StatusInternalServerError, ErrCodeInternalError, message)
}

// UpstreamFailed writes a 500 error with the external-service code.
func (rw *ResponseWriter) UpstreamFailed(message string) {
	rw.Error(http.StatusInternalServerError, ErrCodeExternalServiceFail, message)
}

func (rw *ResponseWriter) writeJSON(statusCode int, v interface{}) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(statusCode)

	if err := json.NewEncoder(rw.w).Encode(v); err != nil {
		logging.Ctx(rw.r.Context()).Error().
			Err(err).
			Msg("Failed to encode API response")
	}
}
