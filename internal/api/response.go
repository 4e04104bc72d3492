// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/boston311/internal/explorer"
	"github.com/tomtom215/boston311/internal/logging"
	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/validation"
)

// APIResponse is the standardized response wrapper for all API endpoints.
type APIResponse struct {
	// Success indicates whether the request was successful
	Success bool `json:"success"`

	// Data contains the response payload (null on error)
	Data any `json:"data,omitempty"`

	// Error contains error details (null on success)
	Error *APIError `json:"error,omitempty"`

	// Meta contains optional metadata about the response
	Meta *APIMeta `json:"meta,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains additional error details (optional)
	Details any `json:"details,omitempty"`

	// Retryable marks transient store failures
	Retryable bool `json:"retryable,omitempty"`

	// RequestID is the request ID for tracing
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta contains optional response metadata.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`

	// Count is the number of items in a list response
	Count *int `json:"count,omitempty"`
}

// Error codes for API responses
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidFilter      = "INVALID_FILTER"
	ErrCodeUnknownPeriod      = "UNKNOWN_PERIOD"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodeStoreTimeout       = "STORE_TIMEOUT"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// retryAfterSeconds is advertised on transient store failures.
const retryAfterSeconds = "1"

// ResponseWriter provides methods for writing standardized API responses.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a new response writer.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{
		w:         w,
		r:         r,
		startTime: time.Now(),
	}
}

func (rw *ResponseWriter) meta() *APIMeta {
	return &APIMeta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now(),
		DurationMs: time.Since(rw.startTime).Milliseconds(),
	}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data any) {
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: rw.meta()})
}

// SuccessWithCount writes a 200 list response and reports its length.
func (rw *ResponseWriter) SuccessWithCount(data any, count int) {
	meta := rw.meta()
	meta.Count = &count
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: meta})
}

// Created writes a 201 Created response.
func (rw *ResponseWriter) Created(data any) {
	rw.writeJSON(http.StatusCreated, APIResponse{Success: true, Data: data, Meta: rw.meta()})
}

// NoContent writes a 204 No Content response.
func (rw *ResponseWriter) NoContent() {
	rw.w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with the given status code.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.ErrorWithDetails(statusCode, code, message, nil)
}

// ErrorWithDetails writes an error response with additional details.
func (rw *ResponseWriter) ErrorWithDetails(statusCode int, code, message string, details any) {
	meta := rw.meta()
	rw.writeJSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			Retryable: statusCode == http.StatusBadGateway || statusCode == http.StatusGatewayTimeout,
			RequestID: meta.RequestID,
		},
		Meta: meta,
	})
}

// ValidationError writes a 400 error with per-field details.
func (rw *ResponseWriter) ValidationError(verr *validation.RequestValidationError) {
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields())
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

// FromError maps the error taxonomy onto HTTP statuses. Caller errors echo
// their message; store failures are logged and answered generically.
func (rw *ResponseWriter) FromError(err error) {
	logger := logging.Ctx(rw.r.Context())

	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		rw.ValidationError(verr)
	case errors.Is(err, explorer.ErrSessionNotFound), errors.Is(err, explorer.ErrSessionExpired):
		rw.Error(http.StatusNotFound, ErrCodeSessionNotFound, err.Error())
	case errors.Is(err, models.ErrUnknownPeriod):
		rw.Error(http.StatusBadRequest, ErrCodeUnknownPeriod, err.Error())
	case errors.Is(err, models.ErrInvalidFilter):
		rw.Error(http.StatusBadRequest, ErrCodeInvalidFilter, err.Error())
	case errors.Is(err, models.ErrStoreTimeout):
		logger.Warn().Err(err).Msg("Store timed out")
		rw.w.Header().Set("Retry-After", retryAfterSeconds)
		rw.Error(http.StatusGatewayTimeout, ErrCodeStoreTimeout, "The data store did not respond in time")
	case errors.Is(err, models.ErrStore):
		logger.Error().Err(err).Msg("Store failure")
		rw.w.Header().Set("Retry-After", retryAfterSeconds)
		rw.Error(http.StatusBadGateway, ErrCodeStoreUnavailable, "The data store is unavailable")
	case errors.Is(err, context.Canceled):
		logger.Debug().Err(err).Msg("Request canceled by client")
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Request canceled")
	default:
		logger.Error().Err(err).Msg("Unhandled error")
		rw.InternalError("An internal error occurred")
	}
}

// writeJSON writes JSON response with proper headers.
func (rw *ResponseWriter) writeJSON(statusCode int, data any) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)

	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError is a convenience function for writing error responses.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	NewResponseWriter(w, r).Error(statusCode, code, message)
}
