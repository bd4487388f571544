package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors shared by stores, queues and fetchers
var (
	ErrNotFound     = errors.New("not found")
	ErrPageNotFound = errors.New("snpedia page not found")
	ErrQueueEmpty   = errors.New("fetch queue is empty")
)

// ServiceError represents a standardized error response
type ServiceError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrDatabaseError  = "DATABASE_ERROR"
	ErrExternalAPI    = "EXTERNAL_API_ERROR"
	ErrNotFoundCode   = "NOT_FOUND"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrValidation     = "VALIDATION_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewServiceError creates a new ServiceError with timestamp
func NewServiceError(code, message, details, requestID string) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// CodeFor maps err onto an error code. Errors that match no known class get fallback.
func CodeFor(err error, fallback string) string {
	var validation *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return ErrValidation
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPageNotFound):
		return ErrNotFoundCode
	case errors.Is(err, context.DeadlineExceeded):
		return ErrExternalAPI
	}
	return fallback
}

// HTTPStatus returns the response status used for an error code
func HTTPStatus(code string) int {
	switch code {
	case ErrInvalidInput, ErrValidation:
		return http.StatusBadRequest
	case ErrNotFoundCode:
		return http.StatusNotFound
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrExternalAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
