package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestServiceError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Basic error",
			code:      ErrInvalidInput,
			message:   "Invalid variant identifier",
			details:   "Identifiers must look like rs1234 or i5000001",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      ErrDatabaseError,
			message:   "Database connection failed",
			details:   "Unable to connect to PostgreSQL",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewServiceError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "variant_id",
			message: "Invalid format",
			value:   "not-a-variant",
		},
		{
			name:    "Integer validation error",
			field:   "limit",
			message: "Must be positive",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Nil", nil, ""},
		{"Wrapped not found", fmt.Errorf("variant rs1: %w", ErrNotFound), ErrNotFoundCode},
		{"Missing page", ErrPageNotFound, ErrNotFoundCode},
		{"Validation", fmt.Errorf("enqueue: %w", NewValidationError("variant_ids", "bad", "x")), ErrValidation},
		{"Deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), ErrExternalAPI},
		{"Unclassified", errors.New("connection reset"), ErrDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeFor(tt.err, ErrDatabaseError); got != tt.expected {
				t.Errorf("CodeFor() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[string]int{
		ErrInvalidInput:   http.StatusBadRequest,
		ErrValidation:     http.StatusBadRequest,
		ErrNotFoundCode:   http.StatusNotFound,
		ErrRateLimit:      http.StatusTooManyRequests,
		ErrExternalAPI:    http.StatusBadGateway,
		ErrDatabaseError:  http.StatusInternalServerError,
		ErrInternalServer: http.StatusInternalServerError,
	}

	for code, expected := range tests {
		if got := HTTPStatus(code); got != expected {
			t.Errorf("HTTPStatus(%s) = %d, want %d", code, got, expected)
		}
	}
}
