// Package errors provides the error handling system for the Humble Clay
// prompt gateway. It includes structured error types, JSON response
// formatting, request ID tracking, and integrated logging with Uber's zap
// logger.
//
// The package is used throughout the codebase to provide consistent error
// handling and reporting:
//
//	// Simple error response
//	errors.Error(w, "Something went wrong", http.StatusBadRequest)
//
//	// Type-specific error with context
//	errors.ErrorWithType(w, "Invalid prompt", errors.ValidationError, http.StatusBadRequest)
//
// For more complex scenarios, use the constructors in types.go:
//
//	err := errors.NewValidationError(requestID, "Invalid prompt", map[string]interface{}{
//	    "field": "prompts",
//	    "error": "must contain between 1 and 1000 items",
//	})
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the
// package. It is initialized to a production configuration but can be
// overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance. If nil is
// provided, the function does nothing to prevent accidentally disabling
// logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes the errors that can occur while processing
// prompts. Each type corresponds to a specific failure scenario and
// carries an appropriate HTTP status code.
type ErrorType string

const (
	// ValidationError represents request validation failures that are
	// detectable before calling the provider (malformed extraction paths,
	// extraction without a schema, invalid request bodies).
	ValidationError ErrorType = "validation_error"

	// ProviderError represents failures raised by the LLM provider:
	// network errors, auth errors, malformed payloads, API error statuses.
	ProviderError ErrorType = "provider_error"

	// SchemaError represents failures while building a response shape
	// from a caller-supplied JSON schema.
	SchemaError ErrorType = "schema_error"

	// AuthenticationError represents API key authentication failures
	AuthenticationError ErrorType = "authentication_error"

	// RateLimitError represents rate limiting errors
	RateLimitError ErrorType = "rate_limit_error"

	// ConfigError represents configuration-related errors
	ConfigError ErrorType = "config_error"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"
)

// ClayError is the custom error type used across the gateway. It
// implements the error interface and is designed to be serialized to
// JSON for API responses while keeping internal error context for
// logging and debugging.
type ClayError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *ClayError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *ClayError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *ClayError) Is(target error) bool {
	t, ok := target.(*ClayError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError formats and writes a ClayError to an http.ResponseWriter.
// It sets the appropriate content type and status code, then writes the
// error as a JSON response.
func WriteError(w http.ResponseWriter, err *ClayError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encodeErr := json.NewEncoder(w).Encode(err); encodeErr != nil {
		DefaultLogger.Error("Failed to encode error response", zap.Error(encodeErr))
	}
}

// Error is a drop-in replacement for http.Error that creates and writes
// a ClayError with the InternalError type. It automatically includes
// the request ID from the response headers if available.
func Error(w http.ResponseWriter, message string, code int) {
	requestID := w.Header().Get("X-Request-ID")
	err := &ClayError{
		Type:      InternalError,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}
	WriteError(w, err)
}

// ErrorWithType is like Error but allows specifying the error type.
// This is useful when you want to indicate specific error categories
// to the client while maintaining the simple interface of http.Error.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	requestID := w.Header().Get("X-Request-ID")
	err := &ClayError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}
	WriteError(w, err)
}
