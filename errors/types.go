package errors

import (
	"net/http"
)

// NewError creates a new ClayError with the given parameters. It is a
// general-purpose constructor that allows full control over the error's
// fields. For most cases, use one of the specialized constructors below.
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *ClayError {
	return &ClayError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewAuthError creates an authentication error with appropriate
// defaults. Use this for missing or invalid API keys.
func NewAuthError(requestID, message string, err error) *ClayError {
	return &ClayError{
		Type:      AuthenticationError,
		Message:   message,
		Code:      http.StatusUnauthorized,
		RequestID: requestID,
		err:       err,
		Details: map[string]interface{}{
			"suggestion": "Please check the X-API-Key header",
		},
	}
}

// NewValidationError creates a validation error with appropriate
// defaults. Use this for request validation failures, such as:
//   - Invalid request bodies
//   - Missing required fields
//   - Prompt list size constraint violations
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *ClayError {
	return &ClayError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewRateLimitError creates a rate limit error with appropriate defaults.
func NewRateLimitError(requestID string, retryAfter int) *ClayError {
	return &ClayError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewProviderError creates a provider error with appropriate defaults.
// Use this when the LLM provider call fails for any reason: connection
// errors, timeouts, malformed provider responses, API error statuses.
func NewProviderError(requestID string, message string, err error) *ClayError {
	return &ClayError{
		Type:      ProviderError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewSchemaError creates a schema error with appropriate defaults.
// Use this when a caller-supplied JSON schema cannot be turned into a
// response shape.
func NewSchemaError(requestID string, message string, err error) *ClayError {
	return &ClayError{
		Type:      SchemaError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		err:       err,
	}
}

// NewInternalError creates an internal server error with appropriate
// defaults. Use this for unexpected errors not covered by other types.
func NewInternalError(requestID string, err error) *ClayError {
	return &ClayError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
