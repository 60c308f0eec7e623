package storeapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors mapped from backend HTTP responses.
var (
	// ErrNotFound is returned for 404 responses, e.g. an expired or already
	// converted cart.
	ErrNotFound = errors.New("storeapi: resource not found")

	// ErrUnauthorized is returned for 401/403 responses; callers treat it as
	// the AuthInvalid condition and force a logout.
	ErrUnauthorized = errors.New("storeapi: token rejected")

	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("storeapi: backend unavailable")
)

// APIError is a non-2xx backend response carrying a structured error body.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("storeapi: backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("storeapi: backend returned %d", e.StatusCode)
}

// BackendMessage extracts the backend-supplied error message from an error
// chain, or returns the empty string.
func BackendMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// errorBody covers the error field variants the backend emits.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// parseErrorBody pulls the first populated error field from a response body.
func parseErrorBody(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	switch {
	case eb.Error != "":
		return eb.Error
	case eb.Message != "":
		return eb.Message
	default:
		return eb.Detail
	}
}
