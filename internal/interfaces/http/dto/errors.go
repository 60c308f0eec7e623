package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeAuthInvalid is used when the store backend rejected the session's token
	ErrCodeAuthInvalid = "ERR_AUTH_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
)

// Cart and checkout error codes
const (
	// ErrCodeStockExceeded is used when a cart mutation would exceed known stock
	ErrCodeStockExceeded = "ERR_STOCK_EXCEEDED"
	// ErrCodeCartSessionExpired is used when the pending cart id is missing or stale
	ErrCodeCartSessionExpired = "ERR_CART_SESSION_EXPIRED"
	// ErrCodeCartEmpty is used when checkout is attempted on an empty cart
	ErrCodeCartEmpty = "ERR_CART_EMPTY"
	// ErrCodeGatewayError is used when a payment gateway dispatch fails
	ErrCodeGatewayError = "ERR_GATEWAY"
	// ErrCodeVerificationFailed is used when post-payment verification is rejected
	ErrCodeVerificationFailed = "ERR_VERIFICATION_FAILED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeAuthInvalid:  http.StatusUnauthorized,

	ErrCodeNotFound: http.StatusNotFound,

	// Cart business rules -> 422 Unprocessable Entity
	ErrCodeStockExceeded:      http.StatusUnprocessableEntity,
	ErrCodeCartSessionExpired: http.StatusUnprocessableEntity,
	ErrCodeCartEmpty:          http.StatusUnprocessableEntity,
	ErrCodeVerificationFailed: http.StatusUnprocessableEntity,

	// The gateway dispatch failed upstream
	ErrCodeGatewayError: http.StatusBadGateway,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodeMapping maps domain error codes to the wire format
var domainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"AUTH_INVALID":         ErrCodeAuthInvalid,
	"STOCK_EXCEEDED":       ErrCodeStockExceeded,
	"CART_SESSION_EXPIRED": ErrCodeCartSessionExpired,
	"CART_EMPTY":           ErrCodeCartEmpty,
	"GATEWAY_ERROR":        ErrCodeGatewayError,
	"VERIFICATION_FAILED":  ErrCodeVerificationFailed,
}

// NormalizeErrorCode converts a domain error code to the wire format
// If the code is already in the wire format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if wireCode, ok := domainErrorCodeMapping[code]; ok {
		return wireCode
	}
	return code
}
