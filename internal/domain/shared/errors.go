package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound     = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnauthorized = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrInvalidState = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// ErrAuthInvalid signals that the backend rejected the bearer token.
	// Observers must force a logout.
	ErrAuthInvalid = NewDomainError("AUTH_INVALID", "Session is no longer valid, please sign in again")

	// ErrStockExceeded is raised before any network call when a cart mutation
	// would push a line past the known stock count.
	ErrStockExceeded = NewDomainError("STOCK_EXCEEDED", "Requested quantity exceeds available stock")

	// ErrCartSessionExpired is raised when the pending cart id is missing or a
	// persisted sentinel value, meaning a checkout request is certain to fail.
	ErrCartSessionExpired = NewDomainError("CART_SESSION_EXPIRED", "Cart session expired, please refresh your cart")

	// ErrCartEmpty is raised when checkout is attempted on an empty cart.
	ErrCartEmpty = NewDomainError("CART_EMPTY", "Cart is empty")

	// ErrGatewayError covers payment gateway dispatch failures surfaced by the backend.
	ErrGatewayError = NewDomainError("GATEWAY_ERROR", "Could not initiate payment")

	// ErrVerificationFailed is the rejected terminal state of post-payment verification.
	ErrVerificationFailed = NewDomainError("VERIFICATION_FAILED", "Order verification failed")
)
