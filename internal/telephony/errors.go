package telephony

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("telephony api circuit breaker is open")

	// ErrEmptyToken is returned when a 2xx response carries no session token.
	ErrEmptyToken = errors.New("telephony api returned no session token")
)

// APIError is a non-2xx response from the telephony API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telephony api error: %d %s", e.StatusCode, e.Body)
}

// IsServerError reports a 5xx response
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// ConnectionError wraps transport failures, including timeouts.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("telephony connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}
