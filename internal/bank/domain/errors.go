package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks a 2xx reply whose body could not be decoded.
// It is distinct from a business rejection and is never retried blindly.
var ErrMalformedResponse = errors.New("bank_malformed_response")

// TransportError wraps a network or timeout failure. Callers may retry on
// their next cycle.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bank transport failure on %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx reply carrying the bank's own code and message. Not
// retryable without operator intervention.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bank rejected request (http %d, code %s): %s", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("bank rejected request (http %d): %s", e.HTTPStatus, e.Message)
}

// IsTransport reports whether err is a retryable transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsAPIError reports whether err is a business rejection from the bank.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}
