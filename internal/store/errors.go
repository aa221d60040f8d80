package store

import (
	"errors"
	"fmt"
)

// Common store errors
var (
	// ErrRequestFailed is returned when the request never produced a response
	// (DNS, connection refused, timeout).
	ErrRequestFailed = errors.New("store request failed")

	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("store returned an error status")

	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("store response could not be decoded")

	// ErrNotFound is returned by ReadOne when the record does not exist.
	ErrNotFound = errors.New("record not found")
)

// TransportError describes a failed exchange with the remote store.
type TransportError struct {
	// Op is the operation that failed (e.g., "ReadAll", "PatchField").
	Op string

	// Status is the HTTP status code, or 0 when no response was received.
	Status int

	// Reason is the server's error message or the HTTP status text.
	Reason string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("store: %s failed (status %d): %s: %v", e.Op, e.Status, e.Reason, e.Err)
	}
	if e.Reason != "" {
		return fmt.Sprintf("store: %s failed: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("store: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *TransportError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsTransportError reports whether err came from a failed store exchange.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode extracts the HTTP status from a TransportError, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}
