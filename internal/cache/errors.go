package cache

import (
	"errors"
	"fmt"

	"invoicesync/pkg/models"
)

var (
	// ErrRecordNotFound is returned when an operation names an ID the cache does not hold.
	ErrRecordNotFound = errors.New("invoice not found in cache")

	// ErrSaveFailed matches every *SaveFailedError.
	ErrSaveFailed = errors.New("saving field failed")

	// ErrCreateFailed matches every *CreateFailedError.
	ErrCreateFailed = errors.New("creating invoice failed")

	// ErrDeleteFailed matches every *DeleteFailedError.
	ErrDeleteFailed = errors.New("deleting invoice failed")
)

// SaveFailedError reports a field write the store rejected. OldValue is the value
// the cache holds again after the rollback, so callers can reset bound controls.
type SaveFailedError struct {
	ID       string
	Field    models.Field
	OldValue any

	// Reverted is false when a reload replaced the collection while the write was in
	// flight; the reloaded value is kept in that case.
	Reverted bool

	Err error
}

// Error implements the error interface.
func (e *SaveFailedError) Error() string {
	return fmt.Sprintf("cache: save %s.%s failed: %v", e.ID, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *SaveFailedError) Unwrap() error {
	return e.Err
}

// Is matches ErrSaveFailed as well as the wrapped error.
func (e *SaveFailedError) Is(target error) bool {
	return target == ErrSaveFailed || errors.Is(e.Err, target)
}

// CreateFailedError reports a rejected create. The cache is unchanged.
type CreateFailedError struct {
	Err error
}

// Error implements the error interface.
func (e *CreateFailedError) Error() string {
	return fmt.Sprintf("cache: create failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CreateFailedError) Unwrap() error {
	return e.Err
}

// Is matches ErrCreateFailed as well as the wrapped error.
func (e *CreateFailedError) Is(target error) bool {
	return target == ErrCreateFailed || errors.Is(e.Err, target)
}

// DeleteFailedError reports a rejected delete. The cache is unchanged.
type DeleteFailedError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *DeleteFailedError) Error() string {
	return fmt.Sprintf("cache: delete %s failed: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeleteFailedError) Unwrap() error {
	return e.Err
}

// Is matches ErrDeleteFailed as well as the wrapped error.
func (e *DeleteFailedError) Is(target error) bool {
	return target == ErrDeleteFailed || errors.Is(e.Err, target)
}
