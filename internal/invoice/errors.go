package invoice

import (
	"errors"
	"fmt"

	"invoicesync/pkg/models"
)

// Common invoice action errors
var (
	// ErrNoData is returned when the collection could not be fetched. Previously
	// loaded data, if any, stays available.
	ErrNoData = errors.New("could not fetch invoices")

	// ErrPermissionDenied is returned when the session may not perform an action.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotConfirmed is returned when the user declines a deletion.
	ErrNotConfirmed = errors.New("deletion not confirmed")
)

// PermissionError describes a refused action.
type PermissionError struct {
	// Op is the refused operation (e.g., "UpdateField", "Delete").
	Op string

	// Field is set for field edits.
	Field models.Field

	// User is the email of the signed-in user.
	User string
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invoice: %s: %s may not edit %s: %v", e.Op, e.User, e.Field, ErrPermissionDenied)
	}
	return fmt.Sprintf("invoice: %s: %s: %v", e.Op, e.User, ErrPermissionDenied)
}

// Is matches ErrPermissionDenied.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}
