// ABOUTME: Sentinel errors shared by every repository and handler
// ABOUTME: Callers wrap these with fmt.Errorf and match them with errors.Is
package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrValidation     = errors.New("validation failed")
	ErrUpstream       = errors.New("upstream failure")
	ErrDataCorruption = errors.New("data corruption")

	// ErrInvalidTransition is a validation error for a rejected status change.
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)
)

// Invalid builds a validation error with a human-readable reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
