// Package common provides shared utilities and types used across the engine.
package common

import (
	"errors"
	"fmt"
	"time"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Category errors.
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInactive = errors.New("category is inactive")
	ErrCategoryNesting  = errors.New("categories may only nest one level deep")

	// Import errors.
	ErrNoRows          = errors.New("no rows to import")
	ErrSessionState    = errors.New("invalid import session state")
	ErrRowOutOfRange   = errors.New("row index out of range")
	ErrMissingCategory = errors.New("no category assigned")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError describes a single malformed row or field. Rows failing
// validation are rejected individually, never batch-fatal.
type ValidationError struct {
	Field  string
	Reason string
	Row    int
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: invalid %s: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// NewValidationError creates a validation error for a row's field.
func NewValidationError(row int, field, reason string) error {
	return &ValidationError{Row: row, Field: field, Reason: reason}
}

// RateLookupError indicates the injected currency-rate capability failed.
// The caller decides between a fallback rate and aborting that conversion;
// the engine never retries internally.
type RateLookupError struct {
	Err  error
	From string
	To   string
	AsOf time.Time
}

func (e *RateLookupError) Error() string {
	return fmt.Sprintf("rate lookup %s->%s as of %s failed: %v",
		e.From, e.To, e.AsOf.Format("2006-01-02"), e.Err)
}

func (e *RateLookupError) Unwrap() error {
	return e.Err
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
