package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation and upstream failures.
var (
	ErrEmptyQuery        = errors.New("empty query")
	ErrEmbedUnavailable  = errors.New("embedding service unavailable")
	ErrIndexUnavailable  = errors.New("vector index unavailable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrUnknownLine       = errors.New("unknown insurance line")
	ErrUnknownState      = errors.New("unknown state")
	ErrInvalidDocument   = errors.New("invalid document")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
