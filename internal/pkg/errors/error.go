package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized access")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict: resource already exists")
	ErrInternal          = errors.New("internal server error")
	ErrRateLimited       = errors.New("too many requests")
	ErrBadRequest        = errors.New("bad request")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrInvalidAction     = errors.New("invalid duplicate action")
	ErrReferenceNotFound = errors.New("referenced resource not found")
	ErrExhaustedRetries  = errors.New("exhausted retries")
)

// FieldError reports a validation failure on a specific input field.
// It unwraps to ErrInvalidInput so callers can match the whole class.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidInput
}

// NewFieldError builds a FieldError for the given field.
func NewFieldError(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
