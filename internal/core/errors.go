package core

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound means the entity is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated means the session is missing, invalid, or the credentials do not match.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrConflict means a unique identity (email, username) is already taken.
	ErrConflict = errors.New("conflict")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any mutation when input is malformed.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError without field details.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// fieldErrors collects field problems during validation.
type fieldErrors []FieldError

func (fe *fieldErrors) add(field, msg string) {
	*fe = append(*fe, FieldError{Field: field, Message: msg})
}

func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return &ValidationError{Message: "Validation failed", Fields: fe}
}
