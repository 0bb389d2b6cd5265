// Package apperr defines the error taxonomy shared by the core packages and
// the reference host: validation failures, state conflicts and missing ids.
// Expected absences (no holiday, unknown tier) are not errors.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist in the host store.
	ErrNotFound = errors.New("venueops: not found")
	// ErrStateConflict is the sentinel wrapped by every StateConflictError.
	ErrStateConflict = errors.New("venueops: state conflict")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Add records a field level validation error.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// OrNil returns v as an error only when it holds field errors.
func (v *ValidationError) OrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// Invalid builds a single-field ValidationError.
func Invalid(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// StateConflictError reports an operation rejected because of the current
// state of an entity, e.g. committing an already acknowledged signal.
type StateConflictError struct {
	Reason string
}

func (e *StateConflictError) Error() string {
	if e == nil || e.Reason == "" {
		return ErrStateConflict.Error()
	}
	return fmt.Sprintf("%v: %s", ErrStateConflict, e.Reason)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// Conflict builds a StateConflictError from a formatted reason.
func Conflict(format string, args ...any) error {
	return &StateConflictError{Reason: fmt.Sprintf(format, args...)}
}

// Labels returned by Kind.
const (
	KindValidation    = "validation"
	KindStateConflict = "state_conflict"
	KindNotFound      = "not_found"
	KindUnexpected    = "unexpected"
)

// Kind maps errors to a stable label used in logs and HTTP responses.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return KindValidation
	case errors.Is(err, ErrStateConflict):
		return KindStateConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindUnexpected
}
