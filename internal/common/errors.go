// Package common defines shared constants and sentinel errors used across
// the upload service layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorConflict     = errors.New("already exists")

	// Validation errors.
	ErrorBadRequest = errors.New("bad request")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)

// FieldError reports validation failures on metadata-heavy requests with the
// full path of every missing or malformed field, so the client can repair the
// payload and retry instead of guessing. It matches ErrorBadRequest under
// errors.Is.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *FieldError) Is(target error) bool {
	return target == ErrorBadRequest
}

// NewFieldError builds a FieldError from the given field paths.
func NewFieldError(fields ...string) *FieldError {
	return &FieldError{Fields: fields}
}

// IncompleteUploadError is returned by finalize when the set of received
// chunks (or supplied completion tokens) does not cover the declared total.
// It is recoverable: the client should resume the missing pieces and call
// finalize again.
type IncompleteUploadError struct {
	Received int
	Total    int
}

func (e *IncompleteUploadError) Error() string {
	return fmt.Sprintf("upload incomplete: %d/%d chunks", e.Received, e.Total)
}

// Missing returns how many chunks are still outstanding.
func (e *IncompleteUploadError) Missing() int {
	return e.Total - e.Received
}
