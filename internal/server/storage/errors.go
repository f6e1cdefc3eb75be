package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/aws/smithy-go"
)

// Kind classifies a backend failure for retry decisions.
type Kind string

const (
	// KindTimeout covers transport timeouts and cancelled deadlines; the
	// operation may be retried as-is.
	KindTimeout Kind = "timeout"
	// KindRejected covers everything the backend actively refused; retrying
	// the same request will not help.
	KindRejected Kind = "rejected"
)

// BackendError wraps a failed storage call with its operation name and
// classification.
type BackendError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("storage %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Classify wraps err in a BackendError for the named operation, deciding
// timeout vs rejected from the error chain rather than its message.
func Classify(op string, err error) *BackendError {
	kind := KindRejected

	var (
		netErr   net.Error
		canceled *smithy.CanceledError
		apiErr   smithy.APIError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &canceled):
		kind = KindTimeout
	case errors.As(err, &apiErr) && apiErr.ErrorCode() == "RequestTimeout":
		kind = KindTimeout
	case os.IsTimeout(err):
		kind = KindTimeout
	}

	return &BackendError{Op: op, Kind: kind, Err: err}
}

// IsTimeout reports whether err is a timeout-classified backend failure.
func IsTimeout(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == KindTimeout
}

// IsRejected reports whether err is a rejection-classified backend failure.
func IsRejected(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == KindRejected
}
