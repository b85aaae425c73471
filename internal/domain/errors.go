package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveSession indicates an operation that needs a session ran without one
	ErrNoActiveSession = errors.New("no active session")
	// ErrNoFilesSelected indicates a batch upload with an empty file list
	ErrNoFilesSelected = errors.New("no files selected")
	// ErrUnknownVisionModel indicates an unrecognized vision model selector
	ErrUnknownVisionModel = errors.New("unknown vision model")
)

// FailureKind classifies a backend gateway failure.
type FailureKind string

const (
	// FailureUnreachable means the connection could not be established.
	FailureUnreachable FailureKind = "unreachable"
	// FailureTimeout means the operation's time budget was exceeded.
	FailureTimeout FailureKind = "timeout"
	// FailureServer means a non-200 response with a body.
	FailureServer FailureKind = "server_error"
	// FailureMalformed means the response body did not match the expected shape.
	FailureMalformed FailureKind = "malformed"
)

// BackendError is a classified failure from one backend gateway operation.
// Only the gateway constructs these; callers branch on Kind, never on the
// underlying transport error.
type BackendError struct {
	Op     string
	Kind   FailureKind
	Status int
	Body   string
	Err    error
}

func (e *BackendError) Error() string {
	switch e.Kind {
	case FailureServer:
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Body)
	case FailureTimeout:
		return fmt.Sprintf("%s: timed out", e.Op)
	case FailureUnreachable:
		return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
	}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err, or "" if err is not a
// backend failure.
func KindOf(err error) FailureKind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsTimeout reports whether err is a classified timeout. Timeouts on
// processing are recoverable: the backend may still complete server-side.
func IsTimeout(err error) bool {
	return KindOf(err) == FailureTimeout
}
