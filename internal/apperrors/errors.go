// Package apperrors holds the failure kinds shared by the refresh pipeline.
package apperrors

import (
	"errors"
	"fmt"
)

// Failure kinds. Every kind is retryable under the refresh attempt budget.
var (
	// ErrFetch covers transport errors and non-2xx feed responses
	ErrFetch = errors.New("fetch failure")
	// ErrParse covers undecodable encodings, malformed documents and bad dates or values
	ErrParse = errors.New("parse failure")
	// ErrPersist covers rate store write errors
	ErrPersist = errors.New("persist failure")
	// ErrCache covers cache backend errors
	ErrCache = errors.New("cache failure")
)

// JobError ties a failure kind to the operation that produced it
type JobError struct {
	Kind error
	Op   string
	Err  error
}

// NewJobError wraps err with a failure kind
func NewJobError(kind error, op string, err error) *JobError {
	return &JobError{Kind: kind, Op: op, Err: err}
}

func (e *JobError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap exposes the underlying cause
func (e *JobError) Unwrap() error {
	return e.Err
}

// Is matches the failure kind, so errors.Is(err, ErrFetch) works through wrapping
func (e *JobError) Is(target error) bool {
	return e.Kind == target
}

// KindOf returns the failure kind of err, or nil when err is not a JobError
func KindOf(err error) error {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return nil
}

// KindName is a short label for a failure kind, used in logs and metrics
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrPersist):
		return "persist"
	case errors.Is(err, ErrCache):
		return "cache"
	default:
		return "unknown"
	}
}
