package pipeline

import (
	"fmt"

	"github.com/docuvec/docuvec/internal/job"
)

// ValidationError reports malformed caller input. It is surfaced
// immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AdapterError reports a transient external-service failure; the job as a
// whole is retried.
type AdapterError struct {
	Stage job.Stage
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter failure in stage %s: %v", e.Stage, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// InsufficientContentError reports that OCR yielded unusable text. OCR is
// non-deterministic across attempts, so the job is retried, but this is a
// normal failure mode rather than a bug.
type InsufficientContentError struct {
	Length  int
	Minimum int
}

func (e *InsufficientContentError) Error() string {
	return fmt.Sprintf("extracted text too short: %d characters, need at least %d", e.Length, e.Minimum)
}

// PersistenceError reports a store write failure; retried.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ExhaustedRetriesError is terminal: every attempt failed. The last
// underlying error's description is what status pollers see.
type ExhaustedRetriesError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.LastErr }
