package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyExists is returned by JobStore.Insert when the job_hash is taken.
	ErrAlreadyExists = errors.New("job already exists")

	// ErrHashInvariant signals a uniqueness violation outside the idempotent
	// insert path. Runs abort on it.
	ErrHashInvariant = errors.New("job hash invariant violated")

	// ErrNotFound is returned when a lookup by hash matches no job.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned for status moves the state machine forbids.
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports malformed configuration, vocabulary or profile input.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// FilterError reports a per-job failure inside one filter tier.
type FilterError struct {
	Stage string
	Err   error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %s: %v", e.Stage, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed store operation for one job.
type PersistenceError struct {
	Op      string
	JobHash string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.JobHash == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence %s (job %s): %v", e.Op, e.JobHash, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
