// Package errs defines the error taxonomy shared by the storage adapters.
// Infrastructure faults are either retryable (transient: connection refused,
// timeout) or non-retryable (deterministic: bad data, protocol errors).
package errs

import "errors"

// RetryableError marks a transient infrastructure fault. Callers may retry
// the operation with backoff.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	if e.Err == nil {
		return e.Op + ": retryable failure"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error { return e.Err }

// NonRetryableError marks a deterministic fault. Retrying will not help.
type NonRetryableError struct {
	Op  string
	Err error
}

func (e *NonRetryableError) Error() string {
	if e.Err == nil {
		return e.Op + ": non-retryable failure"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a RetryableError tagged with the failing operation.
func Retryable(op string, err error) error {
	return &RetryableError{Op: op, Err: err}
}

// NonRetryable wraps err as a NonRetryableError tagged with the failing
// operation.
func NonRetryable(op string, err error) error {
	return &NonRetryableError{Op: op, Err: err}
}

// IsRetryable reports whether err is classified as retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsNonRetryable reports whether err is classified as non-retryable.
func IsNonRetryable(err error) bool {
	var ne *NonRetryableError
	return errors.As(err, &ne)
}

// IsStoreFault reports whether err belongs to either class. Gates use this
// to distinguish infrastructure failures from ordinary business results.
func IsStoreFault(err error) bool {
	return IsRetryable(err) || IsNonRetryable(err)
}
