// Package retry classifies errors for retry loops.
package retry

import "errors"

// PermanentError is an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps an error to indicate it should not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// retryable is implemented by errors that know whether they are transient.
type retryable interface {
	Retryable() bool
}

// IsPermanent reports whether err was wrapped with Permanent, or carries a
// Retryable method in its chain that returns false.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return true
	}
	var r retryable
	if errors.As(err, &r) {
		return !r.Retryable()
	}
	return false
}
