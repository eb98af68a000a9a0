package platform

import (
	"errors"
	"fmt"
)

// ErrorCode classifies adapter failures.
type ErrorCode string

const (
	// ErrCodeConnection indicates network or connection-related failures
	ErrCodeConnection ErrorCode = "CONNECTION_ERROR"

	// ErrCodeAuthentication indicates the bot credentials were rejected
	ErrCodeAuthentication ErrorCode = "AUTH_ERROR"

	// ErrCodeRateLimit indicates the platform throttled the request
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT_ERROR"

	// ErrCodeInvalidInput indicates a malformed payload or id
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeNotFound indicates a requested entity does not exist
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeUnavailable indicates the platform is temporarily unavailable
	ErrCodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// ErrCodeUnsupported indicates the adapter does not implement an operation
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"

	// ErrCodeInternal indicates an unexpected adapter error
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a classified adapter error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
	// Context holds ids useful for debugging, such as channel_id.
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeUnavailable, ErrCodeConnection:
		return true
	default:
		return false
	}
}

// WithContext adds a debugging key to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewError creates an Error.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func ErrConnection(message string, err error) *Error {
	return NewError(ErrCodeConnection, message, err)
}

func ErrAuthentication(message string, err error) *Error {
	return NewError(ErrCodeAuthentication, message, err)
}

func ErrRateLimit(message string, err error) *Error {
	return NewError(ErrCodeRateLimit, message, err)
}

func ErrInvalidInput(message string, err error) *Error {
	return NewError(ErrCodeInvalidInput, message, err)
}

func ErrNotFound(message string, err error) *Error {
	return NewError(ErrCodeNotFound, message, err)
}

func ErrUnavailable(message string, err error) *Error {
	return NewError(ErrCodeUnavailable, message, err)
}

func ErrUnsupported(message string) *Error {
	return NewError(ErrCodeUnsupported, message, nil)
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Code
	}
	return ErrCodeInternal
}
