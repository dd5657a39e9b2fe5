package types

import "fmt"

// ErrorCode represents a unified error code across the service.
type ErrorCode string

const (
	// ErrInvariantViolation marks a logic defect upstream: the operation was
	// attempted against state it must never see (double annotation, annotation
	// on a human utterance, rating backfill on an empty transcript). Fatal,
	// never retried.
	ErrInvariantViolation ErrorCode = "INVARIANT_VIOLATION"

	// ErrTimeout marks a participant that failed to act within the configured
	// response timeout. Propagated to the driver; retry policy belongs to the
	// transport layer.
	ErrTimeout ErrorCode = "TIMEOUT"

	// ErrConfiguration marks a setup-time defect (empty scenario catalog,
	// malformed persona set). Fatal before any conversation state exists.
	ErrConfiguration ErrorCode = "CONFIGURATION"

	// ErrInvalidMessage marks a message that failed shape validation at a
	// proxy boundary.
	ErrInvalidMessage ErrorCode = "INVALID_MESSAGE"

	// ErrVariantExhausted is returned when every model variant has collected
	// its needed number of conversations.
	ErrVariantExhausted ErrorCode = "VARIANT_EXHAUSTED"

	// ErrAlreadyWritten guards the at-most-once persistence contract.
	ErrAlreadyWritten ErrorCode = "ALREADY_WRITTEN"

	// ErrClosed marks an operation against a closed component.
	ErrClosed ErrorCode = "CLOSED"
)

// Error represents a structured error with code, message, and optional cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
// Returns "" for non-structured errors.
func GetErrorCode(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// IsErrorCode reports whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
