package handlers

import (
	"fmt"

	"github.com/pkg/errors"
)

// RecoverableError is an error caused by a condition that may clear up on its own, such as the database being
// unavailable. The message that caused it may be processed successfully later.
type RecoverableError struct {
	message string
}

// Error returns the error message for a RecoverableError.
func (e RecoverableError) Error() string {
	return e.message
}

// NewRecoverableError returns a new error that is marked as being recoverable.
func NewRecoverableError(formatString string, a ...interface{}) RecoverableError {
	return RecoverableError{message: fmt.Sprintf(formatString, a...)}
}

// UnrecoverableError is an error caused by the message itself. Processing the same message again will fail the same
// way.
type UnrecoverableError struct {
	message string
}

// Error returns the error message for an UnrecoverableError.
func (e UnrecoverableError) Error() string {
	return e.message
}

// NewUnrecoverableError returns a new error that is marked as being unrecoverable.
func NewUnrecoverableError(formatString string, a ...interface{}) UnrecoverableError {
	return UnrecoverableError{message: fmt.Sprintf(formatString, a...)}
}

// IsRecoverable returns true if err is or wraps a RecoverableError.
func IsRecoverable(err error) bool {
	var recoverable RecoverableError
	return errors.As(err, &recoverable)
}
