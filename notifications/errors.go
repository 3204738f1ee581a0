package notifications

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError indicates that a caller omitted a required field or supplied an invalid combination of fields.
type ValidationError struct {
	message string
}

// Error returns the error message for a ValidationError.
func (e ValidationError) Error() string {
	return e.message
}

// NewValidationError returns a new validation error.
func NewValidationError(formatString string, a ...interface{}) ValidationError {
	return ValidationError{message: fmt.Sprintf(formatString, a...)}
}

// StorageError indicates that the database rejected or failed an operation.
type StorageError struct {
	operation string
	cause     error
}

// Error returns the error message for a StorageError.
func (e StorageError) Error() string {
	return fmt.Sprintf("unable to %s: %s", e.operation, e.cause.Error())
}

// Unwrap returns the underlying database error.
func (e StorageError) Unwrap() error {
	return e.cause
}

// Cause returns the underlying database error.
func (e StorageError) Cause() error {
	return e.cause
}

// NewStorageError wraps an error returned by the store.
func NewStorageError(operation string, cause error) StorageError {
	return StorageError{operation: operation, cause: cause}
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var validationErr ValidationError
	return errors.As(err, &validationErr)
}

// IsStorageError returns true if err is or wraps a StorageError.
func IsStorageError(err error) bool {
	var storageErr StorageError
	return errors.As(err, &storageErr)
}
