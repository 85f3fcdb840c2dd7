package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested task does not exist in the store.
	ErrNotFound = errors.New("task not found")

	// ErrDuplicate is returned when a create would reuse an existing task ID.
	// Task IDs are generated server-side, so hitting this in practice points
	// at a caller supplying its own colliding ID.
	ErrDuplicate = errors.New("task already exists")

	// ErrFinalized is returned when an update attempts to change the status,
	// result, or error of a task that has already reached a terminal status.
	// Terminal state is immutable.
	ErrFinalized = errors.New("task is finalized")

	// ErrInvalidEntity is returned when a task fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid task")

	// ErrStaleStatus is returned when an update carries a FromStatus
	// condition and the task has moved to a different status since the
	// caller last observed it.
	ErrStaleStatus = errors.New("task status changed")
)

// IsNotFoundError checks if the error is a "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is a "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given operation, message, and wrapped error.
func NewStoreError(operation, message string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
