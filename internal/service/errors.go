// Package service coordinates the task store, work queue, and worker into
// the operations the HTTP layer exposes.
package service

import "errors"

// Common service errors.
var (
	// ErrConflict is returned when an operation is not valid for the task's
	// current status, e.g. cancelling a task that is already processing or
	// finished.
	ErrConflict = errors.New("operation conflicts with current task status")

	// ErrLogNotAvailable is returned when a task exists but no execution log
	// has been written for it yet.
	ErrLogNotAvailable = errors.New("task log not available")
)
