package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a registration task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskKind identifies which kind of registration records a task carries
type TaskKind string

// Possible task kind values
const (
	TaskKindClient  TaskKind = "client"
	TaskKindVehicle TaskKind = "vehicle"
)

// TaskPriority is recorded at creation time. It is informational only:
// the worker processes tasks in strict arrival order.
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityHigh   TaskPriority = "high"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrInvalidTaskKind   = errors.New("invalid task kind")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrInvalidPriority   = errors.New("invalid task priority")
	ErrNoItems           = errors.New("task must contain at least one item")
	ErrItemCountMismatch = errors.New("total items must equal the number of items")
)

// ItemFailure records one item that the Automation Executor reported as
// failed. ItemIndex is 1-based, matching the position of the item in the
// submitted batch.
type ItemFailure struct {
	ItemIndex int    `json:"item_index"`
	Detail    string `json:"detail"`
}

// TaskResult is the aggregate outcome of a finished task. It is written
// exactly once, together with the terminal status, and never altered
// afterward.
type TaskResult struct {
	Success        bool          `json:"success"`
	ProcessedItems int           `json:"processed_items"`
	Failures       []ItemFailure `json:"failures,omitempty"`
	LogFile        string        `json:"log_file,omitempty"`
}

// Task represents one durable unit of batch work: an ordered set of
// registration records of the same kind, executed item by item.
// Items are read-only inputs and never mutated after creation.
type Task struct {
	ID             uuid.UUID         `json:"id"`
	Kind           TaskKind          `json:"kind"`
	Status         TaskStatus        `json:"status"`
	TotalItems     int               `json:"total_items"`
	ProcessedItems int               `json:"processed_items"`
	Items          []json.RawMessage `json:"items"`
	Priority       TaskPriority      `json:"priority"`
	CallbackURL    string            `json:"callback_url,omitempty"`
	Result         *TaskResult       `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewTask creates a new Task for the given kind and items.
// It generates a new UUID for the task ID, sets the status to pending,
// and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewTask(
	kind TaskKind,
	items []json.RawMessage,
	priority TaskPriority,
	callbackURL string,
) (*Task, error) {
	if priority == "" {
		priority = TaskPriorityNormal
	}

	now := time.Now().UTC()
	task := &Task{
		ID:             uuid.New(),
		Kind:           kind,
		Status:         TaskStatusPending,
		TotalItems:     len(items),
		ProcessedItems: 0,
		Items:          items,
		Priority:       priority,
		CallbackURL:    callbackURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if !isValidTaskKind(t.Kind) {
		return ErrInvalidTaskKind
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if !isValidTaskPriority(t.Priority) {
		return ErrInvalidPriority
	}

	if len(t.Items) == 0 {
		return ErrNoItems
	}

	if t.TotalItems != len(t.Items) {
		return ErrItemCountMismatch
	}

	return nil
}

// IsTerminal reports whether the task has reached a final status.
// Terminal tasks accept no further status, result, or error changes.
func (t *Task) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

// IsTerminalStatus reports whether the given status is terminal.
func IsTerminalStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	return isValidTaskStatus(s)
}

// Valid reports whether the kind is one of the known task kinds.
func (k TaskKind) Valid() bool {
	return isValidTaskKind(k)
}

// Valid reports whether the priority is one of the known task priorities.
func (p TaskPriority) Valid() bool {
	return isValidTaskPriority(p)
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// isValidTaskKind checks if the given kind is a valid TaskKind.
func isValidTaskKind(kind TaskKind) bool {
	switch kind {
	case TaskKindClient, TaskKindVehicle:
		return true
	default:
		return false
	}
}

// isValidTaskPriority checks if the given priority is a valid TaskPriority.
func isValidTaskPriority(priority TaskPriority) bool {
	switch priority {
	case TaskPriorityLow, TaskPriorityNormal, TaskPriorityHigh:
		return true
	default:
		return false
	}
}
