package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/insurdesk/autoreg/internal/domain"
)

// DefaultListLimit caps List results when the caller does not supply a limit.
const DefaultListLimit = 50

// UpdateTaskParams describes a partial update to a task record. Nil fields
// are left untouched. UpdatedAt is refreshed automatically unless supplied.
//
// FromStatus makes the update conditional: it applies only while the task
// still has that status, and the store returns ErrStaleStatus otherwise.
// Status transitions that must not race (cancel vs pick-up) go through this
// guard so check-then-act callers cannot overwrite a concurrent transition.
type UpdateTaskParams struct {
	Status         *domain.TaskStatus
	ProcessedItems *int
	Result         *domain.TaskResult
	Error          *string
	UpdatedAt      *time.Time
	FromStatus     *domain.TaskStatus
}

// TouchesTerminalFields reports whether the patch would alter fields that
// are frozen once a task reaches a terminal status.
func (p UpdateTaskParams) TouchesTerminalFields() bool {
	return p.Status != nil || p.Result != nil || p.Error != nil
}

// ListTasksParams holds the conjunctive filters for List. Zero values mean
// "no filter"; a zero Limit falls back to DefaultListLimit.
type ListTasksParams struct {
	Status domain.TaskStatus
	Kind   domain.TaskKind
	Limit  int
}

// TaskStats summarizes the store contents for the stats endpoint.
// SuccessRate is completed/(completed+failed)*100 rounded to two decimal
// places, or 0 when no task has finished yet.
type TaskStats struct {
	ByStatus    map[string]int `json:"by_status"`
	ByKind      map[string]int `json:"by_kind"`
	Total       int            `json:"total"`
	SuccessRate float64        `json:"success_rate"`
}

// TaskStore defines the interface for persisting registration tasks.
// Implementations must support concurrent access from the API-facing
// goroutines and the worker without external locking: each method is
// atomic as a unit, and a concurrent reader never observes a partially
// written record.
type TaskStore interface {
	// Create durably persists a new task record.
	// Returns ErrDuplicate if the task ID is already present.
	Create(ctx context.Context, task *domain.Task) error

	// Get retrieves a task by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update applies a partial patch to a task. Returns ErrNotFound if the
	// task is absent, ErrFinalized if the patch touches status, result, or
	// error on a task that is already terminal, and ErrStaleStatus if a
	// FromStatus condition no longer holds.
	Update(ctx context.Context, id uuid.UUID, params UpdateTaskParams) error

	// List returns tasks matching the filters, most-recently-created first.
	List(ctx context.Context, params ListTasksParams) ([]*domain.Task, error)

	// Count returns the number of tasks with the given status, or the total
	// number of tasks when status is empty.
	Count(ctx context.Context, status domain.TaskStatus) (int, error)

	// PurgeOlderThan removes tasks that are both in a terminal status and
	// created earlier than the cutoff age. Pending and processing tasks are
	// never removed regardless of age. Returns the number of removed records.
	PurgeOlderThan(ctx context.Context, age time.Duration) (int, error)

	// Stats returns aggregate counts and the overall success rate.
	Stats(ctx context.Context) (*TaskStats, error)
}
