// Package memory provides an in-memory implementation of store.TaskStore.
// It is used when no database URL is configured and by tests. All state is
// lost on process exit, so production deployments should configure Postgres.
package memory

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insurdesk/autoreg/internal/domain"
	"github.com/insurdesk/autoreg/internal/store"
)

// TaskStore is a mutex-guarded map of task records. Every method is atomic
// as a unit; readers receive copies, so no record is ever observed
// half-written and callers cannot mutate stored state.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
}

// NewTaskStore creates an empty in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
}

// Create durably (for the lifetime of the process) records a new task.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return store.NewStoreError("create", "validation failed", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}

	s.tasks[task.ID] = copyTask(task)
	return nil
}

// Get retrieves a copy of the task with the given ID.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	return copyTask(task), nil
}

// Update applies a partial patch to the task with the given ID.
func (s *TaskStore) Update(ctx context.Context, id uuid.UUID, params store.UpdateTaskParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return store.ErrNotFound
	}

	if task.IsTerminal() && params.TouchesTerminalFields() {
		return store.ErrFinalized
	}

	if params.FromStatus != nil && task.Status != *params.FromStatus {
		return store.ErrStaleStatus
	}

	if params.Status != nil {
		task.Status = *params.Status
	}
	if params.ProcessedItems != nil {
		task.ProcessedItems = *params.ProcessedItems
	}
	if params.Result != nil {
		result := *params.Result
		task.Result = &result
	}
	if params.Error != nil {
		task.Error = *params.Error
	}

	if params.UpdatedAt != nil {
		task.UpdatedAt = *params.UpdatedAt
	} else {
		task.UpdatedAt = time.Now().UTC()
	}

	return nil
}

// List returns tasks matching the filters, most-recently-created first.
func (s *TaskStore) List(ctx context.Context, params store.ListTasksParams) ([]*domain.Task, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	// Copy while still holding the lock; a concurrent Update mutates stored
	// records in place, so reading them unlocked would hand out torn copies.
	s.mu.RLock()
	matched := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if params.Status != "" && task.Status != params.Status {
			continue
		}
		if params.Kind != "" && task.Kind != params.Kind {
			continue
		}
		matched = append(matched, copyTask(task))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// Count returns the number of tasks with the given status, or all tasks
// when status is empty.
func (s *TaskStore) Count(ctx context.Context, status domain.TaskStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == "" {
		return len(s.tasks), nil
	}

	count := 0
	for _, task := range s.tasks {
		if task.Status == status {
			count++
		}
	}
	return count, nil
}

// PurgeOlderThan removes terminal tasks created before the cutoff.
func (s *TaskStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, task := range s.tasks {
		if task.IsTerminal() && task.CreatedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed, nil
}

// Stats returns aggregate counts and the overall success rate.
func (s *TaskStore) Stats(ctx context.Context) (*store.TaskStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &store.TaskStats{
		ByStatus: make(map[string]int),
		ByKind:   make(map[string]int),
		Total:    len(s.tasks),
	}

	for _, task := range s.tasks {
		stats.ByStatus[string(task.Status)]++
		stats.ByKind[string(task.Kind)]++
	}

	completed := stats.ByStatus[string(domain.TaskStatusCompleted)]
	failed := stats.ByStatus[string(domain.TaskStatusFailed)]
	if finished := completed + failed; finished > 0 {
		rate := float64(completed) / float64(finished) * 100
		stats.SuccessRate = math.Round(rate*100) / 100
	}

	return stats, nil
}

// copyTask returns a deep enough copy of the task that callers on either
// side of the store boundary never share mutable state. Items are read-only
// by contract, so the backing byte slices are shared.
func copyTask(t *domain.Task) *domain.Task {
	clone := *t
	if t.Items != nil {
		clone.Items = append([]json.RawMessage(nil), t.Items...)
	}
	if t.Result != nil {
		result := *t.Result
		if t.Result.Failures != nil {
			result.Failures = append([]domain.ItemFailure(nil), t.Result.Failures...)
		}
		clone.Result = &result
	}
	return &clone
}
