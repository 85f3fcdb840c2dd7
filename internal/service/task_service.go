package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/insurdesk/autoreg/internal/domain"
	"github.com/insurdesk/autoreg/internal/store"
	"github.com/insurdesk/autoreg/internal/task"
)

// WorkerMonitor reports whether the background worker loop is running.
type WorkerMonitor interface {
	IsAlive() bool
}

// HealthStatus describes the processing subsystem for the health endpoint.
type HealthStatus struct {
	WorkerAlive     bool `json:"worker_alive"`
	PendingCount    int  `json:"pending_count"`
	ProcessingCount int  `json:"processing_count"`
}

// TaskService exposes the boundary operations of the task-processing core:
// submit, query, cancel, stats, health, and retention purge. It owns the
// create-then-enqueue sequence so every accepted submission is recorded
// durably exactly once before the worker can see it.
type TaskService struct {
	store  store.TaskStore
	queue  *task.Queue
	worker WorkerMonitor
	logDir string
	logger *slog.Logger
}

// NewTaskService creates a TaskService. All dependencies are required
// except logDir, which may be empty when task log files are disabled.
func NewTaskService(
	taskStore store.TaskStore,
	queue *task.Queue,
	worker WorkerMonitor,
	logDir string,
	logger *slog.Logger,
) (*TaskService, error) {
	if taskStore == nil {
		return nil, errors.New("task store is required")
	}
	if queue == nil {
		return nil, errors.New("work queue is required")
	}
	if worker == nil {
		return nil, errors.New("worker monitor is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &TaskService{
		store:  taskStore,
		queue:  queue,
		worker: worker,
		logDir: logDir,
		logger: logger.With("component", "task_service"),
	}, nil
}

// Submit creates a pending task record and enqueues it for the worker.
// The returned task is the initial pending view.
func (s *TaskService) Submit(
	ctx context.Context,
	kind domain.TaskKind,
	items []json.RawMessage,
	priority domain.TaskPriority,
	callbackURL string,
) (*domain.Task, error) {
	t, err := domain.NewTask(kind, items, priority, callbackURL)
	if err != nil {
		return nil, fmt.Errorf("invalid task submission: %w", err)
	}

	// Durable record first; only then does the queue learn about the task.
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	s.queue.Enqueue(task.Entry{
		TaskID:      t.ID,
		Kind:        t.Kind,
		Items:       t.Items,
		CallbackURL: t.CallbackURL,
		EnqueuedAt:  time.Now().UTC(),
	})

	s.logger.Info("task submitted",
		"task_id", t.ID,
		"kind", t.Kind,
		"total_items", t.TotalItems,
		"priority", t.Priority)
	return t, nil
}

// Get retrieves a task by ID.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.store.Get(ctx, id)
}

// List returns tasks matching the filters, most-recently-created first.
func (s *TaskService) List(ctx context.Context, params store.ListTasksParams) ([]*domain.Task, error) {
	return s.store.List(ctx, params)
}

// Cancel marks a pending task as cancelled. Tasks that are already
// processing or terminal cannot be cancelled; there is no mechanism to
// interrupt in-flight automation.
func (s *TaskService) Cancel(ctx context.Context, id uuid.UUID) error {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if t.Status != domain.TaskStatusPending {
		return fmt.Errorf("%w: task is %s", ErrConflict, t.Status)
	}

	// The write is conditional on the task still being pending, so a task
	// the worker picks up between the check above and this write keeps its
	// processing status instead of being cancelled out from under it.
	pending := domain.TaskStatusPending
	cancelled := domain.TaskStatusCancelled
	err = s.store.Update(ctx, id, store.UpdateTaskParams{
		Status:     &cancelled,
		FromStatus: &pending,
	})
	if errors.Is(err, store.ErrStaleStatus) || errors.Is(err, store.ErrFinalized) {
		current, getErr := s.store.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: task is %s", ErrConflict, current.Status)
	}
	if err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}

	s.logger.Info("task cancelled", "task_id", id)
	return nil
}

// Stats returns aggregate store statistics.
func (s *TaskService) Stats(ctx context.Context) (*store.TaskStats, error) {
	return s.store.Stats(ctx)
}

// Health reports worker liveness and queue-relevant counts.
func (s *TaskService) Health(ctx context.Context) (*HealthStatus, error) {
	pending, err := s.store.Count(ctx, domain.TaskStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending tasks: %w", err)
	}

	processing, err := s.store.Count(ctx, domain.TaskStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to count processing tasks: %w", err)
	}

	return &HealthStatus{
		WorkerAlive:     s.worker.IsAlive(),
		PendingCount:    pending,
		ProcessingCount: processing,
	}, nil
}

// Purge removes terminal tasks older than the given age and returns how
// many records were deleted. Retention is caller-invoked, never automatic.
func (s *TaskService) Purge(ctx context.Context, age time.Duration) (int, error) {
	removed, err := s.store.PurgeOlderThan(ctx, age)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.Info("purged old tasks", "removed", removed, "age", age)
	}
	return removed, nil
}

// TaskLog returns the per-task execution log contents.
func (s *TaskService) TaskLog(ctx context.Context, id uuid.UUID) (string, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}

	path := ""
	if t.Result != nil && t.Result.LogFile != "" {
		path = t.Result.LogFile
	} else if s.logDir != "" {
		path = filepath.Join(s.logDir, t.ID.String()+".log")
	}
	if path == "" {
		return "", ErrLogNotAvailable
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrLogNotAvailable
		}
		return "", fmt.Errorf("failed to read task log: %w", err)
	}

	return string(content), nil
}
