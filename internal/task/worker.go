package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/insurdesk/autoreg/internal/domain"
	"github.com/insurdesk/autoreg/internal/store"
)

// recoverListLimit caps how many interrupted tasks a recovery sweep will
// re-enqueue in one pass.
const recoverListLimit = 1000

// WorkerConfig holds configuration for the worker loop.
type WorkerConfig struct {
	// PollInterval bounds how long the worker blocks on an empty queue
	// before re-checking its shutdown flag. Shutdown latency is at most
	// this interval plus the in-flight task.
	PollInterval time.Duration

	// ShutdownGrace bounds how long Stop waits for the in-flight task to
	// reach a safe stopping point.
	ShutdownGrace time.Duration

	// RecoverOnStart re-enqueues pending tasks and resets interrupted
	// processing tasks when the worker starts. Without it, a task persisted
	// as pending before a crash would sit in the store forever with nothing
	// to process it.
	RecoverOnStart bool

	// LogDir is where per-task execution logs are written. Empty disables
	// task log files.
	LogDir string
}

// DefaultWorkerConfig returns a WorkerConfig with reasonable defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:   time.Second,
		ShutdownGrace:  5 * time.Second,
		RecoverOnStart: true,
		LogDir:         "logs",
	}
}

// Worker is the single background consumer of the work queue. It owns the
// store handle, queue handle, and lifecycle flags; exactly one task is in
// processing at any time, because the automation executor drives one shared
// external surface and is not safe for concurrent invocation.
//
// Queued tasks are processed in strict arrival order. The recorded priority
// field does not reorder the queue; that is a documented limitation, not a
// bug to fix silently.
type Worker struct {
	store    store.TaskStore
	queue    *Queue
	executor Executor
	notifier Notifier
	config   WorkerConfig
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	notifyWG sync.WaitGroup
}

// NewWorker creates a Worker. Start must be called before it consumes
// anything.
func NewWorker(
	taskStore store.TaskStore,
	queue *Queue,
	executor Executor,
	notifier Notifier,
	config WorkerConfig,
	logger *slog.Logger,
) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = 5 * time.Second
	}

	return &Worker{
		store:    taskStore,
		queue:    queue,
		executor: executor,
		notifier: notifier,
		config:   config,
		logger:   logger.With("component", "worker"),
	}
}

// Start launches the worker goroutine. Starting an already-running worker
// is a no-op.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if w.config.RecoverOnStart {
		if err := w.recover(context.Background()); err != nil {
			return fmt.Errorf("failed to recover tasks: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx)

	w.logger.Info("worker started")
	return nil
}

// Stop signals the worker to exit and waits up to the shutdown grace period
// for the in-flight task and its notification to finish. Queued tasks stay
// persisted as pending; a restart with RecoverOnStart picks them back up.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		w.logger.Info("worker stopped")
	case <-time.After(w.config.ShutdownGrace):
		w.logger.Warn("worker did not stop within grace period, abandoning in-flight task",
			"grace", w.config.ShutdownGrace)
	}
}

// IsAlive reports whether the worker loop is running.
func (w *Worker) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// recover re-enqueues work that was persisted but never finished: pending
// tasks that lost their queue entry, and processing tasks interrupted by a
// crash, which are first reset to pending.
func (w *Worker) recover(ctx context.Context) error {
	processing, err := w.store.List(ctx, store.ListTasksParams{
		Status: domain.TaskStatusProcessing,
		Limit:  recoverListLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list processing tasks: %w", err)
	}

	pendingStatus := domain.TaskStatusPending
	for _, t := range processing {
		if err := w.store.Update(ctx, t.ID, store.UpdateTaskParams{Status: &pendingStatus}); err != nil {
			w.logger.Error("failed to reset interrupted task",
				"task_id", t.ID,
				"error", err)
		}
	}

	pending, err := w.store.List(ctx, store.ListTasksParams{
		Status: domain.TaskStatusPending,
		Limit:  recoverListLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list pending tasks: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	// List returns newest first; re-enqueue in original arrival order.
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	for _, t := range pending {
		w.queue.Enqueue(Entry{
			TaskID:      t.ID,
			Kind:        t.Kind,
			Items:       t.Items,
			CallbackURL: t.CallbackURL,
			EnqueuedAt:  time.Now().UTC(),
		})
	}

	w.logger.Info("recovered unfinished tasks",
		"pending_count", len(pending),
		"reset_count", len(processing))
	return nil
}

// loop is the worker's single long-lived goroutine.
func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	for {
		if ctx.Err() != nil {
			break
		}

		entry, ok := w.queue.Dequeue(w.config.PollInterval)
		if !ok {
			continue
		}

		w.processEntry(ctx, entry)
	}

	// Bounded by the notifier timeout per outstanding delivery.
	w.notifyWG.Wait()
}

// processEntry drives one task from dequeue to terminal status.
func (w *Worker) processEntry(ctx context.Context, entry Entry) {
	logger := w.logger.With("task_id", entry.TaskID, "kind", entry.Kind)

	// A task can be cancelled between enqueue and dequeue. Cancellation is
	// honored only while pending, so a no-longer-pending record means the
	// entry is stale and must not run.
	current, err := w.store.Get(ctx, entry.TaskID)
	if err != nil {
		logger.Error("failed to load task record", "error", err)
		return
	}
	if current.Status != domain.TaskStatusPending {
		logger.Info("skipping task no longer pending", "status", current.Status)
		return
	}

	// Conditional on still-pending: a cancel racing with this pick-up wins
	// or loses atomically at the store, never half-and-half.
	pendingStatus := domain.TaskStatusPending
	processingStatus := domain.TaskStatusProcessing
	if err := w.store.Update(ctx, entry.TaskID, store.UpdateTaskParams{
		Status:     &processingStatus,
		FromStatus: &pendingStatus,
	}); err != nil {
		if errors.Is(err, store.ErrStaleStatus) || errors.Is(err, store.ErrFinalized) {
			logger.Info("task transitioned away before pick-up, skipping")
			return
		}
		logger.Error("failed to mark task processing", "error", err)
		return
	}

	logger.Info("processing task", "total_items", len(entry.Items))

	result, execErr := w.executeItems(ctx, logger, entry)

	var terminalStatus domain.TaskStatus
	params := store.UpdateTaskParams{
		ProcessedItems: &result.ProcessedItems,
		Result:         &result,
	}

	switch {
	case execErr != nil:
		// Whole-batch abort: terminal failure with partial progress.
		terminalStatus = domain.TaskStatusFailed
		msg := execErr.Error()
		params.Error = &msg
		logger.Error("task aborted",
			"error", execErr,
			"processed_items", result.ProcessedItems)
	case result.Success:
		terminalStatus = domain.TaskStatusCompleted
	default:
		terminalStatus = domain.TaskStatusFailed
		msg := fmt.Sprintf("%d of %d items failed", len(result.Failures), len(entry.Items))
		params.Error = &msg
	}
	params.Status = &terminalStatus

	// Terminal status and result land in a single update.
	if err := w.store.Update(ctx, entry.TaskID, params); err != nil {
		logger.Error("failed to finalize task", "error", err)
		return
	}

	logger.Info("task finished",
		"status", terminalStatus,
		"processed_items", result.ProcessedItems,
		"failed_items", len(result.Failures))

	if entry.CallbackURL != "" {
		w.notifyWG.Add(1)
		go func() {
			defer w.notifyWG.Done()
			// The notifier bounds its own delivery attempt; a failure here
			// is logged and swallowed, never reflected on the task.
			if err := w.notifier.Notify(context.Background(), entry.CallbackURL,
				entry.TaskID, terminalStatus, &result); err != nil {
				logger.Warn("webhook notification abandoned", "error", err)
			}
		}()
	}
}

// executeItems runs every item in order, accumulating per-item failures
// without aborting the batch. A non-nil error from the executor is an
// unrecoverable whole-batch condition; the returned result then reflects
// the items completed before the abort.
func (w *Worker) executeItems(
	ctx context.Context,
	logger *slog.Logger,
	entry Entry,
) (domain.TaskResult, error) {
	result := domain.TaskResult{}

	taskLog := w.openTaskLog(entry, logger)
	if taskLog != nil {
		defer func() { _ = taskLog.Close() }()
		result.LogFile = taskLog.Name()
		fmt.Fprintf(taskLog, "task %s: %s registration, %d item(s)\n",
			entry.TaskID, entry.Kind, len(entry.Items))
	}

	processed := 0
	for i, item := range entry.Items {
		outcome, err := w.executor.ExecuteItem(ctx, entry.Kind, item)
		if err != nil {
			if taskLog != nil {
				fmt.Fprintf(taskLog, "[%d/%d] ABORT: %v\n", i+1, len(entry.Items), err)
			}
			result.ProcessedItems = processed
			return result, fmt.Errorf("automation aborted at item %d: %w", i+1, err)
		}

		processed++
		if outcome.Success {
			if taskLog != nil {
				fmt.Fprintf(taskLog, "[%d/%d] ok\n", i+1, len(entry.Items))
			}
		} else {
			result.Failures = append(result.Failures, domain.ItemFailure{
				ItemIndex: i + 1,
				Detail:    outcome.Detail,
			})
			if taskLog != nil {
				fmt.Fprintf(taskLog, "[%d/%d] failed: %s\n", i+1, len(entry.Items), outcome.Detail)
			}
			logger.Warn("item execution failed",
				"item_index", i+1,
				"detail", outcome.Detail)
		}

		// Incremental progress for pollers; the final count is persisted
		// with the terminal update regardless.
		if err := w.store.Update(ctx, entry.TaskID, store.UpdateTaskParams{
			ProcessedItems: &processed,
		}); err != nil {
			logger.Debug("failed to persist incremental progress", "error", err)
		}
	}

	result.ProcessedItems = processed
	result.Success = len(result.Failures) == 0

	if taskLog != nil {
		fmt.Fprintf(taskLog, "done: %d/%d processed, %d failed\n",
			processed, len(entry.Items), len(result.Failures))
	}

	return result, nil
}

// openTaskLog creates the per-task execution log file. Log files are an
// aid for diagnosing automation runs, so failures here only warn.
func (w *Worker) openTaskLog(entry Entry, logger *slog.Logger) *os.File {
	if w.config.LogDir == "" {
		return nil
	}

	if err := os.MkdirAll(w.config.LogDir, 0o755); err != nil {
		logger.Warn("failed to create task log directory", "error", err)
		return nil
	}

	path := filepath.Join(w.config.LogDir, entry.TaskID.String()+".log")
	f, err := os.Create(path)
	if err != nil {
		logger.Warn("failed to create task log file", "error", err)
		return nil
	}

	return f
}
