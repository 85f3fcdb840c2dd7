// Package postgres implements store.TaskStore on PostgreSQL using the
// database/sql interface with the pgx stdlib driver. Schema management
// lives in the migrations directory (goose).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/insurdesk/autoreg/internal/domain"
	"github.com/insurdesk/autoreg/internal/store"
)

// terminalStatuses is inlined into update and purge statements to enforce
// terminal-state immutability and purge selectivity in the database itself.
const terminalStatuses = "('completed', 'failed', 'cancelled')"

// TaskStore implements the store.TaskStore interface using PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a new PostgreSQL-backed TaskStore.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// Create persists a full task record. The single INSERT keeps the operation
// atomic: a concurrent reader sees either no row or the complete row.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return store.NewStoreError("create", "validation failed", store.ErrInvalidEntity)
	}

	items, err := json.Marshal(task.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal task items: %w", err)
	}

	query := `
		INSERT INTO tasks (id, kind, status, total_items, processed_items,
			items, priority, callback_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.Kind,
		task.Status,
		task.TotalItems,
		task.ProcessedItems,
		items,
		task.Priority,
		nullableString(task.CallbackURL),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if mapped := mapError(err); mapped == store.ErrDuplicate {
			return mapped
		}
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

// Get retrieves a task by ID.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, kind, status, total_items, processed_items, items,
			priority, callback_url, result, error_message, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if mapped := mapError(err); mapped == store.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// Update applies a partial patch. The terminal guard is part of the UPDATE's
// WHERE clause, so a patch racing with the worker's final write can never
// overwrite a terminal record.
func (s *TaskStore) Update(ctx context.Context, id uuid.UUID, params store.UpdateTaskParams) error {
	setClauses := make([]string, 0, 5)
	args := make([]any, 0, 6)

	appendSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		appendSet("status", *params.Status)
	}
	if params.ProcessedItems != nil {
		appendSet("processed_items", *params.ProcessedItems)
	}
	if params.Result != nil {
		result, err := json.Marshal(params.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal task result: %w", err)
		}
		appendSet("result", result)
	}
	if params.Error != nil {
		appendSet("error_message", *params.Error)
	}

	if params.UpdatedAt != nil {
		appendSet("updated_at", *params.UpdatedAt)
	} else {
		appendSet("updated_at", time.Now().UTC())
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), len(args))
	if params.TouchesTerminalFields() {
		query += " AND status NOT IN " + terminalStatuses
	}
	if params.FromStatus != nil {
		args = append(args, *params.FromStatus)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		// The task does not exist, or one of the status guards filtered it.
		var current domain.TaskStatus
		checkErr := s.db.QueryRowContext(ctx,
			"SELECT status FROM tasks WHERE id = $1", id).Scan(&current)
		if errors.Is(checkErr, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if checkErr != nil {
			return fmt.Errorf("failed to check task status: %w", checkErr)
		}
		if domain.IsTerminalStatus(current) && params.TouchesTerminalFields() {
			return store.ErrFinalized
		}
		return store.ErrStaleStatus
	}

	return nil
}

// List returns tasks matching the filters, most-recently-created first.
func (s *TaskStore) List(ctx context.Context, params store.ListTasksParams) ([]*domain.Task, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	query := `
		SELECT id, kind, status, total_items, processed_items, items,
			priority, callback_url, result, error_message, created_at, updated_at
		FROM tasks
		WHERE 1=1
	`
	args := make([]any, 0, 3)

	if params.Status != "" {
		args = append(args, params.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if params.Kind != "" {
		args = append(args, params.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// Count returns the number of tasks with the given status, or all tasks
// when status is empty.
func (s *TaskStore) Count(ctx context.Context, status domain.TaskStatus) (int, error) {
	var count int
	var err error

	if status == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM tasks WHERE status = $1", status).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	return count, nil
}

// PurgeOlderThan removes terminal tasks created before the cutoff.
func (s *TaskStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE created_at < $1 AND status IN "+terminalStatuses,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge tasks: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(removed), nil
}

// Stats returns aggregate counts and the overall success rate.
func (s *TaskStore) Stats(ctx context.Context) (*store.TaskStats, error) {
	stats := &store.TaskStats{
		ByStatus: make(map[string]int),
		ByKind:   make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	kindRows, err := s.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM tasks GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by kind: %w", err)
	}
	defer func() { _ = kindRows.Close() }()

	for kindRows.Next() {
		var kind string
		var count int
		if err := kindRows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		stats.ByKind[kind] = count
	}
	if err := kindRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kind counts: %w", err)
	}

	completed := stats.ByStatus[string(domain.TaskStatusCompleted)]
	failed := stats.ByStatus[string(domain.TaskStatusFailed)]
	if finished := completed + failed; finished > 0 {
		rate := float64(completed) / float64(finished) * 100
		stats.SuccessRate = math.Round(rate*100) / 100
	}

	return stats, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row in the column order used by Get and List.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var items []byte
	var callbackURL sql.NullString
	var result []byte
	var errorMessage sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Kind,
		&task.Status,
		&task.TotalItems,
		&task.ProcessedItems,
		&items,
		&task.Priority,
		&callbackURL,
		&result,
		&errorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &task.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task items: %w", err)
	}
	if len(result) > 0 {
		task.Result = &domain.TaskResult{}
		if err := json.Unmarshal(result, task.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
		}
	}
	task.CallbackURL = callbackURL.String
	task.Error = errorMessage.String

	return &task, nil
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
