package task

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insurdesk/autoreg/internal/domain"
)

// Entry is the ephemeral handoff record between the API-facing producer and
// the worker. It exists only inside the queue; once dequeued, ownership
// transfers entirely to the worker. The durable task record in the store is
// the source of truth for status and progress.
type Entry struct {
	TaskID      uuid.UUID
	Kind        domain.TaskKind
	Items       []json.RawMessage
	CallbackURL string
	EnqueuedAt  time.Time
}

// Queue is a strict FIFO, unbounded hand-off structure with a single
// consumer. Enqueue never blocks and never fails; the queue is bounded only
// by available memory, a documented limitation of this design. Dequeue
// blocks up to a timeout so the worker loop can observe its shutdown flag
// promptly.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	wake    chan struct{}
	logger  *slog.Logger
}

// NewQueue creates an empty work queue.
func NewQueue(logger *slog.Logger) *Queue {
	return &Queue{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Enqueue appends an entry to the tail of the queue.
func (q *Queue) Enqueue(entry Entry) {
	q.mu.Lock()
	q.entries = append(q.entries, entry)
	queueLen := len(q.entries)
	q.mu.Unlock()

	// Nudge a consumer blocked in Dequeue. The channel has capacity one;
	// a pending signal already covers this entry.
	select {
	case q.wake <- struct{}{}:
	default:
	}

	q.logger.Debug("task enqueued",
		"task_id", entry.TaskID,
		"kind", entry.Kind,
		"queue_len", queueLen)
}

// Dequeue removes and returns the head entry, blocking up to timeout when
// the queue is empty. The second return value is false when the timeout
// elapsed without an entry becoming available.
func (q *Queue) Dequeue(timeout time.Duration) (Entry, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.entries) > 0 {
			entry := q.entries[0]
			q.entries = q.entries[1:]
			if len(q.entries) == 0 {
				q.entries = nil
			}
			q.mu.Unlock()
			return entry, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-timer.C:
			return Entry{}, false
		}
	}
}

// Len reports the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
