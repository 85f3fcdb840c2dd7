package task

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurdesk/autoreg/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newEntry(kind domain.TaskKind) Entry {
	return Entry{
		TaskID:     uuid.New(),
		Kind:       kind,
		Items:      []json.RawMessage{json.RawMessage(`{}`)},
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(testLogger())

	first := newEntry(domain.TaskKindClient)
	second := newEntry(domain.TaskKindVehicle)
	third := newEntry(domain.TaskKindClient)

	q.Enqueue(first)
	q.Enqueue(second)
	q.Enqueue(third)
	assert.Equal(t, 3, q.Len())

	for _, want := range []Entry{first, second, third} {
		got, ok := q.Dequeue(time.Second)
		require.True(t, ok)
		assert.Equal(t, want.TaskID, got.TaskID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueDequeueTimeout(t *testing.T) {
	q := NewQueue(testLogger())

	start := time.Now()
	_, ok := q.Dequeue(50 * time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestQueueDequeueWakesOnEnqueue(t *testing.T) {
	q := NewQueue(testLogger())
	entry := newEntry(domain.TaskKindClient)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(entry)
	}()

	got, ok := q.Dequeue(2 * time.Second)
	require.True(t, ok)
	assert.Equal(t, entry.TaskID, got.TaskID)
}

func TestQueueEnqueueNeverBlocks(t *testing.T) {
	q := NewQueue(testLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			q.Enqueue(newEntry(domain.TaskKindClient))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked")
	}
	assert.Equal(t, 1000, q.Len())
}
