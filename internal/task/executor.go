package task

import (
	"context"
	"encoding/json"

	"github.com/insurdesk/autoreg/internal/domain"
)

// ItemOutcome reports the executor's result for one item. An expected
// per-item failure comes back as Success=false with a Detail; it is recorded
// in the task result and the batch moves on to the next item.
type ItemOutcome struct {
	Success bool
	Detail  string
}

// Executor performs the registration of one item against the external
// system. It is an opaque capability from the worker's point of view: it
// may block arbitrarily long and is not safe for concurrent invocation,
// which is why a single worker drives it.
//
// A non-nil error return is an unexpected, unrecoverable condition and
// aborts the whole batch; expected per-item failures must be reported via
// the outcome instead.
type Executor interface {
	ExecuteItem(ctx context.Context, kind domain.TaskKind, item json.RawMessage) (ItemOutcome, error)
}
