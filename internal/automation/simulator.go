// Package automation provides the executor that performs one item's
// registration against the external insurance system. The real deployment
// drives an interactive desktop application through a separate automation
// agent; that glue is deliberately outside this service. The Simulator here
// implements the same boundary so the pipeline can run end to end without
// the external surface.
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/insurdesk/autoreg/internal/domain"
	"github.com/insurdesk/autoreg/internal/task"
)

// Simulator implements task.Executor. It validates the minimal shape of
// each item and reports success after an optional per-item delay. Items may
// carry a "simulate" directive to exercise failure paths:
//
//	{"simulate": "fail"}  -> per-item failure
//	{"simulate": "abort"} -> whole-batch abort
type Simulator struct {
	itemDelay time.Duration
	logger    *slog.Logger
}

// NewSimulator creates a Simulator with the given artificial per-item delay.
func NewSimulator(itemDelay time.Duration, logger *slog.Logger) *Simulator {
	return &Simulator{
		itemDelay: itemDelay,
		logger:    logger.With("component", "automation"),
	}
}

// ExecuteItem performs one simulated registration.
func (s *Simulator) ExecuteItem(
	ctx context.Context,
	kind domain.TaskKind,
	item json.RawMessage,
) (task.ItemOutcome, error) {
	var payload struct {
		Simulate string `json:"simulate"`
	}
	if err := json.Unmarshal(item, &payload); err != nil {
		return task.ItemOutcome{
			Success: false,
			Detail:  fmt.Sprintf("malformed item payload: %v", err),
		}, nil
	}

	if s.itemDelay > 0 {
		select {
		case <-time.After(s.itemDelay):
		case <-ctx.Done():
			return task.ItemOutcome{}, ctx.Err()
		}
	}

	switch payload.Simulate {
	case "abort":
		return task.ItemOutcome{}, fmt.Errorf("simulated loss of the automation surface")
	case "fail":
		return task.ItemOutcome{Success: false, Detail: "simulated registration failure"}, nil
	}

	s.logger.Debug("item registered", "kind", kind)
	return task.ItemOutcome{Success: true}, nil
}
