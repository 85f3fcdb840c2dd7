package automation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurdesk/autoreg/internal/domain"
)

func newSimulator(delay time.Duration) *Simulator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSimulator(delay, logger)
}

func TestSimulatorExecuteItem(t *testing.T) {
	ctx := context.Background()
	sim := newSimulator(0)

	t.Run("success", func(t *testing.T) {
		outcome, err := sim.ExecuteItem(ctx, domain.TaskKindClient,
			json.RawMessage(`{"insured_name":"Maria Gomez"}`))
		require.NoError(t, err)
		assert.True(t, outcome.Success)
	})

	t.Run("scripted failure", func(t *testing.T) {
		outcome, err := sim.ExecuteItem(ctx, domain.TaskKindClient,
			json.RawMessage(`{"simulate":"fail"}`))
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.NotEmpty(t, outcome.Detail)
	})

	t.Run("scripted abort", func(t *testing.T) {
		_, err := sim.ExecuteItem(ctx, domain.TaskKindVehicle,
			json.RawMessage(`{"simulate":"abort"}`))
		assert.Error(t, err)
	})

	t.Run("malformed payload is a per-item failure", func(t *testing.T) {
		outcome, err := sim.ExecuteItem(ctx, domain.TaskKindClient,
			json.RawMessage(`{not json`))
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Detail, "malformed item payload")
	})
}

func TestSimulatorHonorsContextDuringDelay(t *testing.T) {
	sim := newSimulator(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := sim.ExecuteItem(ctx, domain.TaskKindClient, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
