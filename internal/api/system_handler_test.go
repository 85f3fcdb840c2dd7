package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var banner map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &banner))
	assert.Equal(t, "autoreg", banner["service"])
	assert.Equal(t, "running", banner["status"])
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	env.request(t, http.MethodPost, "/api/clients/register",
		RegisterClientsRequest{Clients: []ClientRecord{{InsuredName: "Maria"}}})

	rec := env.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["worker_alive"])
	assert.Equal(t, float64(1), body["pending_count"])
	assert.Equal(t, float64(0), body["processing_count"])
}

func TestHealth_WorkerDown(t *testing.T) {
	env := newTestEnv(t)
	env.monitor.alive = false

	rec := env.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["worker_alive"])
}

func TestSimulate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/test/simulate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sample RegisterClientsRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sample))
	require.Len(t, sample.Clients, 1)
	assert.NotEmpty(t, sample.Clients[0].InsuredName)

	rec = env.request(t, http.MethodPost, "/api/test/simulate?kind=vehicle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var vehicleSample RegisterVehiclesRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vehicleSample))
	require.Len(t, vehicleSample.Vehicles, 1)
	assert.NotEmpty(t, vehicleSample.Vehicles[0].Policy)

	rec = env.request(t, http.MethodPost, "/api/test/simulate?kind=boat", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Simulation never creates tasks.
	assert.Equal(t, 0, env.queue.Len())
}
