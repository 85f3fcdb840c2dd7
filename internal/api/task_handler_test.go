package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurdesk/autoreg/internal/domain"
	"github.com/insurdesk/autoreg/internal/platform/memory"
	"github.com/insurdesk/autoreg/internal/service"
	"github.com/insurdesk/autoreg/internal/store"
	"github.com/insurdesk/autoreg/internal/task"
)

type stubMonitor struct {
	alive bool
}

func (m *stubMonitor) IsAlive() bool { return m.alive }

type testEnv struct {
	router  chi.Router
	store   store.TaskStore
	queue   *task.Queue
	monitor *stubMonitor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	taskStore := memory.NewTaskStore()
	queue := task.NewQueue(logger)
	monitor := &stubMonitor{alive: true}

	svc, err := service.NewTaskService(taskStore, queue, monitor, t.TempDir(), logger)
	require.NoError(t, err)

	taskHandler := NewTaskHandler(svc)
	systemHandler := NewSystemHandler(svc)

	r := chi.NewRouter()
	r.Get("/", systemHandler.Root)
	r.Get("/health", systemHandler.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/clients/register", taskHandler.RegisterClients)
		r.Post("/vehicles/register", taskHandler.RegisterVehicles)
		r.Get("/tasks", taskHandler.ListTasks)
		r.Post("/tasks/purge", taskHandler.PurgeTasks)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Delete("/tasks/{id}", taskHandler.CancelTask)
		r.Get("/tasks/{id}/log", taskHandler.GetTaskLog)
		r.Get("/stats", taskHandler.GetStats)
		r.Post("/test/simulate", systemHandler.Simulate)
	})

	return &testEnv{router: r, store: taskStore, queue: queue, monitor: monitor}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func parseViewID(view TaskView) (uuid.UUID, error) {
	return uuid.Parse(view.ID)
}

func decodeTaskView(t *testing.T, rec *httptest.ResponseRecorder) TaskView {
	t.Helper()

	var view TaskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestRegisterClients(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/clients/register", RegisterClientsRequest{
		Clients: []ClientRecord{
			{InsuredName: "Maria Souza"},
			{InsuredName: "Joao Lima", Email: "joao@example.com"},
		},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	view := decodeTaskView(t, rec)
	assert.Equal(t, "client", view.Kind)
	assert.Equal(t, "pending", view.Status)
	assert.Equal(t, 2, view.TotalItems)
	assert.Equal(t, 0, view.ProcessedItems)
	assert.Equal(t, "normal", view.Priority)

	// The submission reached the work queue.
	assert.Equal(t, 1, env.queue.Len())
}

func TestRegisterClients_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body RegisterClientsRequest
	}{
		{
			name: "no clients",
			body: RegisterClientsRequest{},
		},
		{
			name: "missing insured name",
			body: RegisterClientsRequest{Clients: []ClientRecord{{Document: "12.345.678-9"}}},
		},
		{
			name: "bad email",
			body: RegisterClientsRequest{
				Clients: []ClientRecord{{InsuredName: "Maria", Email: "not-an-email"}},
			},
		},
		{
			name: "bad priority",
			body: RegisterClientsRequest{
				Clients:  []ClientRecord{{InsuredName: "Maria"}},
				Priority: "urgent",
			},
		},
		{
			name: "bad callback url",
			body: RegisterClientsRequest{
				Clients:     []ClientRecord{{InsuredName: "Maria"}},
				CallbackURL: "not a url",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.request(t, http.MethodPost, "/api/clients/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, env.queue.Len())
		})
	}
}

func TestRegisterClients_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/clients/register",
		bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterVehicles(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/vehicles/register", RegisterVehiclesRequest{
		Vehicles: []VehicleRecord{
			{
				Policy:  map[string]interface{}{"number": "POL-1"},
				Vehicle: map[string]interface{}{"plate": "ABC1D23"},
			},
		},
		CallbackURL: "http://example.com/hook",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	view := decodeTaskView(t, rec)
	assert.Equal(t, "vehicle", view.Kind)
	assert.Equal(t, 1, view.TotalItems)
	assert.Equal(t, "http://example.com/hook", view.CallbackURL)
}

func TestRegisterVehicles_MissingSections(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/vehicles/register", RegisterVehiclesRequest{
		Vehicles: []VehicleRecord{
			{Basics: map[string]interface{}{"note": "no policy or vehicle"}},
		},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTask(t *testing.T) {
	env := newTestEnv(t)

	created := decodeTaskView(t, env.request(t, http.MethodPost, "/api/clients/register",
		RegisterClientsRequest{Clients: []ClientRecord{{InsuredName: "Maria"}}}))

	rec := env.request(t, http.MethodGet, "/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeTaskView(t, rec)
	assert.Equal(t, created.ID, view.ID)
	assert.Equal(t, "pending", view.Status)
}

func TestGetTask_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/tasks/a2e8b1a0-0000-4000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTask_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t)

	env.request(t, http.MethodPost, "/api/clients/register",
		RegisterClientsRequest{Clients: []ClientRecord{{InsuredName: "Maria"}}})
	env.request(t, http.MethodPost, "/api/vehicles/register",
		RegisterVehiclesRequest{Vehicles: []VehicleRecord{{
			Policy:  map[string]interface{}{"number": "POL-1"},
			Vehicle: map[string]interface{}{"plate": "ABC1D23"},
		}}})

	rec := env.request(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []TaskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Len(t, views, 2)

	rec = env.request(t, http.MethodGet, "/api/tasks?kind=vehicle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "vehicle", views[0].Kind)

	rec = env.request(t, http.MethodGet, "/api/tasks?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Len(t, views, 1)
}

func TestListTasks_InvalidFilters(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest,
		env.request(t, http.MethodGet, "/api/tasks?status=bogus", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.request(t, http.MethodGet, "/api/tasks?kind=boat", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.request(t, http.MethodGet, "/api/tasks?limit=zero", nil).Code)
}

func TestCancelTask(t *testing.T) {
	env := newTestEnv(t)

	created := decodeTaskView(t, env.request(t, http.MethodPost, "/api/clients/register",
		RegisterClientsRequest{Clients: []ClientRecord{{InsuredName: "Maria"}}}))

	rec := env.request(t, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeTaskView(t, env.request(t, http.MethodGet, "/api/tasks/"+created.ID, nil))
	assert.Equal(t, "cancelled", view.Status)
}

func TestCancelTask_Conflict(t *testing.T) {
	env := newTestEnv(t)

	created := decodeTaskView(t, env.request(t, http.MethodPost, "/api/clients/register",
		RegisterClientsRequest{Clients: []ClientRecord{{InsuredName: "Maria"}}}))

	id, err := parseViewID(created)
	require.NoError(t, err)

	processing := domain.TaskStatusProcessing
	require.NoError(t, env.store.Update(context.Background(), id,
		store.UpdateTaskParams{Status: &processing}))

	rec := env.request(t, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetTaskLog_NotAvailable(t *testing.T) {
	env := newTestEnv(t)

	created := decodeTaskView(t, env.request(t, http.MethodPost, "/api/clients/register",
		RegisterClientsRequest{Clients: []ClientRecord{{InsuredName: "Maria"}}}))

	rec := env.request(t, http.MethodGet, "/api/tasks/"+created.ID+"/log", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurgeTasks(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/tasks/purge", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0, result["removed"])
	assert.Equal(t, defaultPurgeDays, result["days"])

	rec = env.request(t, http.MethodPost, "/api/tasks/purge?days=junk", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)

	env.request(t, http.MethodPost, "/api/clients/register",
		RegisterClientsRequest{Clients: []ClientRecord{{InsuredName: "Maria"}}})

	rec := env.request(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats store.TaskStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["pending"])
}
