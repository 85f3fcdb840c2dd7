package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insurdesk/autoreg/internal/api/shared"
	"github.com/insurdesk/autoreg/internal/domain"
	"github.com/insurdesk/autoreg/internal/service"
	"github.com/insurdesk/autoreg/internal/store"
)

// defaultPurgeDays is the retention window applied when the purge endpoint
// is called without an explicit days parameter.
const defaultPurgeDays = 30

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// RegisterClients handles POST /api/clients/register requests
func (h *TaskHandler) RegisterClients(w http.ResponseWriter, r *http.Request) {
	var req RegisterClientsRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	items := make([]json.RawMessage, 0, len(req.Clients))
	for _, record := range req.Clients {
		raw, err := json.Marshal(record)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to encode client record", err)
			return
		}
		items = append(items, raw)
	}

	h.submit(w, r, domain.TaskKindClient, items, req.Priority, req.CallbackURL)
}

// RegisterVehicles handles POST /api/vehicles/register requests
func (h *TaskHandler) RegisterVehicles(w http.ResponseWriter, r *http.Request) {
	var req RegisterVehiclesRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	items := make([]json.RawMessage, 0, len(req.Vehicles))
	for _, record := range req.Vehicles {
		raw, err := json.Marshal(record)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to encode vehicle record", err)
			return
		}
		items = append(items, raw)
	}

	h.submit(w, r, domain.TaskKindVehicle, items, req.Priority, req.CallbackURL)
}

// submit creates the task and responds with 202 Accepted, since the actual
// registration work happens asynchronously.
func (h *TaskHandler) submit(
	w http.ResponseWriter,
	r *http.Request,
	kind domain.TaskKind,
	items []json.RawMessage,
	priority string,
	callbackURL string,
) {
	task, err := h.taskService.Submit(
		r.Context(), kind, items, domain.TaskPriority(priority), callbackURL)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to submit task", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToView(task))
}

// ListTasks handles GET /api/tasks requests. Supports status, kind and
// limit query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	params := store.ListTasksParams{}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.TaskStatus(status)
		if !s.Valid() {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid status filter")
			return
		}
		params.Status = s
	}

	if kind := r.URL.Query().Get("kind"); kind != "" {
		k := domain.TaskKind(kind)
		if !k.Valid() {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid kind filter")
			return
		}
		params.Kind = k
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		params.Limit = n
	}

	tasks, err := h.taskService.List(r.Context(), params)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list tasks", err)
		return
	}

	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, taskToView(t))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, views)
}

// GetTask handles GET /api/tasks/{id} requests
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.Get(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to get task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToView(task))
}

// CancelTask handles DELETE /api/tasks/{id} requests. Only tasks still
// waiting in the queue can be cancelled.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Cancel(r.Context(), id); err != nil {
		h.respondWithServiceError(w, r, err, "Failed to cancel task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"id":     id.String(),
		"status": string(domain.TaskStatusCancelled),
	})
}

// GetTaskLog handles GET /api/tasks/{id}/log requests
func (h *TaskHandler) GetTaskLog(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	content, err := h.taskService.TaskLog(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to read task log")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"id":  id.String(),
		"log": content,
	})
}

// PurgeTasks handles POST /api/tasks/purge requests. The days query
// parameter bounds the retention window; finished tasks older than that
// are deleted.
func (h *TaskHandler) PurgeTasks(w http.ResponseWriter, r *http.Request) {
	days := defaultPurgeDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid days parameter")
			return
		}
		days = n
	}

	removed, err := h.taskService.Purge(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to purge tasks", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]int{
		"removed": removed,
		"days":    days,
	})
}

// GetStats handles GET /api/stats requests
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.taskService.Stats(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to compute stats", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// taskIDFromURL parses the id URL parameter. On failure it writes a 400
// response and returns false.
func (h *TaskHandler) taskIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}

// respondWithServiceError maps service and store errors onto HTTP status
// codes.
func (h *TaskHandler) respondWithServiceError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	fallbackMessage string,
) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
	case errors.Is(err, service.ErrLogNotAvailable):
		shared.RespondWithError(w, r, http.StatusNotFound, "Task log not available")
	case errors.Is(err, service.ErrConflict):
		shared.RespondWithError(w, r, http.StatusConflict, err.Error())
	default:
		slog.Error(fallbackMessage, "error", err, "path", r.URL.Path)
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, fallbackMessage, err)
	}
}
