package api

import (
	"net/http"

	"github.com/insurdesk/autoreg/internal/api/shared"
	"github.com/insurdesk/autoreg/internal/service"
)

// SystemHandler handles service-level HTTP requests: the banner, health
// checks, and the sample payload endpoint used to exercise the API without
// touching the automation target.
type SystemHandler struct {
	taskService *service.TaskService
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(taskService *service.TaskService) *SystemHandler {
	return &SystemHandler{taskService: taskService}
}

// Root handles GET / requests with a service banner.
func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"service": "autoreg",
		"status":  "running",
	})
}

// Health handles GET /health requests. The service is degraded when the
// worker loop is not running, since queued tasks will never be processed.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.taskService.Health(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Health check failed", err)
		return
	}

	status := "ok"
	code := http.StatusOK
	if !health.WorkerAlive {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	shared.RespondWithJSON(w, r, code, map[string]interface{}{
		"status":           status,
		"worker_alive":     health.WorkerAlive,
		"pending_count":    health.PendingCount,
		"processing_count": health.ProcessingCount,
	})
}

// Simulate handles POST /api/test/simulate requests. It returns a sample
// request body for the requested kind so integrators can see the expected
// shape without submitting real work.
func (h *SystemHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "client"
	}

	switch kind {
	case "client":
		shared.RespondWithJSON(w, r, http.StatusOK, RegisterClientsRequest{
			Clients: []ClientRecord{
				{
					InsuredName: "Maria Souza",
					Document:    "12.345.678-9",
					TaxID:       "123.456.789-00",
					Phone:       "11 3333-4444",
					Mobile:      "11 98888-7777",
					BirthDate:   "1985-04-12",
					Address:     "Rua das Flores, 100",
					State:       "SP",
					City:        "Sao Paulo",
					PostalCode:  "01310-100",
					Email:       "maria.souza@example.com",
				},
			},
			Priority: "normal",
		})
	case "vehicle":
		shared.RespondWithJSON(w, r, http.StatusOK, RegisterVehiclesRequest{
			Vehicles: []VehicleRecord{
				{
					Policy: map[string]interface{}{
						"number":     "POL-2026-0001",
						"start_date": "2026-01-01",
						"end_date":   "2027-01-01",
					},
					Vehicle: map[string]interface{}{
						"plate": "ABC1D23",
						"make":  "Fiat",
						"model": "Argo",
						"year":  2024,
					},
					Coverage: map[string]interface{}{
						"kind":       "comprehensive",
						"deductible": 2500.00,
					},
					Client: map[string]interface{}{
						"insured_name": "Maria Souza",
					},
				},
			},
			Priority: "normal",
		})
	default:
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid kind parameter")
	}
}
