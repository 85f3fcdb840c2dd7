package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/insurdesk/autoreg/internal/api"
	apiMiddleware "github.com/insurdesk/autoreg/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.taskService)
	systemHandler := api.NewSystemHandler(app.taskService)

	r.Get("/", systemHandler.Root)
	r.Get("/health", systemHandler.Health)

	r.Route("/api", func(r chi.Router) {
		// Registration endpoints
		r.Post("/clients/register", taskHandler.RegisterClients)
		r.Post("/vehicles/register", taskHandler.RegisterVehicles)

		// Task endpoints
		r.Get("/tasks", taskHandler.ListTasks)
		r.Post("/tasks/purge", taskHandler.PurgeTasks)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Delete("/tasks/{id}", taskHandler.CancelTask)
		r.Get("/tasks/{id}/log", taskHandler.GetTaskLog)

		// Operational endpoints
		r.Get("/stats", taskHandler.GetStats)
		r.Post("/test/simulate", systemHandler.Simulate)
	})

	return r
}
