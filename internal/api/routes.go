package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Projects
	mux.Handle("GET /api/v1/projects", chain(http.HandlerFunc(h.ListProjects)))
	mux.Handle("GET /api/v1/projects/{id}", chain(http.HandlerFunc(h.GetProject)))
	mux.Handle("DELETE /api/v1/projects/{id}", chain(http.HandlerFunc(h.DeleteProject)))
	mux.Handle("GET /api/v1/projects/{id}/tasks", chain(http.HandlerFunc(h.ListProjectTasks)))

	// Tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))
	mux.Handle("DELETE /api/v1/tasks/{id}", chain(http.HandlerFunc(h.DeleteTask)))
	mux.Handle("GET /api/v1/tasks/{id}/logs", chain(http.HandlerFunc(h.GetTaskLogs)))
	mux.Handle("POST /api/v1/tasks/{id}/stop", chain(http.HandlerFunc(h.StopTask)))

	// Workflow
	mux.Handle("POST /api/v1/steps/{step}/runs", chain(http.HandlerFunc(h.RunStep)))

	// Runtime и образы
	mux.Handle("GET /api/v1/images", chain(http.HandlerFunc(h.ListImages)))
	mux.Handle("POST /api/v1/images/pull", chain(http.HandlerFunc(h.PullImages)))
	mux.Handle("GET /api/v1/runtime", chain(http.HandlerFunc(h.GetRuntime)))

	// Служебные
	mux.Handle("GET /healthz", Recovery(h.logger)(http.HandlerFunc(h.Healthz)))
	mux.Handle("GET /metrics", promhttp.Handler())
}
