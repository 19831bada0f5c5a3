package api

import (
	"net/http"

	"github.com/shaiso/Novoflow/internal/domain"
)

// ListImages проверяет наличие образов каталога.
// GET /api/v1/images
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	statuses := h.images.CheckAll(r.Context())
	List(w, statuses, len(statuses))
}

// PullImages загружает отсутствующие образы по порядку каталога.
// POST /api/v1/images/pull
func (h *Handler) PullImages(w http.ResponseWriter, r *http.Request) {
	results := h.images.DownloadMissing(r.Context(), nil)
	List(w, results, len(results))
}

// GetRuntime возвращает состояние container runtime и шаги с образами.
// GET /api/v1/runtime
func (h *Handler) GetRuntime(w http.ResponseWriter, r *http.Request) {
	var configured []domain.Step
	if h.steps != nil {
		configured = h.steps.Configured()
	}
	Success(w, RuntimeFromStatus(h.runtime.Status(r.Context()), configured))
}

// Healthz — liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
