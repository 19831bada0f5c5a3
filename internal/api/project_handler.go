package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/repo"
)

// ListProjects возвращает список projects.
// GET /api/v1/projects?status=...&limit=...&offset=...
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePage(w, r)
	if !ok {
		return
	}

	filter := repo.ProjectFilter{Limit: limit, Offset: offset}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ParseStatus(status)
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
	}

	projects, err := h.projects.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ProjectResponse, len(projects))
	for i, p := range projects {
		result[i] = ProjectFromDomain(p)
	}

	List(w, result, len(result))
}

// GetProject возвращает project по ID.
// GET /api/v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid project id")
	if !ok {
		return
	}

	project, err := h.projects.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "project not found") {
		return
	}

	Success(w, ProjectFromDomain(*project))
}

// DeleteProject удаляет project вместе с его tasks.
// DELETE /api/v1/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid project id")
	if !ok {
		return
	}

	if HandleRepoError(w, h.logger, h.projects.Delete(r.Context(), id), "project not found") {
		return
	}

	h.logger.Info("project deleted", "project_id", id)
	NoContent(w)
}

// ListProjectTasks возвращает tasks project в порядке создания.
// GET /api/v1/projects/{id}/tasks
func (h *Handler) ListProjectTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid project id")
	if !ok {
		return
	}

	// 404 для несуществующего project, а не пустой список
	if _, err := h.projects.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "project not found") {
		return
	}

	tasks, err := h.tasks.ListByProject(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// pathID разбирает {id} из пути. При ошибке отвечает 400.
func pathID(w http.ResponseWriter, r *http.Request, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, msg)
		return uuid.Nil, false
	}
	return id, true
}

// parsePage разбирает limit и offset. Пустой limit — repo.DefaultListLimit.
func parsePage(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = repo.DefaultListLimit

	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			BadRequest(w, "invalid limit")
			return 0, 0, false
		}
		limit = v
	}

	if s := r.URL.Query().Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			BadRequest(w, "invalid offset")
			return 0, 0, false
		}
		offset = v
	}

	return limit, offset, true
}
