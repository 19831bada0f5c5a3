package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/repo"
)

// ListTasks возвращает список tasks.
// GET /api/v1/tasks?project_id=...&status=...&limit=...&offset=...
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePage(w, r)
	if !ok {
		return
	}

	filter := repo.TaskFilter{Limit: limit, Offset: offset}

	if s := r.URL.Query().Get("project_id"); s != "" {
		projectID, err := uuid.Parse(s)
		if err != nil {
			BadRequest(w, "invalid project_id")
			return
		}
		filter.ProjectID = &projectID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ParseStatus(status)
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
	}

	tasks, err := h.tasks.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// GetTask возвращает task по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid task id")
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, TaskFromDomain(*task))
}

// DeleteTask удаляет task. Контейнер не трогает.
// DELETE /api/v1/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid task id")
	if !ok {
		return
	}

	if HandleRepoError(w, h.logger, h.tasks.Delete(r.Context(), id), "task not found") {
		return
	}

	h.logger.Info("task deleted", "task_id", id)
	NoContent(w)
}

// GetTaskLogs возвращает лог task.
// GET /api/v1/tasks/{id}/logs
//
// Лог-файл отдаётся, если в нём есть вывод logs -f. Файл только с сессией
// старта (follower не дожил до конца контейнера) уступает docker logs;
// если runtime недоступен, отдаётся то, что есть в файле.
func (h *Handler) GetTaskLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid task id")
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	var (
		path    = task.StringParam(domain.ParamLogFile)
		file    string
		hasFile bool
	)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			file, hasFile = string(data), true
		case !errors.Is(err, fs.ErrNotExist):
			InternalError(w, h.logger, err)
			return
		}
	}

	if hasFile && container.HasFollowSession(file) {
		Success(w, LogsResponse{TaskID: task.ID, Source: "file", Path: path, Content: file})
		return
	}

	if name := task.StringParam(domain.ParamContainerName); name != "" && h.containers != nil {
		content, err := h.containers.Logs(r.Context(), name)
		if err == nil {
			Success(w, LogsResponse{TaskID: task.ID, Source: "container", Content: content})
			return
		}
		if !hasFile {
			InternalError(w, h.logger, err)
			return
		}
		h.logger.Warn("container logs unavailable, serving log file", "task_id", task.ID, "error", err)
	}

	if hasFile {
		Success(w, LogsResponse{TaskID: task.ID, Source: "file", Path: path, Content: file})
		return
	}

	NotFound(w, "task has no logs")
}

// StopTask останавливает контейнер task.
// POST /api/v1/tasks/{id}/stop
func (h *Handler) StopTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid task id")
	if !ok {
		return
	}

	if h.canceller != nil {
		if HandleRepoError(w, h.logger, h.canceller.Cancel(r.Context(), id), "task not found") {
			return
		}
	} else {
		task, err := h.tasks.GetByID(r.Context(), id)
		if HandleRepoError(w, h.logger, err, "task not found") {
			return
		}
		name := task.StringParam(domain.ParamContainerName)
		if task.IsFinished() || name == "" || h.containers == nil {
			InvalidState(w, "task has no running container")
			return
		}
		if err := h.containers.Stop(r.Context(), name); err != nil {
			InternalError(w, h.logger, err)
			return
		}
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, TaskFromDomain(*task))
}
