package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/orchestrator"
)

// Project DTOs

// ProjectResponse — ответ с project.
type ProjectResponse struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Status     domain.Status  `json:"status"`
	Parameters map[string]any `json:"parameters,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ProjectFromDomain конвертирует domain.Project в ProjectResponse.
func ProjectFromDomain(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:         p.ID,
		Name:       p.Name,
		Status:     p.Status,
		Parameters: p.Parameters,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID          uuid.UUID      `json:"id"`
	ProjectID   uuid.UUID      `json:"project_id"`
	Step        string         `json:"step"`
	Status      domain.Status  `json:"status"`
	ContainerID string         `json:"container_id,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Step:        t.Step,
		Status:      t.Status,
		ContainerID: t.ContainerID(),
		Parameters:  t.Parameters,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// LogsResponse — логи task.
type LogsResponse struct {
	TaskID uuid.UUID `json:"task_id"`

	// Source — "file" (лог-файл task) или "container" (docker logs).
	Source  string `json:"source"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content"`
}

// Run DTOs

// RunRequest — запрос на запуск шага.
type RunRequest struct {
	ProjectName string            `json:"project_name"`
	InputPath   string            `json:"input_path"`
	OutputPath  string            `json:"output_path"`
	UID         string            `json:"uid,omitempty"`
	GID         string            `json:"gid,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

// Params конвертирует запрос в orchestrator.RunParams.
func (r RunRequest) Params() orchestrator.RunParams {
	return orchestrator.RunParams{
		ProjectName: r.ProjectName,
		InputPath:   r.InputPath,
		OutputPath:  r.OutputPath,
		UID:         r.UID,
		GID:         r.GID,
		Env:         r.Env,
	}
}

// RunResponse — итог workflow.
type RunResponse struct {
	Success     bool             `json:"success"`
	Project     *ProjectResponse `json:"project,omitempty"`
	Task        *TaskResponse    `json:"task,omitempty"`
	ContainerID string           `json:"container_id,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// RunFromResult конвертирует orchestrator.Result в RunResponse.
func RunFromResult(res orchestrator.Result) RunResponse {
	out := RunResponse{
		Success:     res.Success,
		ContainerID: res.ContainerID,
		Error:       res.Error,
	}
	if res.Project != nil {
		p := ProjectFromDomain(*res.Project)
		out.Project = &p
	}
	if res.Task != nil {
		t := TaskFromDomain(*res.Task)
		out.Task = &t
	}
	return out
}

// RuntimeResponse — ответ GET /api/v1/runtime.
type RuntimeResponse struct {
	container.RuntimeStatus
	ConfiguredSteps []string `json:"configured_steps"`
}

// RuntimeFromStatus собирает RuntimeResponse.
func RuntimeFromStatus(status container.RuntimeStatus, configured []domain.Step) RuntimeResponse {
	steps := make([]string, 0, len(configured))
	for _, s := range configured {
		steps = append(steps, s.String())
	}
	return RuntimeResponse{RuntimeStatus: status, ConfiguredSteps: steps}
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
