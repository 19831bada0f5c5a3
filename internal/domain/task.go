package domain

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Ключи Task.Parameters, которые заполняет workflow.
const (
	ParamInputPath     = "inputPath"
	ParamOutputPath    = "outputPath"
	ParamLogPath       = "logPath"
	ParamContainerID   = "containerId"
	ParamContainerName = "containerName"
	ParamLogFile       = "logFile"
	ParamError         = "error"
	ParamExitCode      = "exitCode"
	ParamStep          = "step"
)

// Task — выполнение одного шага pipeline внутри project.
//
// Parameters растут по ходу workflow: сначала только inputPath,
// затем пути output/log, затем containerId, а при ошибке — error.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// ProjectID — ссылка на родительский project.
	ProjectID uuid.UUID `json:"project_id"`

	// Step — номер шага: "1".."5".
	Step string `json:"step"`

	// Status — текущий статус task.
	Status Status `json:"status"`

	// Parameters — параметры выполнения.
	Parameters map[string]any `json:"parameters,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — обновляется при каждом изменении.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask создаёт task со статусом RUNNING.
func NewTask(projectID uuid.UUID, step Step, params map[string]any) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Step:       step.String(),
		Status:     StatusRunning,
		Parameters: cloneParams(params),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsFinished возвращает true, если task завершён.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит task из PENDING в RUNNING.
func (t *Task) MarkRunning() {
	if t.Status != StatusPending {
		return
	}
	t.Status = StatusRunning
	t.Touch()
}

// MarkSucceeded переводит task в SUCCESS.
func (t *Task) MarkSucceeded() {
	if t.IsFinished() {
		return
	}
	t.Status = StatusSuccess
	t.Touch()
}

// MarkFailed переводит task в FAILED и записывает ошибку в параметры.
func (t *Task) MarkFailed(errMsg string) {
	if t.IsFinished() {
		return
	}
	t.Status = StatusFailed
	if errMsg != "" {
		t.Parameters = mergeParams(t.Parameters, map[string]any{ParamError: errMsg})
	}
	t.Touch()
}

// MergeParameters добавляет значения в Parameters поверх существующих.
func (t *Task) MergeParameters(values map[string]any) {
	t.Parameters = mergeParams(t.Parameters, values)
	t.Touch()
}

// Touch обновляет UpdatedAt.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

// StringParam возвращает строковый параметр или "".
func (t *Task) StringParam(key string) string {
	v, ok := t.Parameters[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ContainerID возвращает id контейнера, если он уже запущен.
func (t *Task) ContainerID() string {
	return t.StringParam(ParamContainerID)
}

// ParsedStep возвращает Step по строковому тегу.
func (t *Task) ParsedStep() (Step, error) {
	return ParseStep(t.Step)
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	maps.Copy(out, params)
	return out
}

func mergeParams(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	maps.Copy(dst, src)
	return dst
}
