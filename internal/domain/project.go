package domain

import (
	"time"

	"github.com/google/uuid"
)

// Project — запуск pipeline, инициированный пользователем.
//
// Project создаётся в начале workflow и живёт, пока пользователь
// явно его не удалит. Удаление каскадно удаляет все его tasks.
type Project struct {
	// ID — уникальный идентификатор project.
	ID uuid.UUID `json:"id"`

	// Name — имя проекта, передаётся в контейнер как PROJECT_NAME.
	Name string `json:"name"`

	// Status — текущий статус.
	Status Status `json:"status"`

	// Parameters — произвольные параметры (пути, шаг и т.д.).
	Parameters map[string]any `json:"parameters,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject создаёт project со статусом RUNNING.
func NewProject(name string, params map[string]any) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:         uuid.New(),
		Name:       name,
		Status:     StatusRunning,
		Parameters: cloneParams(params),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsFinished возвращает true, если project в финальном статусе.
func (p *Project) IsFinished() bool {
	return p.Status.IsTerminal()
}

// MarkRunning переводит project из PENDING в RUNNING.
func (p *Project) MarkRunning() {
	if p.Status != StatusPending {
		return
	}
	p.Status = StatusRunning
	p.Touch()
}

// MarkSucceeded переводит project в SUCCESS.
func (p *Project) MarkSucceeded() {
	if p.IsFinished() {
		return
	}
	p.Status = StatusSuccess
	p.Touch()
}

// MarkFailed переводит project в FAILED.
func (p *Project) MarkFailed() {
	if p.IsFinished() {
		return
	}
	p.Status = StatusFailed
	p.Touch()
}

// MergeParameters добавляет значения в Parameters поверх существующих.
func (p *Project) MergeParameters(values map[string]any) {
	p.Parameters = mergeParams(p.Parameters, values)
	p.Touch()
}

// Touch обновляет UpdatedAt.
func (p *Project) Touch() {
	p.UpdatedAt = time.Now().UTC()
}
