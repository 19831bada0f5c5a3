package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Novoflow/internal/domain"
)

// ProjectStore — хранилище projects.
type ProjectStore interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
	List(ctx context.Context, filter ProjectFilter) ([]domain.Project, error)

	// Delete удаляет project вместе с его tasks.
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaskStore — хранилище tasks.
type TaskStore interface {
	Create(ctx context.Context, t *domain.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProjectFilter — фильтр для списка projects.
type ProjectFilter struct {
	Status domain.Status
	Limit  int
	Offset int
}

// TaskFilter — фильтр для списка tasks.
type TaskFilter struct {
	ProjectID *uuid.UUID
	Status    domain.Status
	Limit     int
	Offset    int
}

// DefaultListLimit — лимит списка, если он не задан.
const DefaultListLimit = 100

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

var (
	_ ProjectStore = (*ProjectRepo)(nil)
	_ TaskStore    = (*TaskRepo)(nil)
	_ ProjectStore = (*BadgerProjectRepo)(nil)
	_ TaskStore    = (*BadgerTaskRepo)(nil)
)
