package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/images"
	"github.com/shaiso/Novoflow/internal/orchestrator"
	"github.com/shaiso/Novoflow/internal/repo"
)

// WorkflowRunner запускает workflow шага (*orchestrator.Orchestrator).
type WorkflowRunner interface {
	Run(ctx context.Context, step domain.Step, p orchestrator.RunParams) orchestrator.Result
}

// TaskCanceller останавливает контейнер task и фиксирует статус (*orchestrator.Watcher).
type TaskCanceller interface {
	Cancel(ctx context.Context, taskID uuid.UUID) error
}

// Containers — прямые команды runtime (*container.Launcher).
type Containers interface {
	Stop(ctx context.Context, name string) error
	Logs(ctx context.Context, name string) (string, error)
}

// ImageService — проверка и загрузка образов каталога (*images.Manager).
type ImageService interface {
	CheckAll(ctx context.Context) []images.ImageStatus
	DownloadMissing(ctx context.Context, onProgress images.ProgressFunc) []images.PullResult
}

// RuntimeChecker — состояние runtime (*container.RuntimeChecker).
type RuntimeChecker interface {
	Status(ctx context.Context) container.RuntimeStatus
}

// StepCatalog — шаги, для которых настроен образ (*steps.Registry).
type StepCatalog interface {
	Configured() []domain.Step
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	projects   repo.ProjectStore
	tasks      repo.TaskStore
	workflows  WorkflowRunner
	canceller  TaskCanceller
	containers Containers
	images     ImageService
	runtime    RuntimeChecker
	steps      StepCatalog
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Projects  repo.ProjectStore
	Tasks     repo.TaskStore
	Workflows WorkflowRunner

	// Canceller — опционально; без него stop только останавливает
	// контейнер, а статус обновит тот, кто следит за ним.
	Canceller TaskCanceller

	Containers Containers
	Images     ImageService
	Runtime    RuntimeChecker

	// Steps — опционально; без него configured_steps пуст.
	Steps StepCatalog

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		projects:   cfg.Projects,
		tasks:      cfg.Tasks,
		workflows:  cfg.Workflows,
		canceller:  cfg.Canceller,
		containers: cfg.Containers,
		images:     cfg.Images,
		runtime:    cfg.Runtime,
		steps:      cfg.Steps,
		logger:     logger,
	}
}
