package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/mq"
	"github.com/shaiso/Novoflow/internal/repo"
	"github.com/shaiso/Novoflow/internal/steps"
	"github.com/shaiso/Novoflow/internal/telemetry"
)

// Подкаталоги task внутри OutputPath.
const (
	outputDirName = "output"
	logDirName    = "log"
)

// cleanupTimeout — лимит на rm -f после неудачного запуска.
const cleanupTimeout = 30 * time.Second

var validate = validator.New()

// StepRunner запускает контейнер шага.
type StepRunner interface {
	Run(ctx context.Context, step domain.Step, p steps.Params) container.LaunchResult
}

// ContainerControl — операции над уже запущенным контейнером.
type ContainerControl interface {
	Wait(ctx context.Context, containerID string) (int, error)
	Stop(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	StopFollow(containerID string) bool
}

// EventPublisher публикует события tasks. *mq.Publisher реализует его.
type EventPublisher interface {
	PublishTaskLaunched(ctx context.Context, payload mq.TaskEventPayload) error
	PublishTaskCompleted(ctx context.Context, payload mq.TaskEventPayload) error
}

// RunParams — параметры запуска шага.
type RunParams struct {
	ProjectName string `json:"project_name" validate:"required"`
	InputPath   string `json:"input_path" validate:"required"`
	OutputPath  string `json:"output_path" validate:"required"`

	// UID, GID — пользователь контейнера; пусто — значения по умолчанию.
	UID string `json:"uid,omitempty"`
	GID string `json:"gid,omitempty"`

	// Env — дополнительные переменные окружения контейнера.
	Env map[string]string `json:"env,omitempty"`
}

// Result — итог Run.
// Project и Task — снимки записей на момент возврата (могут быть nil,
// если до создания записи дело не дошло).
type Result struct {
	Success     bool            `json:"success"`
	Project     *domain.Project `json:"project,omitempty"`
	Task        *domain.Task    `json:"task,omitempty"`
	ContainerID string          `json:"container_id,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Orchestrator проводит workflow одного шага.
type Orchestrator struct {
	projects   repo.ProjectStore
	tasks      repo.TaskStore
	steps      StepRunner
	containers ContainerControl
	watcher    *Watcher
	events     EventPublisher
	logger     *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Хранилища (обязательно)
	Projects repo.ProjectStore
	Tasks    repo.TaskStore

	// Steps — executor'ы шагов (обязательно).
	Steps StepRunner

	// Containers — для rm -f после неудачного запуска. nil — без очистки.
	Containers ContainerControl

	// Watcher — наблюдение за запущенными контейнерами. nil — статус
	// остаётся running до внешнего обновления.
	Watcher *Watcher

	// Events — публикация task.launched. nil — без публикации.
	Events EventPublisher

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		projects:   cfg.Projects,
		tasks:      cfg.Tasks,
		steps:      cfg.Steps,
		containers: cfg.Containers,
		watcher:    cfg.Watcher,
		events:     cfg.Events,
		logger:     logger,
	}
}

// Validate проверяет параметры до создания записей.
func Validate(step domain.Step, p RunParams) error {
	if !step.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidParams, domain.ErrUnknownStep)
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Run выполняет workflow шага: project → task → каталоги → контейнер.
//
// Ошибки не возвращаются как error: любой сбой отражается в Result
// и в статусах созданных записей.
func (o *Orchestrator) Run(ctx context.Context, step domain.Step, p RunParams) Result {
	if err := Validate(step, p); err != nil {
		return Result{Error: err.Error()}
	}

	logger := o.logger.With("step", step.String(), "project", p.ProjectName)

	// 1. Project
	project := domain.NewProject(p.ProjectName, map[string]any{
		domain.ParamInputPath:  p.InputPath,
		domain.ParamOutputPath: p.OutputPath,
		domain.ParamStep:       step.String(),
	})
	if err := o.projects.Create(ctx, project); err != nil {
		return o.fail(ctx, step, nil, nil, fmt.Errorf("create project: %w", err))
	}
	logger = telemetry.WithProjectID(logger, project.ID.String())

	// 2. Task
	task := domain.NewTask(project.ID, step, map[string]any{
		domain.ParamInputPath: p.InputPath,
	})
	if err := o.tasks.Create(ctx, task); err != nil {
		return o.fail(ctx, step, project, nil, fmt.Errorf("create task: %w", err))
	}
	logger = telemetry.WithTaskID(logger, task.ID.String())
	logger.Info("task started")

	// 3. Каталоги output и log
	base := filepath.Join(p.OutputPath, task.ID.String())
	outputDir := filepath.Join(base, outputDirName)
	logDir := filepath.Join(base, logDirName)
	for _, dir := range []string{outputDir, logDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return o.fail(ctx, step, project, task, fmt.Errorf("create %s: %w", dir, err))
		}
	}

	task.MergeParameters(map[string]any{
		domain.ParamOutputPath: outputDir,
		domain.ParamLogPath:    logDir,
	})
	if err := o.tasks.Update(ctx, task); err != nil {
		return o.fail(ctx, step, project, task, fmt.Errorf("update task: %w", err))
	}

	fresh, err := o.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return o.fail(ctx, step, project, task, fmt.Errorf("reload task: %w", err))
	}
	task = fresh

	// 4. Контейнер
	res := o.steps.Run(ctx, step, steps.Params{
		ProjectName: p.ProjectName,
		InputPath:   p.InputPath,
		OutputPath:  outputDir,
		LogDir:      logDir,
		TaskID:      task.ID.String(),
		UID:         p.UID,
		GID:         p.GID,
		Env:         p.Env,
	})

	// 5a. Запуск не удался
	if !res.Success {
		logger.Warn("step launch failed", "error", res.Error)
		o.cleanupContainer(ctx, res.ContainerName)
		return o.fail(ctx, step, project, task, errors.New(res.Error))
	}

	// 5b. Контейнер запущен
	task.MergeParameters(map[string]any{
		domain.ParamContainerID:   res.ContainerID,
		domain.ParamContainerName: res.ContainerName,
		domain.ParamLogFile:       res.LogFilePath,
	})

	// Без -d контейнер уже завершился с кодом 0
	attached := !res.Detached
	if attached {
		task.MarkSucceeded()
	}

	if err := o.tasks.Update(ctx, task); err != nil {
		o.cleanupContainer(ctx, res.ContainerName)
		return o.fail(ctx, step, project, task, fmt.Errorf("update task: %w", err))
	}

	if attached {
		project.MarkSucceeded()
		if err := o.projects.Update(context.WithoutCancel(ctx), project); err != nil {
			logger.Error("failed to update project", "error", err)
		}
		telemetry.TaskDuration.WithLabelValues(task.Step, string(task.Status)).
			Observe(task.UpdatedAt.Sub(task.CreatedAt).Seconds())
	}

	telemetry.WorkflowRuns.WithLabelValues(step.String(), telemetry.ResultSuccess).Inc()
	logger.Info("container launched",
		"container_id", res.ContainerID,
		"container", res.ContainerName,
	)

	o.publishLaunched(ctx, task)

	if !attached && o.watcher != nil {
		o.watcher.Watch(task)
	}

	return Result{
		Success:     true,
		Project:     project,
		Task:        task,
		ContainerID: res.ContainerID,
	}
}

// fail помечает существующие записи failed и возвращает неуспешный Result.
// Записи делаются с контекстом без отмены: отменённый вызов всё равно
// оставляет согласованные статусы.
func (o *Orchestrator) fail(ctx context.Context, step domain.Step, project *domain.Project, task *domain.Task, cause error) Result {
	cctx := context.WithoutCancel(ctx)
	msg := cause.Error()

	o.logger.Error("workflow failed", "step", step.String(), "error", msg)
	telemetry.WorkflowRuns.WithLabelValues(step.String(), telemetry.ResultFailed).Inc()

	if task != nil {
		task.MarkFailed(msg)
		if err := o.tasks.Update(cctx, task); err != nil {
			o.logger.Error("failed to mark task failed", "task_id", task.ID, "error", err)
		}
	}
	if project != nil {
		project.MarkFailed()
		if err := o.projects.Update(cctx, project); err != nil {
			o.logger.Error("failed to mark project failed", "project_id", project.ID, "error", err)
		}
	}

	return Result{
		Success: false,
		Project: project,
		Task:    task,
		Error:   msg,
	}
}

// cleanupContainer удаляет контейнер, если он успел создаться.
func (o *Orchestrator) cleanupContainer(ctx context.Context, name string) {
	if o.containers == nil || name == "" {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := o.containers.Remove(cctx, name); err != nil {
		o.logger.Debug("container cleanup skipped", "container", name, "error", err)
	}
}

func (o *Orchestrator) publishLaunched(ctx context.Context, task *domain.Task) {
	if o.events == nil {
		return
	}

	err := o.events.PublishTaskLaunched(ctx, mq.TaskEventPayload{
		TaskID:      task.ID,
		ProjectID:   task.ProjectID,
		Step:        task.Step,
		Status:      task.Status.String(),
		ContainerID: task.ContainerID(),
	})
	if err != nil {
		o.logger.Warn("failed to publish task launched", "task_id", task.ID, "error", err)
	}
}
