package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/mq"
	"github.com/shaiso/Novoflow/internal/repo"
	"github.com/shaiso/Novoflow/internal/telemetry"
)

// recoverBatchSize — сколько running tasks поднимать за один Recover.
const recoverBatchSize = 1000

// removeTimeout — лимит на rm -f после docker wait.
const removeTimeout = 30 * time.Second

// Watcher ждёт завершения контейнеров и записывает финальный статус task.
//
// На каждый контейнер — одна горутина с docker wait, учтённая в Tracker
// под id task. Stop прерывает ожидание без записи статуса: такие tasks
// остаются running и подхватываются Recover при следующем старте.
//
// С RemoveAfterWait контейнеры запускаются без --rm, и Watcher сам
// удаляет их после docker wait.
type Watcher struct {
	projects   repo.ProjectStore
	tasks      repo.TaskStore
	containers ContainerControl
	events     EventPublisher
	remove     bool
	tracker    *container.Tracker
	logger     *slog.Logger

	mu   sync.Mutex
	done map[uuid.UUID]chan struct{}
}

// WatcherConfig — конфигурация Watcher.
type WatcherConfig struct {
	Projects   repo.ProjectStore
	Tasks      repo.TaskStore
	Containers ContainerControl

	// Events — публикация task.completed. nil — без публикации.
	Events EventPublisher

	// RemoveAfterWait — docker rm -f после получения exit code.
	RemoveAfterWait bool

	// Logger
	Logger *slog.Logger
}

// NewWatcher создаёт Watcher.
func NewWatcher(cfg WatcherConfig) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		projects:   cfg.Projects,
		tasks:      cfg.Tasks,
		containers: cfg.Containers,
		events:     cfg.Events,
		remove:     cfg.RemoveAfterWait,
		tracker:    container.NewTracker(),
		logger:     logger,
		done:       make(map[uuid.UUID]chan struct{}),
	}
}

// Watch начинает ожидание контейнера task.
// Возвращает false, если у task нет контейнера, наблюдение уже идёт
// или Watcher остановлен.
func (w *Watcher) Watch(task *domain.Task) bool {
	containerID := task.ContainerID()
	if containerID == "" {
		return false
	}

	taskID := task.ID
	done := make(chan struct{})

	w.mu.Lock()
	if _, ok := w.done[taskID]; ok {
		w.mu.Unlock()
		return false
	}
	w.done[taskID] = done
	w.mu.Unlock()

	started := w.tracker.Go(context.Background(), taskID.String(), func(ctx context.Context) {
		defer close(done)
		defer w.forget(taskID, done)
		w.wait(ctx, taskID, containerID)
	})
	if !started {
		w.forget(taskID, done)
		close(done)
		return false
	}
	return true
}

// Watching проверяет, ждёт ли Watcher контейнер task.
func (w *Watcher) Watching(taskID uuid.UUID) bool {
	return w.tracker.Has(taskID.String())
}

// Done возвращает канал, который закрывается после окончания наблюдения
// за task. Для task без наблюдения канал уже закрыт.
func (w *Watcher) Done(taskID uuid.UUID) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ch, ok := w.done[taskID]; ok {
		return ch
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Len возвращает количество активных наблюдений.
func (w *Watcher) Len() int {
	return w.tracker.Len()
}

// Recover подключает Watcher ко всем running tasks с контейнером.
// Возвращает количество подключённых.
func (w *Watcher) Recover(ctx context.Context) (int, error) {
	tasks, err := w.tasks.List(ctx, repo.TaskFilter{
		Status: domain.StatusRunning,
		Limit:  recoverBatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list running tasks: %w", err)
	}

	attached := 0
	for i := range tasks {
		task := &tasks[i]
		if w.Watching(task.ID) {
			continue
		}
		if w.Watch(task) {
			attached++
		}
	}

	if attached > 0 {
		w.logger.Info("watchers recovered", "count", attached)
	}
	return attached, nil
}

// Cancel останавливает контейнер task (docker stop).
// Финальный статус записывает горутина Watch; если наблюдения нет,
// task и project помечаются failed сразу.
func (w *Watcher) Cancel(ctx context.Context, taskID uuid.UUID) error {
	task, err := w.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.IsFinished() {
		return fmt.Errorf("%w: %s", ErrTaskFinished, task.Status)
	}

	containerID := task.ContainerID()
	if containerID == "" {
		return ErrNoContainer
	}

	if err := w.containers.Stop(ctx, containerID); err != nil {
		return err
	}

	if !w.Watching(taskID) {
		cctx := context.WithoutCancel(ctx)
		w.finish(cctx, taskID, nil, errors.New("container stopped"))
		w.removeContainer(cctx, containerID, w.logger)
	}
	return nil
}

func (w *Watcher) forget(taskID uuid.UUID, done chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done[taskID] == done {
		delete(w.done, taskID)
	}
}

// Stop прерывает все ожидания и дожидается горутин.
func (w *Watcher) Stop() {
	w.tracker.Close()
}

func (w *Watcher) wait(ctx context.Context, taskID uuid.UUID, containerID string) {
	telemetry.ActiveWatchers.Inc()
	defer telemetry.ActiveWatchers.Dec()

	logger := telemetry.WithTaskID(w.logger, taskID.String()).With("container_id", containerID)
	logger.Debug("watching container")

	code, err := w.containers.Wait(ctx, containerID)
	if ctx.Err() != nil {
		logger.Debug("watch interrupted")
		return
	}

	// Поток logs -f больше не нужен
	w.containers.StopFollow(containerID)

	fctx := context.WithoutCancel(ctx)
	if err != nil {
		if !errors.Is(err, container.ErrExitCodeUnavailable) {
			err = fmt.Errorf("%w: %v", container.ErrExitCodeUnavailable, err)
		}
		w.finish(fctx, taskID, nil, err)
	} else {
		w.finish(fctx, taskID, &code, nil)
	}

	w.removeContainer(fctx, containerID, logger)
}

// removeContainer удаляет завершившийся контейнер, если включён RemoveAfterWait.
func (w *Watcher) removeContainer(ctx context.Context, containerID string, logger *slog.Logger) {
	if !w.remove {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, removeTimeout)
	defer cancel()

	if err := w.containers.Remove(rctx, containerID); err != nil {
		logger.Warn("failed to remove container", "container_id", containerID, "error", err)
		return
	}
	logger.Debug("container removed", "container_id", containerID)
}

// finish записывает финальный статус task и project.
// code == nil — exit code неизвестен, cause обязателен.
func (w *Watcher) finish(ctx context.Context, taskID uuid.UUID, code *int, cause error) {
	logger := telemetry.WithTaskID(w.logger, taskID.String())

	task, err := w.tasks.GetByID(ctx, taskID)
	if err != nil {
		logger.Error("failed to load task", "error", err)
		return
	}
	if task.IsFinished() {
		return
	}

	switch {
	case code != nil && *code == 0:
		task.MergeParameters(map[string]any{domain.ParamExitCode: 0})
		task.MarkSucceeded()
	case code != nil:
		task.MergeParameters(map[string]any{domain.ParamExitCode: *code})
		task.MarkFailed(fmt.Sprintf("container exited with code %d", *code))
	default:
		task.MarkFailed(cause.Error())
	}

	if err := w.tasks.Update(ctx, task); err != nil {
		logger.Error("failed to update task", "error", err)
		return
	}

	project, err := w.projects.GetByID(ctx, task.ProjectID)
	if err != nil {
		logger.Error("failed to load project", "project_id", task.ProjectID, "error", err)
	} else {
		if task.Status == domain.StatusSuccess {
			project.MarkSucceeded()
		} else {
			project.MarkFailed()
		}
		if err := w.projects.Update(ctx, project); err != nil {
			logger.Error("failed to update project", "project_id", project.ID, "error", err)
		}
	}

	telemetry.TaskDuration.WithLabelValues(task.Step, task.Status.String()).
		Observe(task.UpdatedAt.Sub(task.CreatedAt).Seconds())

	logger.Info("task finished",
		"status", task.Status,
		"error", task.StringParam(domain.ParamError),
	)

	if w.events != nil {
		err := w.events.PublishTaskCompleted(ctx, mq.TaskEventPayload{
			TaskID:      task.ID,
			ProjectID:   task.ProjectID,
			Step:        task.Step,
			Status:      task.Status.String(),
			ContainerID: task.ContainerID(),
			ExitCode:    code,
			Error:       task.StringParam(domain.ParamError),
		})
		if err != nil {
			logger.Warn("failed to publish task completed", "error", err)
		}
	}
}
