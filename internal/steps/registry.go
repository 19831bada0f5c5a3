package steps

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/images"
)

// Config — конфигурация Registry.
type Config struct {
	// Catalog — каталог образов (обязательно).
	Catalog *images.Catalog

	// Launcher — запуск контейнеров (обязательно).
	Launcher Launcher

	// Steps — настройки env/command по шагам.
	Steps map[domain.Step]StepConfig

	// UID, GID — пользователь по умолчанию; пусто — uid/gid процесса.
	UID string
	GID string

	// AutoRemove — --rm (в конфигурации по умолчанию включено).
	AutoRemove bool

	// Attached — ждать завершения контейнера вместо -d.
	Attached bool

	// Clock — источник времени для имён (default: time.Now).
	Clock func() time.Time

	// Logger
	Logger *slog.Logger
}

// Registry — executor'ы всех шагов pipeline.
// Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	executors map[domain.Step]*Executor
}

// NewRegistry создаёт executor'ы для шагов 1..5.
// Все executor'ы делят один NameGenerator.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	uid, gid := cfg.UID, cfg.GID
	if uid == "" || gid == "" {
		uid, gid = ProcessIDs()
	}

	defaults := Defaults{
		UID:        uid,
		GID:        gid,
		AutoRemove: cfg.AutoRemove,
		Detached:   !cfg.Attached,
	}

	names := NewNameGenerator(clock)
	r := &Registry{executors: make(map[domain.Step]*Executor, len(domain.AllSteps))}

	for _, step := range domain.AllSteps {
		r.executors[step] = &Executor{
			step:     step,
			catalog:  cfg.Catalog,
			launcher: cfg.Launcher,
			names:    names,
			config:   cfg.Steps[step],
			defaults: defaults,
			now:      clock,
			logger:   logger,
		}
	}

	return r
}

// Get возвращает executor шага.
func (r *Registry) Get(step domain.Step) (*Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executors[step]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	return exec, nil
}

// Has проверяет, есть ли executor для шага.
func (r *Registry) Has(step domain.Step) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[step]
	return ok
}

// Configured возвращает шаги, для которых в каталоге есть образ.
func (r *Registry) Configured() []domain.Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Step
	for _, step := range domain.AllSteps {
		exec, ok := r.executors[step]
		if !ok {
			continue
		}
		if _, ok := exec.catalog.ForStep(step); ok {
			out = append(out, step)
		}
	}
	return out
}

// Run запускает шаг step. Неизвестный шаг возвращается как ошибка в LaunchResult.
func (r *Registry) Run(ctx context.Context, step domain.Step, p Params) container.LaunchResult {
	exec, err := r.Get(step)
	if err != nil {
		return container.LaunchResult{Error: err.Error()}
	}
	return exec.Run(ctx, p)
}
