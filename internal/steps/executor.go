package steps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/images"
)

// Пути внутри контейнера.
const (
	ContainerInputPath  = "/app/input"
	ContainerOutputPath = "/app/output"
	EnvProjectName      = "PROJECT_NAME"
)

var validate = validator.New()

// Launcher запускает контейнер по LaunchSpec.
type Launcher interface {
	Launch(ctx context.Context, spec container.LaunchSpec) container.LaunchResult
}

// Params — параметры запуска шага.
type Params struct {
	// ProjectName — имя проекта (PROJECT_NAME и часть имени контейнера).
	ProjectName string `validate:"required"`

	// InputPath — каталог input на хосте.
	InputPath string `validate:"required"`

	// OutputPath — каталог output на хосте.
	OutputPath string `validate:"required"`

	// LogDir — каталог для лог-файла; пусто — без лога.
	LogDir string

	// TaskID — id task для имени лог-файла.
	TaskID string

	// UID, GID — пользователь контейнера; пусто — значения по умолчанию.
	UID string
	GID string

	// Env — дополнительные переменные (добавляются после конфигурационных).
	Env map[string]string

	// Command — аргументы после образа; nil — из конфигурации шага.
	Command []string
}

// StepConfig — настройки шага из конфигурации.
type StepConfig struct {
	// Env — шаблоны переменных окружения.
	Env map[string]string

	// Command — шаблоны аргументов после образа.
	Command []string
}

// Defaults — общие настройки запуска.
type Defaults struct {
	UID        string
	GID        string
	AutoRemove bool
	Detached   bool
}

// Executor запускает один шаг pipeline.
type Executor struct {
	step     domain.Step
	catalog  *images.Catalog
	launcher Launcher
	names    *NameGenerator
	config   StepConfig
	defaults Defaults
	now      func() time.Time
	logger   *slog.Logger
}

// Step возвращает шаг executor'а.
func (e *Executor) Step() domain.Step {
	return e.step
}

// Prepare строит LaunchSpec без запуска.
func (e *Executor) Prepare(p Params) (container.LaunchSpec, error) {
	// 1. Образ шага — ошибка конфигурации, если его нет
	img, ok := e.catalog.ForStep(e.step)
	if !ok {
		return container.LaunchSpec{}, fmt.Errorf("%w: step %s", ErrImageNotConfigured, e.step)
	}

	// 2. Обязательные параметры
	if err := validate.Struct(p); err != nil {
		return container.LaunchSpec{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	data := TemplateData{
		Project:    p.ProjectName,
		Step:       e.step.String(),
		TaskID:     p.TaskID,
		InputPath:  p.InputPath,
		OutputPath: p.OutputPath,
		Env:        p.Env,
	}

	// 3. Окружение: PROJECT_NAME, затем конфигурация шага, затем параметры вызова
	env := []container.EnvVar{{Key: EnvProjectName, Value: p.ProjectName}}
	configured, err := RenderEnv(e.config.Env, data)
	if err != nil {
		return container.LaunchSpec{}, err
	}
	env = append(env, configured...)
	env = append(env, sortedEnv(p.Env)...)

	// 4. Команда
	command := p.Command
	if command == nil && len(e.config.Command) > 0 {
		command, err = RenderArgs(e.config.Command, data)
		if err != nil {
			return container.LaunchSpec{}, err
		}
	}

	uid, gid := p.UID, p.GID
	if uid == "" || gid == "" {
		uid, gid = e.defaults.UID, e.defaults.GID
	}

	spec := container.LaunchSpec{
		Image: img.Reference,
		Name:  e.names.Next(e.step, p.ProjectName),
		UID:   uid,
		GID:   gid,
		Mounts: []container.Mount{
			{Host: p.InputPath, Container: ContainerInputPath},
			{Host: p.OutputPath, Container: ContainerOutputPath},
		},
		Env:        env,
		Platform:   img.Platform,
		AutoRemove: e.defaults.AutoRemove,
		Detached:   e.defaults.Detached,
		Command:    command,
	}

	if p.LogDir != "" {
		spec.LogFile = LogFilePath(p.LogDir, e.step, p.TaskID, e.now())
	}

	return spec, nil
}

// Run запускает шаг. Ошибки конфигурации возвращаются без запуска контейнера.
func (e *Executor) Run(ctx context.Context, p Params) container.LaunchResult {
	spec, err := e.Prepare(p)
	if err != nil {
		e.logger.Warn("step not launched", "step", e.step.String(), "error", err)
		return container.LaunchResult{Error: err.Error()}
	}

	e.logger.Debug("launching step",
		"step", e.step.String(),
		"image", spec.Image,
		"container", spec.Name,
	)

	return e.launcher.Launch(ctx, spec)
}

func sortedEnv(env map[string]string) []container.EnvVar {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]container.EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, container.EnvVar{Key: k, Value: env[k]})
	}
	return out
}

// ProcessIDs возвращает uid/gid текущего процесса.
// На Windows возвращает пустые строки, и --user не передаётся.
func ProcessIDs() (uid, gid string) {
	u, g := os.Getuid(), os.Getgid()
	if u < 0 || g < 0 {
		return "", ""
	}
	return strconv.Itoa(u), strconv.Itoa(g)
}
