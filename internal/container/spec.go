package container

import (
	"fmt"
)

// Mount — bind mount host:container.
type Mount struct {
	Host      string `json:"host"`
	Container string `json:"container"`
}

// String возвращает значение для -v.
func (m Mount) String() string {
	return m.Host + ":" + m.Container
}

// EnvVar — переменная окружения контейнера.
// Переменные передаются списком, чтобы порядок -e был детерминированным.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// String возвращает значение для -e.
func (e EnvVar) String() string {
	return e.Key + "=" + e.Value
}

// LaunchSpec — параметры одного запуска контейнера.
type LaunchSpec struct {
	// Image — ссылка на образ.
	Image string

	// Name — уникальное имя контейнера.
	Name string

	// UID, GID — пользователь внутри контейнера; --user только если заданы оба.
	UID string
	GID string

	// Mounts — bind mounts в порядке передачи.
	Mounts []Mount

	// Env — переменные окружения в порядке передачи.
	Env []EnvVar

	// Platform — например "linux/amd64".
	Platform string

	// AutoRemove — --rm.
	AutoRemove bool

	// Detached — -d, не ждать завершения workload.
	Detached bool

	// LogFile — путь к лог-файлу; пусто — без лога.
	LogFile string

	// Command — аргументы после имени образа.
	Command []string
}

// Validate проверяет обязательные поля.
func (s LaunchSpec) Validate() error {
	if s.Image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidSpec)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: container name is required", ErrInvalidSpec)
	}
	return nil
}

// BuildArgs строит argv для docker run.
//
// Порядок фиксирован: run, -d, --rm, --name, --user, --platform,
// -v (в порядке Mounts), -e (в порядке Env), образ, Command.
// Runtime порядок не важен, но одинаковая строка вызова нужна для логов и тестов.
func BuildArgs(spec LaunchSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	args := make([]string, 0, 8+2*len(spec.Mounts)+2*len(spec.Env)+len(spec.Command))
	args = append(args, "run")

	if spec.Detached {
		args = append(args, "-d")
	}
	if spec.AutoRemove {
		args = append(args, "--rm")
	}

	args = append(args, "--name", spec.Name)

	if spec.UID != "" && spec.GID != "" {
		args = append(args, "--user", spec.UID+":"+spec.GID)
	}
	if spec.Platform != "" {
		args = append(args, "--platform", spec.Platform)
	}

	for _, m := range spec.Mounts {
		args = append(args, "-v", m.String())
	}
	for _, e := range spec.Env {
		args = append(args, "-e", e.String())
	}

	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	return args, nil
}
