package container

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Novoflow/internal/telemetry"
)

const (
	eventStart  = "Container start"
	eventFollow = "Log follow"
)

// LaunchResult — результат запуска контейнера.
type LaunchResult struct {
	// Success — runtime вернул код 0.
	Success bool `json:"success"`

	// Detached — контейнер запускался с -d и ещё работает.
	// Без -d успешный Launch означает, что workload уже завершился с кодом 0.
	Detached bool `json:"detached"`

	// ContainerID — id контейнера (detached режим).
	ContainerID string `json:"container_id,omitempty"`

	// ContainerName — имя, под которым контейнер запускался.
	ContainerName string `json:"container_name,omitempty"`

	// Error — stderr runtime или описание ошибки.
	Error string `json:"error,omitempty"`

	// LogFilePath — путь к лог-файлу, если он был запрошен.
	LogFilePath string `json:"log_file_path,omitempty"`
}

// Launcher запускает контейнеры и управляет их жизненным циклом.
type Launcher struct {
	runner  Runner
	follows *Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// LauncherConfig — конфигурация Launcher.
type LauncherConfig struct {
	// Runner — реализация запуска процессов (обязательно).
	Runner Runner

	// Clock — источник времени для маркеров лога (default: time.Now).
	Clock func() time.Time

	// Logger
	Logger *slog.Logger
}

// NewLauncher создаёт Launcher.
func NewLauncher(cfg LauncherConfig) *Launcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Launcher{
		runner:  cfg.Runner,
		follows: NewTracker(),
		logger:  logger,
		now:     clock,
	}
}

// Runner возвращает используемый Runner.
func (l *Launcher) Runner() Runner {
	return l.runner
}

// Launch запускает контейнер по spec.
//
// Если задан LogFile, в него пишутся маркеры сессии и вывод docker run,
// а после успешного detached старта — вывод logs -f в фоне.
// Ожидаемые ошибки возвращаются в LaunchResult.Error.
func (l *Launcher) Launch(ctx context.Context, spec LaunchSpec) LaunchResult {
	result := LaunchResult{ContainerName: spec.Name, LogFilePath: spec.LogFile, Detached: spec.Detached}

	args, err := BuildArgs(spec)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	logger := telemetry.WithContainer(l.logger, spec.Name, "")
	command := CommandString(l.runner.Binary(), args)

	// 1. Открываем лог-файл (каталог создаётся при необходимости)
	var sink *LogSink
	var onLine LineFunc
	if spec.LogFile != "" {
		sink, err = OpenLogSink(spec.LogFile)
		if err != nil {
			result.Error = err.Error()
			telemetry.ContainerLaunches.WithLabelValues(telemetry.ResultFailed).Inc()
			return result
		}
		sink.Begin(eventStart, spec.Name, command, l.now())
		onLine = sink.Line
	}

	logger.Info("launching container", "command", command)

	// 2. Запускаем
	res := l.runner.Start(ctx, onLine, args...)

	// 3. Закрываем сессию в логе независимо от результата
	if sink != nil {
		if res.ExitCode < 0 {
			sink.Error(res.Error)
		}
		sink.End(res.ExitCode)
		if err := sink.Close(); err != nil {
			logger.Warn("failed to close log file", "path", spec.LogFile, "error", err)
		}
	}

	if res.Success && spec.Detached && res.ID == "" {
		res.Success = false
		res.Error = ErrNoContainerID.Error()
	}

	telemetry.ContainerLaunches.WithLabelValues(telemetry.ResultLabel(res.Success)).Inc()

	if !res.Success {
		logger.Warn("container launch failed", "exit_code", res.ExitCode, "error", res.Error)
		result.Error = res.Error
		return result
	}

	result.Success = true
	if spec.Detached {
		result.ContainerID = res.ID
	}

	logger.Info("container launched", "container_id", result.ContainerID)

	// 4. Фоновый logs -f
	if spec.Detached && spec.LogFile != "" {
		l.follow(result.ContainerID, spec.Name, spec.LogFile)
	}

	return result
}

// follow запускает logs -f для контейнера с дозаписью в logFile.
// Не наследует отмену вызывающего контекста: поток живёт до конца логов
// контейнера, StopFollow или Close.
func (l *Launcher) follow(id, name, logFile string) {
	logger := telemetry.WithContainer(l.logger, name, id)

	l.follows.Go(context.Background(), id, func(ctx context.Context) {
		telemetry.ActiveLogFollowers.Inc()
		defer telemetry.ActiveLogFollowers.Dec()

		sink, err := OpenLogSink(logFile)
		if err != nil {
			logger.Warn("log follow not started", "error", err)
			return
		}
		defer sink.Close()

		args := []string{"logs", "-f", id}
		sink.Begin(eventFollow, name, CommandString(l.runner.Binary(), args), l.now())

		res := l.runner.Stream(ctx, sink.Line, args...)
		if res.ExitCode < 0 {
			sink.Error(res.Error)
		}
		sink.End(res.ExitCode)

		logger.Debug("log follow finished", "exit_code", res.ExitCode)
	})
}

// StopFollow останавливает фоновый logs -f для контейнера.
func (l *Launcher) StopFollow(containerID string) bool {
	return l.follows.Stop(containerID)
}

// Following проверяет, идёт ли запись логов контейнера.
func (l *Launcher) Following(containerID string) bool {
	return l.follows.Has(containerID)
}

// Close останавливает все фоновые logs -f.
func (l *Launcher) Close() {
	l.follows.Close()
}

// Stop останавливает контейнер (docker stop).
func (l *Launcher) Stop(ctx context.Context, name string) error {
	res := l.runner.Run(ctx, "stop", name)
	if !res.Success {
		return fmt.Errorf("%w: stop %s: %s", ErrCommandFailed, name, res.Error)
	}
	l.logger.Info("container stopped", "container", name)
	return nil
}

// Remove принудительно удаляет контейнер (docker rm -f).
func (l *Launcher) Remove(ctx context.Context, name string) error {
	res := l.runner.Run(ctx, "rm", "-f", name)
	if !res.Success {
		return fmt.Errorf("%w: rm %s: %s", ErrCommandFailed, name, res.Error)
	}
	return nil
}

// Logs возвращает stdout и stderr контейнера (docker logs).
func (l *Launcher) Logs(ctx context.Context, name string) (string, error) {
	res := l.runner.Run(ctx, "logs", name)
	if !res.Success {
		return "", fmt.Errorf("%w: logs %s: %s", ErrCommandFailed, name, res.Error)
	}
	return res.Output(), nil
}

// Wait блокируется до завершения контейнера и возвращает его exit code.
func (l *Launcher) Wait(ctx context.Context, containerID string) (int, error) {
	res := l.runner.Run(ctx, "wait", containerID)
	if !res.Success {
		return 0, fmt.Errorf("%w: %s", ErrExitCodeUnavailable, res.Error)
	}

	code, err := strconv.Atoi(firstLine(res.Stdout))
	if err != nil {
		return 0, fmt.Errorf("%w: unexpected output %q", ErrExitCodeUnavailable, strings.TrimSpace(res.Stdout))
	}
	return code, nil
}
