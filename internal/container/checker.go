package container

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Фразы, по которым docker сообщает о недоступном daemon.
var daemonDownPatterns = []string{
	"cannot connect to the docker daemon",
	"is the docker daemon running",
	"error during connect",
}

// Фразы, по которым ОС сообщает об отсутствии бинарника.
var notInstalledPatterns = []string{
	"executable file not found",
	"no such file or directory",
	"not recognized as an internal or external command",
}

// RuntimeStatus — состояние container runtime на машине.
type RuntimeStatus struct {
	Installed     bool   `json:"installed"`
	Path          string `json:"path,omitempty"`
	Version       string `json:"version,omitempty"`
	DaemonRunning bool   `json:"daemon_running"`
	Error         string `json:"error,omitempty"`
}

// RuntimeChecker проверяет наличие runtime и доступность daemon.
type RuntimeChecker struct {
	runner Runner
	goos   string
}

// NewRuntimeChecker создаёт RuntimeChecker.
func NewRuntimeChecker(runner Runner) *RuntimeChecker {
	return &RuntimeChecker{runner: runner, goos: runtime.GOOS}
}

// Installed ищет бинарник (which/where) и возвращает путь и версию.
func (p *RuntimeChecker) Installed(ctx context.Context) (path, version string, err error) {
	finder := "which"
	if p.goos == "windows" {
		finder = "where"
	}

	res := p.runner.Exec(ctx, finder, p.runner.Binary())
	if !res.Success {
		return "", "", fmt.Errorf("%w: %s", ErrRuntimeNotInstalled, p.runner.Binary())
	}
	path = firstLine(res.Stdout)

	res = p.runner.Run(ctx, "--version")
	if !res.Success {
		return path, "", ClassifyError(res.Error)
	}

	return path, firstLine(res.Stdout), nil
}

// DaemonRunning проверяет daemon через docker info.
func (p *RuntimeChecker) DaemonRunning(ctx context.Context) error {
	res := p.runner.Run(ctx, "info")
	if res.Success {
		return nil
	}
	return ClassifyError(res.Error)
}

// Status собирает RuntimeStatus.
func (p *RuntimeChecker) Status(ctx context.Context) RuntimeStatus {
	var status RuntimeStatus

	path, version, err := p.Installed(ctx)
	if err != nil {
		status.Error = UserMessage(err)
		return status
	}
	status.Installed = true
	status.Path = path
	status.Version = version

	if err := p.DaemonRunning(ctx); err != nil {
		status.Error = UserMessage(err)
		return status
	}
	status.DaemonRunning = true

	return status
}

// ClassifyError переводит текст ошибки runtime в sentinel-ошибку.
func ClassifyError(msg string) error {
	lower := strings.ToLower(msg)

	for _, pattern := range daemonDownPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: %s", ErrDaemonNotRunning, msg)
		}
	}
	for _, pattern := range notInstalledPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: %s", ErrRuntimeNotInstalled, msg)
		}
	}

	return fmt.Errorf("%w: %s", ErrCommandFailed, msg)
}

// UserMessage возвращает сообщение для пользователя.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRuntimeNotInstalled):
		return "Docker is not installed or not found in PATH. Install Docker Desktop and try again."
	case errors.Is(err, ErrDaemonNotRunning):
		return "Docker daemon is not running. Start Docker Desktop and try again."
	default:
		return err.Error()
	}
}
