package container

import "errors"

// Ошибки runtime.
var (
	// ErrRuntimeNotInstalled — бинарник docker не найден.
	ErrRuntimeNotInstalled = errors.New("container runtime not installed")

	// ErrDaemonNotRunning — docker установлен, но daemon недоступен.
	ErrDaemonNotRunning = errors.New("container runtime daemon not running")

	// ErrCommandFailed — команда runtime завершилась с ошибкой.
	ErrCommandFailed = errors.New("runtime command failed")

	// ErrInvalidSpec — LaunchSpec без обязательных полей.
	ErrInvalidSpec = errors.New("invalid launch spec")

	// ErrNoContainerID — docker run -d завершился без id контейнера.
	ErrNoContainerID = errors.New("runtime returned no container id")

	// ErrExitCodeUnavailable — docker wait не вернул код завершения.
	ErrExitCodeUnavailable = errors.New("container exit code unavailable")
)
