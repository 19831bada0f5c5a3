package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrInvalidParams — не заданы обязательные параметры или шаг вне 1..5.
	ErrInvalidParams = errors.New("invalid workflow params")

	// ErrTaskFinished — task уже в финальном статусе.
	ErrTaskFinished = errors.New("task already finished")

	// ErrNoContainer — у task нет запущенного контейнера.
	ErrNoContainer = errors.New("task has no container")
)
