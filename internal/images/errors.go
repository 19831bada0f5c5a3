package images

import "errors"

var (
	// ErrListFailed — docker images завершился с ошибкой.
	ErrListFailed = errors.New("list images failed")

	// ErrCheckFailed — не удалось проверить наличие образа.
	ErrCheckFailed = errors.New("image check failed")

	// ErrDuplicateStep — два образа в каталоге привязаны к одному шагу.
	ErrDuplicateStep = errors.New("duplicate step image")
)
