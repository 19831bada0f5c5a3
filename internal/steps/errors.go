package steps

import (
	"errors"

	"github.com/shaiso/Novoflow/internal/domain"
)

// Ошибки шагов.
var (
	// ErrImageNotConfigured — в каталоге нет образа для шага.
	ErrImageNotConfigured = errors.New("no image configured for step")

	// ErrUnknownStep — шаг вне диапазона 1..5.
	ErrUnknownStep = domain.ErrUnknownStep

	// ErrInvalidParams — не заданы обязательные параметры запуска.
	ErrInvalidParams = errors.New("invalid step params")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse error")

	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render error")
)
