package domain

// ImageDescriptor — образ, необходимый pipeline.
//
// Step == nil означает общий инфраструктурный образ, не привязанный к шагу.
type ImageDescriptor struct {
	// Name — отображаемое имя.
	Name string `json:"name" yaml:"name"`

	// Reference — ссылка на образ: "repo/name:tag".
	Reference string `json:"reference" yaml:"reference"`

	// Description — описание для пользователя.
	Description string `json:"description,omitempty" yaml:"description"`

	// Platform — платформа для pull/run, например "linux/amd64".
	Platform string `json:"platform,omitempty" yaml:"platform"`

	// Step — шаг, который использует образ.
	Step *Step `json:"step,omitempty" yaml:"step"`
}

// ForStep проверяет, относится ли образ к шагу.
func (d ImageDescriptor) ForStep(step Step) bool {
	return d.Step != nil && *d.Step == step
}
