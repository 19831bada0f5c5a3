package domain

// Status — статус project или task.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCESS
//	                  ↘ FAILED
//
// Из финального статуса выхода нет: повторный запуск создаёт новый task.
type Status string

const (
	// StatusPending — запись создана, но работа ещё не началась.
	StatusPending Status = "pending"

	// StatusRunning — контейнер запущен или workflow в процессе.
	StatusRunning Status = "running"

	// StatusFailed — workflow или контейнер завершились с ошибкой.
	StatusFailed Status = "failed"

	// StatusSuccess — контейнер завершился с кодом 0.
	StatusSuccess Status = "success"
)

// IsTerminal возвращает true, если статус финальный.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус входит в известный набор.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusFailed, StatusSuccess:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление Status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus парсит строку в Status.
// Неизвестное значение возвращается как есть, проверять через IsValid.
func ParseStatus(s string) Status {
	return Status(s)
}
