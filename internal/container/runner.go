package container

import (
	"context"
	"strings"
)

// Stream — источник строки вывода процесса.
type Stream string

const (
	StreamStdout Stream = "STDOUT"
	StreamStderr Stream = "STDERR"
)

// LineFunc получает строки вывода по мере поступления.
// Вызовы сериализованы, конкурентной защиты внутри не требуется.
type LineFunc func(stream Stream, line string)

// Result — результат запуска процесса.
type Result struct {
	// Success — процесс запустился и завершился с кодом 0.
	Success bool `json:"success"`

	// Stdout — накопленный stdout.
	Stdout string `json:"stdout,omitempty"`

	// Stderr — накопленный stderr.
	Stderr string `json:"stderr,omitempty"`

	// ExitCode — код завершения; -1, если процесс не запустился.
	ExitCode int `json:"exit_code"`

	// ID — первая строка stdout (для Start: id контейнера).
	ID string `json:"id,omitempty"`

	// Error — stderr, "<bin> exited with code N" или ошибка ОС.
	Error string `json:"error,omitempty"`
}

// Output возвращает stdout и stderr вместе, как их показывает docker logs.
func (r *Result) Output() string {
	return r.Stdout + r.Stderr
}

// Runner запускает бинарник container runtime.
type Runner interface {
	// Run — синхронный запуск с ожиданием завершения.
	Run(ctx context.Context, args ...string) *Result

	// Start — detached запуск. onLine может быть nil.
	// Result.ID содержит первую строку stdout.
	Start(ctx context.Context, onLine LineFunc, args ...string) *Result

	// Stream — запуск с построчной передачей вывода до завершения процесса.
	Stream(ctx context.Context, onLine LineFunc, args ...string) *Result

	// Exec — запуск произвольной программы с тем же окружением (which/where).
	Exec(ctx context.Context, name string, args ...string) *Result

	// Binary — имя или путь бинарника runtime.
	Binary() string
}

// CommandString возвращает строку вызова для логов: "docker run ...".
func CommandString(binary string, args []string) string {
	return strings.Join(append([]string{binary}, args...), " ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
