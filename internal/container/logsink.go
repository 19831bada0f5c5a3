package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogSink — текстовый лог сессии контейнера, только дозапись.
//
// Формат:
//
//	=== Container start: step1-demo-1712345678901 ===
//	Command: docker run -d --rm ...
//	Timestamp: 2024-04-05T12:00:00Z
//	[STDOUT] 3f2a...
//	=== Container start finished with exit code: 0 ===
type LogSink struct {
	mu    sync.Mutex
	f     *os.File
	path  string
	event string
}

// OpenLogSink создаёт родительский каталог и открывает файл на дозапись.
func OpenLogSink(path string) (*LogSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &LogSink{f: f, path: path}, nil
}

// Path возвращает путь к файлу.
func (s *LogSink) Path() string {
	return s.path
}

// Begin пишет маркер начала сессии.
func (s *LogSink) Begin(event, name, command string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.event = event
	fmt.Fprintf(s.f, "=== %s: %s ===\n", event, name)
	fmt.Fprintf(s.f, "Command: %s\n", command)
	fmt.Fprintf(s.f, "Timestamp: %s\n", ts.UTC().Format(time.RFC3339))
}

// Line пишет строку вывода с префиксом потока.
func (s *LogSink) Line(stream Stream, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.f, "[%s] %s\n", stream, line)
}

// Error пишет ошибку запуска процесса.
func (s *LogSink) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.f, "[ERROR] %s\n", msg)
}

// End пишет маркер завершения сессии.
func (s *LogSink) End(exitCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.f, "=== %s finished with exit code: %d ===\n", s.event, exitCode)
}

// Close закрывает файл.
func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.f.Close()
}

// HasFollowSession проверяет, что в логе есть вывод logs -f, а не только сессия старта.
func HasFollowSession(content string) bool {
	return strings.Contains(content, "=== "+eventFollow+":")
}
