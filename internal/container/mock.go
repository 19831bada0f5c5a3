package container

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MockCall — записанный вызов MockRunner.
type MockCall struct {
	// Name — программа: бинарник runtime или which/where.
	Name string

	// Args — аргументы.
	Args []string
}

// Command возвращает вызов одной строкой.
func (c MockCall) Command() string {
	return CommandString(c.Name, c.Args)
}

// MockRunner — Runner для тестов.
//
// Handler получает каждый вызов и возвращает результат; nil Handler
// или nil результат означают успех без вывода. Для Start и Stream
// строки Stdout/Stderr результата передаются в onLine.
type MockRunner struct {
	BinaryName string
	Handler    func(ctx context.Context, call MockCall) *Result

	mu    sync.Mutex
	calls []MockCall
}

// NewMockRunner создаёт MockRunner с обработчиком.
func NewMockRunner(handler func(ctx context.Context, call MockCall) *Result) *MockRunner {
	return &MockRunner{BinaryName: DefaultBinary, Handler: handler}
}

// Binary возвращает имя бинарника.
func (m *MockRunner) Binary() string {
	if m.BinaryName == "" {
		return DefaultBinary
	}
	return m.BinaryName
}

// Run записывает вызов.
func (m *MockRunner) Run(ctx context.Context, args ...string) *Result {
	return m.call(ctx, m.Binary(), args)
}

// Start записывает вызов и выставляет ID.
func (m *MockRunner) Start(ctx context.Context, onLine LineFunc, args ...string) *Result {
	res := m.call(ctx, m.Binary(), args)
	emit(res, onLine)
	if res.Success && res.ID == "" {
		res.ID = firstLine(res.Stdout)
	}
	return res
}

// Stream записывает вызов и передаёт вывод построчно.
func (m *MockRunner) Stream(ctx context.Context, onLine LineFunc, args ...string) *Result {
	res := m.call(ctx, m.Binary(), args)
	emit(res, onLine)
	return res
}

// Exec записывает вызов произвольной программы.
func (m *MockRunner) Exec(ctx context.Context, name string, args ...string) *Result {
	return m.call(ctx, name, args)
}

// Calls возвращает копию записанных вызовов.
func (m *MockRunner) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallsTo возвращает вызовы с указанной подкомандой (args[0]).
func (m *MockRunner) CallsTo(subcommand string) []MockCall {
	var out []MockCall
	for _, c := range m.Calls() {
		if len(c.Args) > 0 && c.Args[0] == subcommand {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockRunner) call(ctx context.Context, name string, args []string) *Result {
	c := MockCall{Name: name, Args: slices.Clone(args)}

	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()

	var res *Result
	if m.Handler != nil {
		res = m.Handler(ctx, c)
	}
	if res == nil {
		res = &Result{Success: true}
	}

	out := *res
	return &out
}

func emit(res *Result, onLine LineFunc) {
	if onLine == nil {
		return
	}
	for _, line := range splitLines(res.Stdout) {
		onLine(StreamStdout, line)
	}
	for _, line := range splitLines(res.Stderr) {
		onLine(StreamStderr, line)
	}
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
