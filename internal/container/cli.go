package container

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultBinary — бинарник runtime по умолчанию.
const DefaultBinary = "docker"

// maxLineSize — максимальная длина строки вывода для Stream.
const maxLineSize = 1024 * 1024

// CLI — Runner поверх os/exec.
type CLI struct {
	binary string
	env    []string
	path   string
	logger *slog.Logger
}

// CLIConfig — конфигурация CLI.
type CLIConfig struct {
	// Binary — имя или путь бинарника (default: docker).
	Binary string

	// ExtraPaths — дополнительные каталоги для PATH.
	ExtraPaths []string

	// Logger
	Logger *slog.Logger
}

// NewCLI создаёт CLI.
func NewCLI(cfg CLIConfig) *CLI {
	binary := cfg.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	env, path := extendedEnv(cfg.ExtraPaths)

	return &CLI{
		binary: binary,
		env:    env,
		path:   path,
		logger: logger,
	}
}

// Binary возвращает имя бинарника runtime.
func (c *CLI) Binary() string {
	return c.binary
}

// Run запускает runtime и ждёт завершения.
func (c *CLI) Run(ctx context.Context, args ...string) *Result {
	return c.exec(ctx, c.binary, args, nil)
}

// Start запускает runtime в detached режиме и возвращает id из первой строки stdout.
func (c *CLI) Start(ctx context.Context, onLine LineFunc, args ...string) *Result {
	res := c.exec(ctx, c.binary, args, onLine)
	if res.Success {
		res.ID = firstLine(res.Stdout)
	}
	return res
}

// Stream запускает runtime и передаёт вывод построчно.
func (c *CLI) Stream(ctx context.Context, onLine LineFunc, args ...string) *Result {
	return c.exec(ctx, c.binary, args, onLine)
}

// Exec запускает произвольную программу с расширенным PATH.
func (c *CLI) Exec(ctx context.Context, name string, args ...string) *Result {
	return c.exec(ctx, name, args, nil)
}

// exec — общий путь запуска процесса.
func (c *CLI) exec(ctx context.Context, name string, args []string, onLine LineFunc) *Result {
	cmd := exec.CommandContext(ctx, lookPath(name, c.path), args...)
	cmd.Env = c.env

	c.logger.Debug("exec runtime command", "command", CommandString(name, args))

	var stdout, stderr bytes.Buffer
	var err error

	if onLine == nil {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err = cmd.Run()
	} else {
		err = c.stream(cmd, onLine, &stdout, &stderr)
	}

	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		res.Success = true
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		res.Error = strings.TrimSpace(res.Stderr)
		if res.Error == "" {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.Error = ctxErr.Error()
			} else {
				res.Error = fmt.Sprintf("%s exited with code %d", filepath.Base(name), res.ExitCode)
			}
		}
		return res
	}

	// Процесс не запустился: бинарник не найден, нет прав и т.п.
	res.ExitCode = -1
	res.Error = err.Error()
	return res
}

// stream запускает cmd, читая stdout и stderr построчно.
func (c *CLI) stream(cmd *exec.Cmd, onLine LineFunc, stdout, stderr *bytes.Buffer) error {
	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	read := func(r io.Reader, stream Stream, buf *bytes.Buffer) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			buf.WriteString(line)
			buf.WriteByte('\n')
			onLine(stream, line)
			mu.Unlock()
		}
	}

	wg.Add(2)
	go read(outPipe, StreamStdout, stdout)
	go read(errPipe, StreamStderr, stderr)

	// Wait закрывает pipes, поэтому сначала дочитываем вывод.
	wg.Wait()
	return cmd.Wait()
}
