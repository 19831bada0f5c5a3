package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Novoflow/internal/app"
	"github.com/shaiso/Novoflow/internal/config"
	"github.com/shaiso/Novoflow/internal/telemetry"
)

// AppFunc лениво собирает App после парсинга PersistentFlags.
type AppFunc func(ctx context.Context) (*app.App, error)

// OutputFunc создаёт Output с учётом --json.
type OutputFunc func() *Output

// Options — переопределения для тестов.
type Options struct {
	// Config — готовая конфигурация вместо config.Load(--config).
	Config *config.Config

	// App — опции сборки App (runner, stores).
	App app.Options

	Stdout io.Writer
	Stderr io.Writer
}

// Root — корневая команда и собранный ею App.
type Root struct {
	*cobra.Command

	opts       Options
	configPath string
	jsonOutput bool
	app        *app.App
}

// NewRoot создаёт корневую команду novoflow со всеми подкомандами.
func NewRoot(version string, opts Options) *Root {
	r := &Root{opts: opts}

	r.Command = &cobra.Command{
		Use:           "novoflow",
		Short:         "Novoflow — containerized pipeline steps runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if opts.Stdout != nil {
		r.SetOut(opts.Stdout)
	}
	if opts.Stderr != nil {
		r.SetErr(opts.Stderr)
	}

	r.PersistentFlags().StringVar(&r.configPath, "config", "", "Config file (default: $NOVOFLOW_CONFIG or ./novoflow.yaml)")
	r.PersistentFlags().BoolVar(&r.jsonOutput, "json", false, "Output in JSON format")

	appFn := r.App
	outputFn := func() *Output { return NewOutput(r.jsonOutput, opts.Stdout, opts.Stderr) }

	r.AddCommand(
		NewRunCmd(appFn, outputFn),
		NewImagesCmd(appFn, outputFn),
		NewRuntimeCmd(appFn, outputFn),
		NewProjectCmd(appFn, outputFn),
		NewTaskCmd(appFn, outputFn),
		NewContainerCmd(appFn, outputFn),
	)

	return r
}

// App возвращает App, собирая его при первом вызове.
func (r *Root) App(ctx context.Context) (*app.App, error) {
	if r.app != nil {
		return r.app, nil
	}

	cfg := r.opts.Config
	if cfg == nil {
		loaded, err := config.Load(r.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	appOpts := r.opts.App
	if appOpts.Logger == nil {
		errW := r.opts.Stderr
		if errW == nil {
			errW = os.Stderr
		}
		level := cfg.Log.Level
		if level == "" {
			level = "WARN"
		}
		format := cfg.Log.Format
		if format == "" {
			format = "text"
		}
		appOpts.Logger = telemetry.NewLogger(telemetry.LogOptions{Level: level, Format: format, Output: errW})
	}

	a, err := app.New(ctx, cfg, appOpts)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r.app = a
	return a, nil
}

// Close освобождает App. Запущенные контейнеры продолжают работу.
func (r *Root) Close() {
	if r.app != nil {
		r.app.Close()
		r.app = nil
	}
}
