// Package app собирает компоненты Novoflow из config.Config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Novoflow/internal/config"
	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/images"
	"github.com/shaiso/Novoflow/internal/mq"
	"github.com/shaiso/Novoflow/internal/orchestrator"
	"github.com/shaiso/Novoflow/internal/repo"
	"github.com/shaiso/Novoflow/internal/steps"
)

// App — собранные сервисы одного процесса.
type App struct {
	Config *config.Config

	Runner   container.Runner
	Launcher *container.Launcher
	Checker  *container.RuntimeChecker

	Catalog *images.Catalog
	Images  *images.Manager
	Steps   *steps.Registry

	Stores       *repo.Stores
	Watcher      *orchestrator.Watcher
	Orchestrator *orchestrator.Orchestrator

	// MQ — nil, если mq.url не задан или Options.SkipMQ.
	MQ        *mq.Connection
	Publisher *mq.Publisher

	logger *slog.Logger
}

// Options — переопределения для тестов и отдельных бинарников.
type Options struct {
	// Runner — вместо container.CLI (тесты).
	Runner container.Runner

	// Stores — вместо repo.Open (тесты). App закрывает их в Close.
	Stores *repo.Stores

	// SkipMQ — не подключаться к RabbitMQ даже при заданном URL.
	SkipMQ bool

	// Logger
	Logger *slog.Logger
}

// New собирает App. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, logger: logger}

	// 1. Runtime
	a.Runner = opts.Runner
	if a.Runner == nil {
		a.Runner = container.NewCLI(container.CLIConfig{
			Binary:     cfg.Runtime.Binary,
			ExtraPaths: cfg.Runtime.ExtraPaths,
			Logger:     logger,
		})
	}
	a.Launcher = container.NewLauncher(container.LauncherConfig{Runner: a.Runner, Logger: logger})
	a.Checker = container.NewRuntimeChecker(a.Runner)

	// 2. Образы и шаги
	catalog, err := images.NewCatalog(cfg.ImageDescriptors())
	if err != nil {
		return nil, err
	}
	a.Catalog = catalog
	a.Images = images.NewManager(images.Config{Runner: a.Runner, Catalog: catalog, Logger: logger})

	// При наблюдении --rm заменяется удалением после docker wait
	watch := cfg.Workflow.Watch && !cfg.Workflow.Attached

	stepSettings := make(map[domain.Step]steps.StepConfig)
	for step, sc := range cfg.StepSettings() {
		stepSettings[step] = steps.StepConfig{Env: sc.Env, Command: sc.Command}
	}
	a.Steps = steps.NewRegistry(steps.Config{
		Catalog:    catalog,
		Launcher:   a.Launcher,
		Steps:      stepSettings,
		UID:        cfg.Runtime.UID,
		GID:        cfg.Runtime.GID,
		AutoRemove: cfg.Workflow.AutoRemove && !watch,
		Attached:   cfg.Workflow.Attached,
		Logger:     logger,
	})

	// 3. Хранилище
	a.Stores = opts.Stores
	if a.Stores == nil {
		stores, err := repo.Open(ctx, repo.Config{
			Driver:   cfg.Store.Driver,
			DataDir:  cfg.Store.DataDir,
			InMemory: cfg.Store.InMemory,
			DSN:      cfg.Store.DSN,
			Logger:   logger,
		})
		if err != nil {
			a.Launcher.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.Stores = stores
	}

	// 4. MQ (опционально)
	var events orchestrator.EventPublisher
	if cfg.MQ.URL != "" && !opts.SkipMQ {
		conn, err := mq.Dial(mq.ConnectionConfig{
			URL:                  cfg.MQ.URL,
			ReconnectDelay:       cfg.MQ.ReconnectDelay,
			MaxReconnectDelay:    cfg.MQ.MaxReconnectDelay,
			MaxReconnectAttempts: cfg.MQ.ReconnectAttempts,
			Logger:               logger,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect mq: %w", err)
		}
		a.MQ = conn
		if err := mq.SetupTopology(ctx, conn); err != nil {
			a.Close()
			return nil, fmt.Errorf("setup topology: %w", err)
		}
		logger.Debug("mq topology ready", "topology", mq.TopologyInfo())
		a.Publisher = mq.NewPublisher(conn, logger)
		events = a.Publisher
	}

	// 5. Orchestrator и Watcher
	if watch {
		a.Watcher = orchestrator.NewWatcher(orchestrator.WatcherConfig{
			Projects:        a.Stores.Projects,
			Tasks:           a.Stores.Tasks,
			Containers:      a.Launcher,
			Events:          events,
			RemoveAfterWait: cfg.Workflow.AutoRemove,
			Logger:          logger,
		})
	}
	a.Orchestrator = orchestrator.New(orchestrator.Config{
		Projects:   a.Stores.Projects,
		Tasks:      a.Stores.Tasks,
		Steps:      a.Steps,
		Containers: a.Launcher,
		Watcher:    a.Watcher,
		Events:     events,
		Logger:     logger,
	})

	return a, nil
}

// QueryContext ограничивает короткие запросы к runtime (images, info, --version).
func (a *App) QueryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Config.Runtime.CommandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.Config.Runtime.CommandTimeout)
}

// Close останавливает watcher'ы, потоки логов и закрывает соединения.
func (a *App) Close() {
	if a.Watcher != nil {
		a.Watcher.Stop()
	}
	if a.Launcher != nil {
		a.Launcher.Close()
	}
	if a.MQ != nil {
		if err := a.MQ.Close(); err != nil {
			a.logger.Warn("failed to close mq connection", "error", err)
		}
	}
	if a.Stores != nil {
		a.Stores.Close()
	}
}
