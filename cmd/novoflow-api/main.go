// Novoflow API — HTTP API над хранилищем и orchestrator.
//
// Конфигурация: novoflow.yaml / NOVOFLOW_CONFIG и переменные окружения
// (API_PORT, DB_URL, NOVOFLOW_STORE, LOG_LEVEL, ...).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Novoflow/internal/api"
	"github.com/shaiso/Novoflow/internal/app"
	"github.com/shaiso/Novoflow/internal/config"
	"github.com/shaiso/Novoflow/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		telemetry.SetupLogger().Error("novoflow-api failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	// Инициализируем structured logging
	logger := telemetry.NewLogger(telemetry.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting novoflow-api", "store", cfg.Store.Driver)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()

	// Контейнеры, запущенные до рестарта
	if a.Watcher != nil {
		if _, err := a.Watcher.Recover(ctx); err != nil {
			logger.Warn("failed to recover watchers", "error", err)
		}
	}

	handler := api.NewHandler(api.Config{
		Projects:   a.Stores.Projects,
		Tasks:      a.Stores.Tasks,
		Workflows:  a.Orchestrator,
		Canceller:  canceller(a),
		Containers: a.Launcher,
		Images:     a.Images,
		Runtime:    a.Checker,
		Steps:      a.Steps,
		Logger:     logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("stopped")
	return nil
}

// canceller — Watcher, если он включён. Иначе stop только останавливает контейнер.
func canceller(a *app.App) api.TaskCanceller {
	if a.Watcher == nil {
		return nil
	}
	return a.Watcher
}
