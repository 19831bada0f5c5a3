// Novoflow Worker — выполняет запросы workflow.requested из RabbitMQ.
//
// Worker:
//   - Получает запросы из очереди workflows.requested
//   - Запускает шаг через Orchestrator
//   - Следит за контейнерами и публикует task.completed
//
// Workers масштабируются горизонтально при общем postgres-хранилище.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Novoflow/internal/app"
	"github.com/shaiso/Novoflow/internal/config"
	"github.com/shaiso/Novoflow/internal/mq"
	"github.com/shaiso/Novoflow/internal/telemetry"
	"github.com/shaiso/Novoflow/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// workerHealth — тело ответа /healthz.
type workerHealth struct {
	Stopped bool      `json:"stopped"`
	MQ      mq.Status `json:"mq"`
}

func main() {
	if err := run(); err != nil {
		telemetry.SetupLogger().Error("novoflow-worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if cfg.MQ.URL == "" {
		cfg.MQ.URL = mq.DefaultURL()
	}

	// Инициализируем structured logging
	logger := telemetry.NewLogger(telemetry.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting novoflow-worker", "store", cfg.Store.Driver)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()

	wcfg := worker.Config{
		Runner:   a.Orchestrator,
		Conn:     a.MQ,
		Prefetch: cfg.MQ.Prefetch,
		Logger:   logger,
	}
	if a.Watcher != nil {
		wcfg.Recoverer = a.Watcher
	}
	w := worker.New(wcfg)

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		status := a.MQ.Status()
		code := http.StatusOK
		if w.IsStopped() || !status.Healthy() {
			code = http.StatusServiceUnavailable
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(code)
		json.NewEncoder(rw).Encode(workerHealth{Stopped: w.IsStopped(), MQ: status})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Worker.Addr,
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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("novoflow-worker stopped")
	return nil
}
