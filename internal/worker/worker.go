package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/mq"
	"github.com/shaiso/Novoflow/internal/orchestrator"
)

// Default configuration values.
const (
	defaultRecoverInterval = 30 * time.Second
	defaultPrefetch        = 1
)

// WorkflowRunner запускает workflow шага. Реализуется *orchestrator.Orchestrator.
type WorkflowRunner interface {
	Run(ctx context.Context, step domain.Step, p orchestrator.RunParams) orchestrator.Result
}

// Recoverer подхватывает контейнеры running tasks. Реализуется *orchestrator.Watcher.
type Recoverer interface {
	Recover(ctx context.Context) (int, error)
}

// Worker выполняет запросы на запуск шагов из очереди.
//
// Worker:
//   - Получает workflow.requested из очереди workflows.requested
//   - Запускает workflow шага через WorkflowRunner
//   - Периодически подхватывает running tasks без наблюдателя (recovery fallback)
//
// Некорректные сообщения уходят в DLQ, результат корректного запроса
// (в том числе неуспешный) фиксируется в БД, и сообщение подтверждается.
type Worker struct {
	runner    WorkflowRunner
	recoverer Recoverer

	// MQ
	conn     *mq.Connection
	consumer *mq.Consumer

	// Configuration
	recoverInterval time.Duration
	prefetch        int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Runner — запуск workflow (обязательно).
	Runner WorkflowRunner

	// Recoverer — опционально; nil отключает recovery loop.
	Recoverer Recoverer

	// MQ
	Conn *mq.Connection

	RecoverInterval time.Duration // интервал recovery (default: 30s)
	Prefetch        int           // одновременно обрабатываемые запросы (default: 1)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	recoverInterval := cfg.RecoverInterval
	if recoverInterval <= 0 {
		recoverInterval = defaultRecoverInterval
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		runner:          cfg.Runner,
		recoverer:       cfg.Recoverer,
		conn:            cfg.Conn,
		recoverInterval: recoverInterval,
		prefetch:        prefetch,
		logger:          logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для workflows.requested
//   - Recovery горутину, если задан Recoverer
func (w *Worker) Start(ctx context.Context) error {
	if w.runner == nil {
		return ErrNoRunner
	}
	if w.conn == nil {
		return ErrNoConnection
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"recover_interval", w.recoverInterval,
		"prefetch", w.prefetch,
	)

	w.consumer = mq.NewConsumer(w.conn, mq.ConsumerConfig{
		Queue:             string(mq.QueueWorkflowsRequested),
		Handler:           w.handleWorkflowRequested,
		Prefetch:          w.prefetch,
		DeadLetterOnError: true,
		Logger:            w.logger,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("workflow consumer error", "error", err)
		}
	}()

	if w.recoverer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.recoverLoop(ctx)
		}()
	}

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker. Запущенные контейнеры продолжают работу.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// recoverLoop — периодический Recover.
func (w *Worker) recoverLoop(ctx context.Context) {
	ticker := time.NewTicker(w.recoverInterval)
	defer ticker.Stop()

	// Первый проход сразу: контейнеры, запущенные до рестарта
	w.recover(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.recover(ctx)
		}
	}
}

// recover выполняет один проход recovery.
func (w *Worker) recover(ctx context.Context) {
	n, err := w.recoverer.Recover(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("failed to recover running tasks", "error", err)
		}
		return
	}
	if n > 0 {
		w.logger.Info("recovered running tasks", "count", n)
	}
}
