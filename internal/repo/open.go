package repo

import (
	"context"
	"fmt"
	"log/slog"
)

// Драйверы хранилища.
const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// Config — выбор и параметры хранилища.
type Config struct {
	// Driver — badger (default) или postgres.
	Driver string

	// DataDir — каталог BadgerDB.
	DataDir string

	// InMemory — BadgerDB без диска.
	InMemory bool

	// DSN — строка подключения PostgreSQL.
	DSN string

	// Logger
	Logger *slog.Logger
}

// Stores — открытые хранилища projects и tasks.
type Stores struct {
	Projects ProjectStore
	Tasks    TaskStore

	close func()
}

// Close освобождает соединения или файлы БД.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open открывает хранилище по Config.Driver.
// Для postgres применяется схема (Migrate).
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case "", DriverBadger:
		store, err := OpenBadger(BadgerConfig{
			Path:       cfg.DataDir,
			InMemory:   cfg.InMemory,
			SyncWrites: !cfg.InMemory,
			Logger:     logger.With("component", "badger"),
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("store opened", "driver", DriverBadger, "path", cfg.DataDir, "in_memory", cfg.InMemory)
		return &Stores{
			Projects: store.Projects(),
			Tasks:    store.Tasks(),
			close: func() {
				if err := store.Close(); err != nil {
					logger.Error("failed to close badger", "error", err)
				}
			},
		}, nil

	case DriverPostgres:
		pool, err := NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Debug("store opened", "driver", DriverPostgres)
		return &Stores{
			Projects: NewProjectRepo(pool),
			Tasks:    NewTaskRepo(pool),
			close:    pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
