package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/shaiso/Novoflow/internal/domain"
)

// Префиксы ключей.
//
//	project/<id>                  → JSON domain.Project
//	task/<id>                     → JSON domain.Task
//	project-task/<projectID>/<id> → индекс tasks по project
const (
	prefixProject     = "project/"
	prefixTask        = "task/"
	prefixProjectTask = "project-task/"
)

// maxConflictRetries — сколько раз повторять транзакцию при badger.ErrConflict.
const maxConflictRetries = 3

// BadgerConfig — конфигурация встроенного хранилища.
type BadgerConfig struct {
	// Path — каталог БД. Игнорируется при InMemory.
	Path string

	// InMemory — без записи на диск (тесты).
	InMemory bool

	// SyncWrites — fsync на каждую запись.
	SyncWrites bool

	// Logger — логгер badger; nil отключает внутренние логи.
	Logger *slog.Logger
}

// BadgerStore — хранилище projects и tasks во встроенной BadgerDB.
// Используется CLI по умолчанию и не требует внешних сервисов.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger открывает (или создаёт) БД.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Projects возвращает хранилище projects.
func (s *BadgerStore) Projects() *BadgerProjectRepo {
	return &BadgerProjectRepo{store: s}
}

// Tasks возвращает хранилище tasks.
func (s *BadgerStore) Tasks() *BadgerTaskRepo {
	return &BadgerTaskRepo{store: s}
}

// Close закрывает БД.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// update выполняет транзакцию записи с повтором при конфликте.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *BadgerStore) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// --- Projects ---

// BadgerProjectRepo — ProjectStore поверх BadgerStore.
type BadgerProjectRepo struct {
	store *BadgerStore
}

// Create создаёт новый project.
func (r *BadgerProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	key := projectKey(p.ID)
	return r.store.update(ctx, func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, key); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: project %s", ErrAlreadyExists, p.ID)
		}
		return putJSON(txn, key, p)
	})
}

// GetByID возвращает project по ID.
func (r *BadgerProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var p domain.Project
	err := r.store.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, projectKey(id), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update перезаписывает project.
func (r *BadgerProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	key := projectKey(p.ID)
	return r.store.update(ctx, func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, key); err != nil {
			return err
		} else if !exists {
			return ErrNotFound
		}
		return putJSON(txn, key, p)
	})
}

// List возвращает projects, новые первыми.
func (r *BadgerProjectRepo) List(ctx context.Context, filter ProjectFilter) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.store.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(prefixProject), func(val []byte) error {
			var p domain.Project
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("unmarshal project: %w", err)
			}
			if filter.Status != "" && p.Status != filter.Status {
				return nil
			}
			projects = append(projects, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return page(projects, filter.Offset, filter.Limit), nil
}

// Delete удаляет project и все его tasks в одной транзакции.
func (r *BadgerProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.update(ctx, func(txn *badger.Txn) error {
		key := projectKey(id)
		if exists, err := keyExists(txn, key); err != nil {
			return err
		} else if !exists {
			return ErrNotFound
		}

		var indexKeys [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: projectTaskPrefix(id)})
		for it.Rewind(); it.Valid(); it.Next() {
			indexKeys = append(indexKeys, it.Item().KeyCopy(nil))
		}
		it.Close()

		prefixLen := len(projectTaskPrefix(id))
		for _, k := range indexKeys {
			taskID := k[prefixLen:]
			if err := txn.Delete(append([]byte(prefixTask), taskID...)); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Delete(key)
	})
}

// --- Tasks ---

// BadgerTaskRepo — TaskStore поверх BadgerStore.
type BadgerTaskRepo struct {
	store *BadgerStore
}

// Create создаёт task. Родительский project должен существовать.
func (r *BadgerTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	key := taskKey(task.ID)
	return r.store.update(ctx, func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, projectKey(task.ProjectID)); err != nil {
			return err
		} else if !exists {
			return fmt.Errorf("%w: project %s", ErrNotFound, task.ProjectID)
		}
		if exists, err := keyExists(txn, key); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: task %s", ErrAlreadyExists, task.ID)
		}
		if err := putJSON(txn, key, task); err != nil {
			return err
		}
		return txn.Set(projectTaskKey(task.ProjectID, task.ID), nil)
	})
}

// GetByID возвращает task по ID.
func (r *BadgerTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	err := r.store.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, taskKey(id), &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Update перезаписывает task. ProjectID не меняется.
func (r *BadgerTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	key := taskKey(task.ID)
	return r.store.update(ctx, func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, key); err != nil {
			return err
		} else if !exists {
			return ErrNotFound
		}
		return putJSON(txn, key, task)
	})
}

// List возвращает tasks с фильтрацией, новые первыми.
func (r *BadgerTaskRepo) List(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.store.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(prefixTask), func(val []byte) error {
			var t domain.Task
			if err := json.Unmarshal(val, &t); err != nil {
				return fmt.Errorf("unmarshal task: %w", err)
			}
			if filter.ProjectID != nil && t.ProjectID != *filter.ProjectID {
				return nil
			}
			if filter.Status != "" && t.Status != filter.Status {
				return nil
			}
			tasks = append(tasks, t)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return page(tasks, filter.Offset, filter.Limit), nil
}

// ListByProject возвращает tasks project в порядке создания.
func (r *BadgerTaskRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.store.view(ctx, func(txn *badger.Txn) error {
		prefix := projectTaskPrefix(projectID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			taskID := it.Item().Key()[len(prefix):]
			var t domain.Task
			if err := getJSON(txn, append([]byte(prefixTask), taskID...), &t); err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks by project: %w", err)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// Delete удаляет task и его запись в индексе project.
func (r *BadgerTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.update(ctx, func(txn *badger.Txn) error {
		var t domain.Task
		if err := getJSON(txn, taskKey(id), &t); err != nil {
			return err
		}
		if err := txn.Delete(projectTaskKey(t.ProjectID, id)); err != nil {
			return err
		}
		return txn.Delete(taskKey(id))
	})
}

// --- Helpers ---

func projectKey(id uuid.UUID) []byte { return []byte(prefixProject + id.String()) }

func taskKey(id uuid.UUID) []byte { return []byte(prefixTask + id.String()) }

func projectTaskPrefix(projectID uuid.UUID) []byte {
	return []byte(prefixProjectTask + projectID.String() + "/")
}

func projectTaskKey(projectID, taskID uuid.UUID) []byte {
	return append(projectTaskPrefix(projectID), taskID.String()...)
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, b)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func scanPrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	limit = normalizeLimit(limit)
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// badgerLogger адаптирует slog.Logger к badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
