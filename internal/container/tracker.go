package container

import (
	"context"
	"sync"
)

// Tracker учитывает фоновые задачи, привязанные к контейнеру (logs -f).
//
// Каждая задача получает собственный контекст и может быть остановлена
// по id контейнера или вся разом через Close.
type Tracker struct {
	mu     sync.Mutex
	tasks  map[string]*trackedTask
	wg     sync.WaitGroup
	closed bool
}

type trackedTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTracker создаёт пустой Tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*trackedTask)}
}

// Go запускает fn в горутине под ключом id.
// Если задача с таким id уже есть, она останавливается.
// Возвращает false, если Tracker закрыт.
func (t *Tracker) Go(parent context.Context, id string, fn func(ctx context.Context)) bool {
	t.Stop(id)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	task := &trackedTask{cancel: cancel, done: make(chan struct{})}
	t.tasks[id] = task
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer close(task.done)
		defer cancel()
		defer t.remove(id, task)

		fn(ctx)
	}()

	return true
}

// Stop отменяет задачу и ждёт её завершения.
// Возвращает false, если задачи с таким id нет.
func (t *Tracker) Stop(id string) bool {
	t.mu.Lock()
	task, ok := t.tasks[id]
	t.mu.Unlock()

	if !ok {
		return false
	}

	task.cancel()
	<-task.done
	return true
}

// Has проверяет, есть ли активная задача для id.
func (t *Tracker) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[id]
	return ok
}

// Len возвращает количество активных задач.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// Close отменяет все задачи и ждёт их завершения.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	for _, task := range t.tasks {
		task.cancel()
	}
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Tracker) remove(id string, task *trackedTask) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tasks[id] == task {
		delete(t.tasks, id)
	}
}
