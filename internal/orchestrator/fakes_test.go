package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/mq"
	"github.com/shaiso/Novoflow/internal/repo"
	"github.com/shaiso/Novoflow/internal/steps"
)

var errDiskFull = errors.New("disk full")

// memStore — ProjectStore и TaskStore в памяти.
// failOnWrite > 0 — запись с этим номером (1-based) завершается ошибкой.
// failFrom > 0 — ошибкой завершаются эта запись и все последующие.
type memStore struct {
	mu          sync.Mutex
	projects    map[uuid.UUID]domain.Project
	tasks       map[uuid.UUID]domain.Task
	writes      int
	failOnWrite int
	failFrom    int
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[uuid.UUID]domain.Project),
		tasks:    make(map[uuid.UUID]domain.Task),
	}
}

func (s *memStore) write() error {
	s.writes++
	if s.failOnWrite > 0 && s.writes == s.failOnWrite {
		return errDiskFull
	}
	if s.failFrom > 0 && s.writes >= s.failFrom {
		return errDiskFull
	}
	return nil
}

func (s *memStore) Projects() repo.ProjectStore { return memProjects{s} }
func (s *memStore) Tasks() repo.TaskStore       { return memTasks{s} }

func (s *memStore) project(id uuid.UUID) (domain.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	return p, ok
}

func (s *memStore) task(id uuid.UUID) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *memStore) taskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func copyParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type memProjects struct{ s *memStore }

func (r memProjects) Create(_ context.Context, p *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.write(); err != nil {
		return err
	}
	cp := *p
	cp.Parameters = copyParams(p.Parameters)
	r.s.projects[p.ID] = cp
	return nil
}

func (r memProjects) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	p.Parameters = copyParams(p.Parameters)
	return &p, nil
}

func (r memProjects) Update(_ context.Context, p *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.write(); err != nil {
		return err
	}
	if _, ok := r.s.projects[p.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *p
	cp.Parameters = copyParams(p.Parameters)
	r.s.projects[p.ID] = cp
	return nil
}

func (r memProjects) List(_ context.Context, _ repo.ProjectFilter) ([]domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Project
	for _, p := range r.s.projects {
		out = append(out, p)
	}
	return out, nil
}

func (r memProjects) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.projects, id)
	return nil
}

type memTasks struct{ s *memStore }

func (r memTasks) Create(_ context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.write(); err != nil {
		return err
	}
	cp := *t
	cp.Parameters = copyParams(t.Parameters)
	r.s.tasks[t.ID] = cp
	return nil
}

func (r memTasks) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	t.Parameters = copyParams(t.Parameters)
	return &t, nil
}

func (r memTasks) Update(_ context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.write(); err != nil {
		return err
	}
	if _, ok := r.s.tasks[t.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *t
	cp.Parameters = copyParams(t.Parameters)
	r.s.tasks[t.ID] = cp
	return nil
}

func (r memTasks) List(_ context.Context, filter repo.TaskFilter) ([]domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Task
	for _, t := range r.s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.ProjectID != nil && t.ProjectID != *filter.ProjectID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r memTasks) ListByProject(_ context.Context, projectID uuid.UUID) ([]domain.Task, error) {
	return r.List(context.Background(), repo.TaskFilter{ProjectID: &projectID})
}

func (r memTasks) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.tasks, id)
	return nil
}

// stubSteps возвращает заданный LaunchResult и запоминает параметры.
type stubSteps struct {
	mu     sync.Mutex
	result container.LaunchResult
	params []steps.Params
}

func (s *stubSteps) Run(_ context.Context, _ domain.Step, p steps.Params) container.LaunchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = append(s.params, p)
	return s.result
}

// fakeContainers — ContainerControl, где Wait ждёт exit code из канала.
type fakeContainers struct {
	mu       sync.Mutex
	exits    map[string]chan waitResult
	removed  []string
	stopped  []string
	unfollow []string
	ops      []string
}

type waitResult struct {
	code int
	err  error
}

func newFakeContainers() *fakeContainers {
	return &fakeContainers{exits: make(map[string]chan waitResult)}
}

func (f *fakeContainers) exitCh(id string) chan waitResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.exits[id]
	if !ok {
		ch = make(chan waitResult, 1)
		f.exits[id] = ch
	}
	return ch
}

func (f *fakeContainers) exit(id string, code int) {
	f.exitCh(id) <- waitResult{code: code}
}

func (f *fakeContainers) Wait(ctx context.Context, id string) (int, error) {
	select {
	case r := <-f.exitCh(id):
		f.mu.Lock()
		f.ops = append(f.ops, "wait "+id)
		f.mu.Unlock()
		return r.code, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *fakeContainers) Stop(_ context.Context, name string) error {
	f.mu.Lock()
	f.stopped = append(f.stopped, name)
	f.mu.Unlock()
	f.exit(name, 143)
	return nil
}

func (f *fakeContainers) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, name)
	f.ops = append(f.ops, "rm "+name)
	return nil
}

func (f *fakeContainers) StopFollow(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unfollow = append(f.unfollow, id)
	return true
}

func (f *fakeContainers) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *fakeContainers) removedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

// recordingEvents запоминает опубликованные события.
type recordingEvents struct {
	mu        sync.Mutex
	launched  []mq.TaskEventPayload
	completed []mq.TaskEventPayload
}

func (e *recordingEvents) PublishTaskLaunched(_ context.Context, p mq.TaskEventPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launched = append(e.launched, p)
	return nil
}

func (e *recordingEvents) PublishTaskCompleted(_ context.Context, p mq.TaskEventPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, p)
	return nil
}

func (e *recordingEvents) completedEvents() []mq.TaskEventPayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]mq.TaskEventPayload(nil), e.completed...)
}
