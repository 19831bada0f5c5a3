package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Novoflow/internal/domain"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// --- Project Tests ---

func TestBadgerProjects_CRUD(t *testing.T) {
	ctx := context.Background()
	projects := openTestStore(t).Projects()

	p := domain.NewProject("Demo Run!", map[string]any{domain.ParamInputPath: "/in"})
	require.NoError(t, projects.Create(ctx, p))

	err := projects.Create(ctx, p)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Demo Run!", got.Name)
	assert.Equal(t, domain.StatusRunning, got.Status)
	assert.Equal(t, "/in", got.Parameters[domain.ParamInputPath])

	got.MarkFailed()
	require.NoError(t, projects.Update(ctx, got))

	got, err = projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)

	_, err = projects.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	missing := domain.NewProject("x", nil)
	assert.ErrorIs(t, projects.Update(ctx, missing), ErrNotFound)
	assert.ErrorIs(t, projects.Delete(ctx, missing.ID), ErrNotFound)
}

func TestBadgerProjects_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	projects := openTestStore(t).Projects()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		p := domain.NewProject("p", nil)
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i == 1 {
			p.Status = domain.StatusSuccess
		}
		require.NoError(t, projects.Create(ctx, p))
		ids = append(ids, p.ID)
	}

	list, err := projects.List(ctx, ProjectFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)

	list, err = projects.List(ctx, ProjectFilter{Status: domain.StatusSuccess})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ids[1], list[0].ID)

	list, err = projects.List(ctx, ProjectFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ids[1], list[0].ID)

	list, err = projects.List(ctx, ProjectFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, list)
}

// --- Task Tests ---

func TestBadgerTasks_CRUD(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	projects, tasks := store.Projects(), store.Tasks()

	p := domain.NewProject("p", nil)
	require.NoError(t, projects.Create(ctx, p))

	task := domain.NewTask(p.ID, domain.Step1, map[string]any{domain.ParamInputPath: "/in"})
	require.NoError(t, tasks.Create(ctx, task))

	task.MergeParameters(map[string]any{domain.ParamContainerID: "abc", domain.ParamExitCode: 3})
	require.NoError(t, tasks.Update(ctx, task))

	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ProjectID)
	assert.Equal(t, "1", got.Step)
	assert.Equal(t, "abc", got.ContainerID())
	assert.EqualValues(t, 3, got.Parameters[domain.ParamExitCode])

	require.NoError(t, tasks.Delete(ctx, task.ID))
	_, err = tasks.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, tasks.Delete(ctx, task.ID), ErrNotFound)

	byProject, err := tasks.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, byProject)
}

func TestBadgerTasks_CreateRequiresProject(t *testing.T) {
	tasks := openTestStore(t).Tasks()

	err := tasks.Create(context.Background(), domain.NewTask(uuid.New(), domain.Step1, nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerTasks_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	projects, tasks := store.Projects(), store.Tasks()

	p1 := domain.NewProject("a", nil)
	p2 := domain.NewProject("b", nil)
	require.NoError(t, projects.Create(ctx, p1))
	require.NoError(t, projects.Create(ctx, p2))

	running := domain.NewTask(p1.ID, domain.Step1, nil)
	failed := domain.NewTask(p1.ID, domain.Step2, nil)
	failed.MarkFailed("boom")
	other := domain.NewTask(p2.ID, domain.Step1, nil)
	for _, task := range []*domain.Task{running, failed, other} {
		require.NoError(t, tasks.Create(ctx, task))
	}

	list, err := tasks.List(ctx, TaskFilter{Status: domain.StatusRunning})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = tasks.List(ctx, TaskFilter{ProjectID: &p1.ID, Status: domain.StatusFailed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, failed.ID, list[0].ID)
	assert.Equal(t, "boom", list[0].StringParam(domain.ParamError))

	byProject, err := tasks.ListByProject(ctx, p1.ID)
	require.NoError(t, err)
	assert.Len(t, byProject, 2)
}

func TestBadgerProjects_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	projects, tasks := store.Projects(), store.Tasks()

	p := domain.NewProject("p", nil)
	keep := domain.NewProject("keep", nil)
	require.NoError(t, projects.Create(ctx, p))
	require.NoError(t, projects.Create(ctx, keep))

	t1 := domain.NewTask(p.ID, domain.Step1, nil)
	t2 := domain.NewTask(p.ID, domain.Step1, nil)
	t3 := domain.NewTask(keep.ID, domain.Step1, nil)
	for _, task := range []*domain.Task{t1, t2, t3} {
		require.NoError(t, tasks.Create(ctx, task))
	}

	require.NoError(t, projects.Delete(ctx, p.ID))

	_, err := projects.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tasks.GetByID(ctx, t1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tasks.GetByID(ctx, t2.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	remaining, err := tasks.List(ctx, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, t3.ID, remaining[0].ID)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	p := domain.NewProject("persisted", nil)
	require.NoError(t, store.Projects().Create(ctx, p))
	require.NoError(t, store.Close())

	store, err = OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Projects().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestOpen_BadgerInMemory(t *testing.T) {
	stores, err := Open(context.Background(), Config{InMemory: true})
	require.NoError(t, err)
	defer stores.Close()

	p := domain.NewProject("p", nil)
	require.NoError(t, stores.Projects.Create(context.Background(), p))
}
