package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/images"
	"github.com/shaiso/Novoflow/internal/orchestrator"
	"github.com/shaiso/Novoflow/internal/repo"
)

// --- Fakes ---

type fakeWorkflows struct {
	mu     sync.Mutex
	steps  []domain.Step
	result orchestrator.Result
}

func (f *fakeWorkflows) Run(_ context.Context, step domain.Step, _ orchestrator.RunParams) orchestrator.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
	return f.result
}

type fakeCanceller struct {
	stores *repo.Stores
	err    error
}

func (f *fakeCanceller) Cancel(ctx context.Context, taskID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	task, err := f.stores.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	task.MarkFailed("container stopped")
	return f.stores.Tasks.Update(ctx, task)
}

type fakeContainers struct {
	stopped []string
	logs    string
	err     error
}

func (f *fakeContainers) Stop(_ context.Context, name string) error {
	f.stopped = append(f.stopped, name)
	return f.err
}

func (f *fakeContainers) Logs(_ context.Context, name string) (string, error) {
	return f.logs, f.err
}

type fakeImages struct{}

func (fakeImages) CheckAll(context.Context) []images.ImageStatus {
	return []images.ImageStatus{
		{Image: domain.ImageDescriptor{Name: "a", Reference: "repo/a:1"}, Exists: true},
		{Image: domain.ImageDescriptor{Name: "b", Reference: "repo/b:1"}, Exists: false},
	}
}

func (fakeImages) DownloadMissing(context.Context, images.ProgressFunc) []images.PullResult {
	return []images.PullResult{{Image: "repo/b:1", Name: "b", Success: true}}
}

type fakeRuntime struct{}

func (fakeRuntime) Status(context.Context) container.RuntimeStatus {
	return container.RuntimeStatus{Installed: true, Version: "Docker version 27.0.1", DaemonRunning: true}
}

type fakeSteps []domain.Step

func (f fakeSteps) Configured() []domain.Step { return f }

// --- Helpers ---

type testEnv struct {
	mux        *http.ServeMux
	stores     *repo.Stores
	workflows  *fakeWorkflows
	containers *fakeContainers
}

func newTestEnv(t *testing.T, withCanceller bool) *testEnv {
	t.Helper()

	stores, err := repo.Open(context.Background(), repo.Config{Driver: repo.DriverBadger, InMemory: true})
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	env := &testEnv{
		mux:        http.NewServeMux(),
		stores:     stores,
		workflows:  &fakeWorkflows{},
		containers: &fakeContainers{},
	}

	cfg := Config{
		Projects:   stores.Projects,
		Tasks:      stores.Tasks,
		Workflows:  env.workflows,
		Containers: env.containers,
		Images:     fakeImages{},
		Runtime:    fakeRuntime{},
		Steps:      fakeSteps{domain.Step1, domain.Step3},
	}
	if withCanceller {
		cfg.Canceller = &fakeCanceller{stores: stores}
	}
	NewHandler(cfg).RegisterRoutes(env.mux)
	return env
}

func (e *testEnv) seed(t *testing.T, params map[string]any) (*domain.Project, *domain.Task) {
	t.Helper()
	ctx := context.Background()

	project := domain.NewProject("Demo", map[string]any{domain.ParamStep: "1"})
	require.NoError(t, e.stores.Projects.Create(ctx, project))

	task := domain.NewTask(project.ID, domain.Step1, params)
	require.NoError(t, e.stores.Tasks.Create(ctx, task))
	return project, task
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Error *ErrorDetail    `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

// --- Project Handler Tests ---

func TestListProjects(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t, nil)
	env.seed(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/projects?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var projects []ProjectResponse
	require.NoError(t, json.Unmarshal(body.Data, &projects))
	assert.Len(t, projects, 1)
	assert.Equal(t, 1, body.Total)
}

func TestListProjects_BadQuery(t *testing.T) {
	env := newTestEnv(t, false)

	for _, q := range []string{"status=done", "limit=-1", "limit=x", "offset=-2"} {
		rec, body := env.do(t, http.MethodGet, "/api/v1/projects?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		require.NotNil(t, body.Error, q)
		assert.Equal(t, ErrCodeBadRequest, body.Error.Code)
	}
}

func TestGetProject(t *testing.T) {
	env := newTestEnv(t, false)
	project, _ := env.seed(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/projects/"+project.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got ProjectResponse
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, project.ID, got.ID)
	assert.Equal(t, "Demo", got.Name)
	assert.Equal(t, domain.StatusRunning, got.Status)

	rec, body = env.do(t, http.MethodGet, "/api/v1/projects/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "project not found", body.Error.Message)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/projects/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProject_Cascades(t *testing.T) {
	env := newTestEnv(t, false)
	project, task := env.seed(t, nil)

	rec, _ := env.do(t, http.MethodDelete, "/api/v1/projects/"+project.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/projects/"+project.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProjectTasks(t *testing.T) {
	env := newTestEnv(t, false)
	project, task := env.seed(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/projects/"+project.ID.String()+"/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []TaskResponse
	require.NoError(t, json.Unmarshal(body.Data, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/projects/"+uuid.NewString()+"/tasks", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Task Handler Tests ---

func TestListTasks_Filters(t *testing.T) {
	env := newTestEnv(t, false)
	project, _ := env.seed(t, nil)
	env.seed(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/tasks?project_id="+project.ID.String()+"&status=running", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []TaskResponse
	require.NoError(t, json.Unmarshal(body.Data, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, project.ID, tasks[0].ProjectID)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/tasks?project_id=bad", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTask_ExposesContainerID(t *testing.T) {
	env := newTestEnv(t, false)
	_, task := env.seed(t, map[string]any{domain.ParamContainerID: "c0ffee"})

	rec, body := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got TaskResponse
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, "c0ffee", got.ContainerID)
	assert.Equal(t, "1", got.Step)
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t, false)
	project, task := env.seed(t, nil)

	rec, _ := env.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Project остаётся
	rec, _ = env.do(t, http.MethodGet, "/api/v1/projects/"+project.ID.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTaskLogs_FromFile(t *testing.T) {
	env := newTestEnv(t, false)

	logFile := filepath.Join(t.TempDir(), "step1.log")
	require.NoError(t, os.WriteFile(logFile, []byte("=== Container start: step1_demo ===\n=== Log follow: step1_demo ===\n[STDOUT] hello\n"), 0o644))
	_, task := env.seed(t, map[string]any{domain.ParamLogFile: logFile, domain.ParamContainerName: "step1_demo"})

	rec, body := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID.String()+"/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var logs LogsResponse
	require.NoError(t, json.Unmarshal(body.Data, &logs))
	assert.Equal(t, "file", logs.Source)
	assert.Equal(t, logFile, logs.Path)
	assert.Contains(t, logs.Content, "hello")
}

func TestGetTaskLogs_FallsBackToContainer(t *testing.T) {
	env := newTestEnv(t, false)
	env.containers.logs = "from docker\n"
	_, task := env.seed(t, map[string]any{
		domain.ParamLogFile:       filepath.Join(t.TempDir(), "missing.log"),
		domain.ParamContainerName: "step1_demo",
	})

	rec, body := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID.String()+"/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var logs LogsResponse
	require.NoError(t, json.Unmarshal(body.Data, &logs))
	assert.Equal(t, "container", logs.Source)
	assert.Equal(t, "from docker\n", logs.Content)
}

func TestGetTaskLogs_StartOnlyFileUsesContainer(t *testing.T) {
	env := newTestEnv(t, false)
	env.containers.logs = "full output\n"

	logFile := filepath.Join(t.TempDir(), "step1.log")
	require.NoError(t, os.WriteFile(logFile, []byte("=== Container start: step1_demo ===\n[STDOUT] cid\n=== Container start finished with exit code: 0 ===\n"), 0o644))
	_, task := env.seed(t, map[string]any{domain.ParamLogFile: logFile, domain.ParamContainerName: "step1_demo"})

	rec, body := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID.String()+"/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var logs LogsResponse
	require.NoError(t, json.Unmarshal(body.Data, &logs))
	assert.Equal(t, "container", logs.Source)
	assert.Equal(t, "full output\n", logs.Content)
}

func TestGetTaskLogs_ContainerGoneServesFile(t *testing.T) {
	env := newTestEnv(t, false)
	env.containers.err = errors.New("No such container: step1_demo")

	logFile := filepath.Join(t.TempDir(), "step1.log")
	require.NoError(t, os.WriteFile(logFile, []byte("=== Container start: step1_demo ===\n[STDOUT] cid\n"), 0o644))
	_, task := env.seed(t, map[string]any{domain.ParamLogFile: logFile, domain.ParamContainerName: "step1_demo"})

	rec, body := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID.String()+"/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var logs LogsResponse
	require.NoError(t, json.Unmarshal(body.Data, &logs))
	assert.Equal(t, "file", logs.Source)
	assert.Contains(t, logs.Content, "[STDOUT] cid")
}

func TestGetTaskLogs_ContainerErrorWithoutFile(t *testing.T) {
	env := newTestEnv(t, false)
	env.containers.err = errors.New("daemon down")
	_, task := env.seed(t, map[string]any{domain.ParamContainerName: "step1_demo"})

	rec, _ := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID.String()+"/logs", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetTaskLogs_NoLogs(t *testing.T) {
	env := newTestEnv(t, false)
	_, task := env.seed(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID.String()+"/logs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopTask_WithCanceller(t *testing.T) {
	env := newTestEnv(t, true)
	_, task := env.seed(t, map[string]any{domain.ParamContainerID: "c0ffee"})

	rec, body := env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got TaskResponse
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "container stopped", got.Parameters[domain.ParamError])
}

func TestStopTask_CancellerErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{orchestrator.ErrTaskFinished, http.StatusUnprocessableEntity},
		{orchestrator.ErrNoContainer, http.StatusUnprocessableEntity},
		{repo.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			env := newTestEnv(t, false)
			env.mux = http.NewServeMux()
			NewHandler(Config{
				Projects:  env.stores.Projects,
				Tasks:     env.stores.Tasks,
				Canceller: &fakeCanceller{err: tt.err},
			}).RegisterRoutes(env.mux)

			rec, _ := env.do(t, http.MethodPost, "/api/v1/tasks/"+uuid.NewString()+"/stop", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStopTask_WithoutCanceller(t *testing.T) {
	env := newTestEnv(t, false)
	_, task := env.seed(t, map[string]any{domain.ParamContainerName: "step1_demo"})

	rec, body := env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"step1_demo"}, env.containers.stopped)

	// Статус обновит наблюдатель контейнера
	var got TaskResponse
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, domain.StatusRunning, got.Status)

	_, bare := env.seed(t, nil)
	rec, _ = env.do(t, http.MethodPost, "/api/v1/tasks/"+bare.ID.String()+"/stop", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// --- Run Handler Tests ---

const runBody = `{"project_name":"Demo Run!","input_path":"/data/in","output_path":"/data/out"}`

func TestRunStep_Success(t *testing.T) {
	env := newTestEnv(t, false)
	project := domain.NewProject("Demo Run!", nil)
	task := domain.NewTask(project.ID, domain.Step2, nil)
	env.workflows.result = orchestrator.Result{Success: true, Project: project, Task: task, ContainerID: "c0ffee"}

	rec, body := env.do(t, http.MethodPost, "/api/v1/steps/step2/runs", runBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []domain.Step{domain.Step2}, env.workflows.steps)

	var got RunResponse
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.True(t, got.Success)
	assert.Equal(t, "c0ffee", got.ContainerID)
	require.NotNil(t, got.Task)
	assert.Equal(t, task.ID, got.Task.ID)
	assert.Equal(t, project.ID, got.Project.ID)
}

func TestRunStep_WorkflowFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.workflows.result = orchestrator.Result{Error: "E"}

	rec, body := env.do(t, http.MethodPost, "/api/v1/steps/1/runs", runBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var got RunResponse
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.False(t, got.Success)
	assert.Equal(t, "E", got.Error)
}

func TestRunStep_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown step", "/api/v1/steps/7/runs", runBody},
		{"invalid json", "/api/v1/steps/1/runs", "{"},
		{"missing input", "/api/v1/steps/1/runs", `{"project_name":"x","output_path":"/o"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			rec, body := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, body.Error)
			assert.Empty(t, env.workflows.steps)
		})
	}
}

// --- Runtime Handler Tests ---

func TestImagesAndRuntime(t *testing.T) {
	env := newTestEnv(t, false)

	rec, body := env.do(t, http.MethodGet, "/api/v1/images", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []images.ImageStatus
	require.NoError(t, json.Unmarshal(body.Data, &statuses))
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Exists)
	assert.False(t, statuses[1].Exists)

	rec, body = env.do(t, http.MethodPost, "/api/v1/images/pull", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pulls []images.PullResult
	require.NoError(t, json.Unmarshal(body.Data, &pulls))
	assert.Equal(t, []images.PullResult{{Image: "repo/b:1", Name: "b", Success: true}}, pulls)

	rec, body = env.do(t, http.MethodGet, "/api/v1/runtime", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status RuntimeResponse
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.True(t, status.DaemonRunning)
	assert.Equal(t, "Docker version 27.0.1", status.Version)
	assert.Equal(t, []string{"1", "3"}, status.ConfiguredSteps)
}

func TestGetRuntime_WithoutSteps(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(Config{Runtime: fakeRuntime{}}).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runtime", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"configured_steps":[]`)
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t, false)

	rec, _ := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec, _ = env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- Middleware Tests ---

func TestRecovery(t *testing.T) {
	h := NewHandler(Config{})
	handler := Recovery(h.logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(mark("a"), mark("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

// --- HandleRepoError Tests ---

func TestHandleRepoError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", repo.ErrNotFound), http.StatusNotFound},
		{repo.ErrAlreadyExists, http.StatusConflict},
		{fmt.Errorf("%w: name", orchestrator.ErrInvalidParams), http.StatusBadRequest},
		{repo.ErrInvalidState, http.StatusUnprocessableEntity},
		{errors.New("disk"), http.StatusInternalServerError},
	}

	h := NewHandler(Config{})
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		assert.True(t, HandleRepoError(rec, h.logger, tt.err, "nope"))
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}

	assert.False(t, HandleRepoError(httptest.NewRecorder(), h.logger, nil, ""))
}
