package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Novoflow/internal/config"
	"github.com/shaiso/Novoflow/internal/container"
	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/orchestrator"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.InMemory = true
	cfg.Runtime.UID = "1000"
	cfg.Runtime.GID = "1000"
	return cfg
}

func TestNew_RunAndWatch(t *testing.T) {
	exited := make(chan struct{})
	runner := container.NewMockRunner(func(ctx context.Context, call container.MockCall) *container.Result {
		switch call.Args[0] {
		case "run":
			return &container.Result{Success: true, Stdout: "cid42\n"}
		case "wait":
			select {
			case <-exited:
				return &container.Result{Success: true, Stdout: "0\n"}
			case <-ctx.Done():
				return &container.Result{ExitCode: -1, Error: ctx.Err().Error()}
			}
		}
		return nil
	})

	a, err := New(context.Background(), testConfig(), Options{Runner: runner})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Watcher)
	assert.Nil(t, a.MQ)

	res := a.Orchestrator.Run(context.Background(), domain.Step1, orchestrator.RunParams{
		ProjectName: "Demo Run!",
		InputPath:   t.TempDir(),
		OutputPath:  t.TempDir(),
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "cid42", res.ContainerID)

	close(exited)
	select {
	case <-a.Watcher.Done(res.Task.ID):
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not finish")
	}

	task, err := a.Stores.Tasks.GetByID(context.Background(), res.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, task.Status)

	project, err := a.Stores.Projects.GetByID(context.Background(), res.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, project.Status)

	// --rm заменён удалением после wait
	runs := runner.CallsTo("run")
	require.Len(t, runs, 1)
	assert.NotContains(t, runs[0].Args, "--rm")

	var order []string
	for _, call := range runner.Calls() {
		if len(call.Args) > 0 && (call.Args[0] == "wait" || call.Args[0] == "rm") {
			order = append(order, strings.Join(call.Args, " "))
		}
	}
	assert.Equal(t, []string{"wait cid42", "rm -f cid42"}, order)
}

func TestNew_AutoRemoveWithoutWatch(t *testing.T) {
	runner := container.NewMockRunner(func(_ context.Context, call container.MockCall) *container.Result {
		if call.Args[0] == "run" {
			return &container.Result{Success: true, Stdout: "cid7\n"}
		}
		return nil
	})

	cfg := testConfig()
	cfg.Workflow.Watch = false

	a, err := New(context.Background(), cfg, Options{Runner: runner})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Watcher)

	res := a.Orchestrator.Run(context.Background(), domain.Step1, orchestrator.RunParams{
		ProjectName: "p",
		InputPath:   t.TempDir(),
		OutputPath:  t.TempDir(),
	})
	require.True(t, res.Success, res.Error)

	runs := runner.CallsTo("run")
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Args, "--rm")
	assert.Empty(t, runner.CallsTo("rm"))
}

func TestNew_AttachedDisablesWatcher(t *testing.T) {
	cfg := testConfig()
	cfg.Workflow.Attached = true

	a, err := New(context.Background(), cfg, Options{Runner: container.NewMockRunner(nil)})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Watcher)
}

func TestNew_ConfiguredCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.Images = []config.ImageConfig{{Name: "S3", Reference: "s3:1", Step: "3"}}

	a, err := New(context.Background(), cfg, Options{Runner: container.NewMockRunner(nil)})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []domain.Step{domain.Step3}, a.Steps.Configured())
}

func TestQueryContext(t *testing.T) {
	a := &App{Config: testConfig()}

	ctx, cancel := a.QueryContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, time.Second)
}
