package container

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedClock = func() time.Time {
	return time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)
}

func newTestLauncher(handler func(ctx context.Context, call MockCall) *Result) (*Launcher, *MockRunner) {
	runner := NewMockRunner(handler)
	return NewLauncher(LauncherConfig{Runner: runner, Clock: fixedClock}), runner
}

// --- Launch Tests ---

func TestLauncher_Launch_DetachedWithLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "log", "run.log")

	l, runner := newTestLauncher(func(_ context.Context, call MockCall) *Result {
		switch call.Args[0] {
		case "run":
			return &Result{Success: true, Stdout: "abc123\n"}
		case "logs":
			return &Result{Success: true, Stdout: "processing\ndone\n", Stderr: "warning\n"}
		}
		return nil
	})

	res := l.Launch(context.Background(), LaunchSpec{
		Image:      "img:1",
		Name:       "step1-demo-1",
		Detached:   true,
		AutoRemove: true,
		LogFile:    logFile,
	})
	l.Close()

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "abc123", res.ContainerID)
	assert.Equal(t, "step1-demo-1", res.ContainerName)
	assert.Equal(t, logFile, res.LogFilePath)

	follow := runner.CallsTo("logs")
	require.Len(t, follow, 1)
	assert.Equal(t, []string{"logs", "-f", "abc123"}, follow[0].Args)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "=== Container start: step1-demo-1 ===\n")
	assert.Contains(t, content, "Command: docker run -d --rm --name step1-demo-1 img:1\n")
	assert.Contains(t, content, "Timestamp: 2024-04-05T12:00:00Z\n")
	assert.Contains(t, content, "[STDOUT] abc123\n")
	assert.Contains(t, content, "=== Container start finished with exit code: 0 ===\n")
	assert.Contains(t, content, "=== Log follow: step1-demo-1 ===\n")
	assert.Contains(t, content, "[STDOUT] processing\n")
	assert.Contains(t, content, "[STDERR] warning\n")
	assert.Contains(t, content, "=== Log follow finished with exit code: 0 ===\n")

	// Сессия старта целиком предшествует сессии follow
	assert.Less(t, strings.Index(content, "Container start finished"), strings.Index(content, "=== Log follow:"))
}

func TestHasFollowSession(t *testing.T) {
	startOnly := "=== Container start: n ===\n[STDOUT] abc\n=== Container start finished with exit code: 0 ===\n"
	assert.False(t, HasFollowSession(startOnly))
	assert.False(t, HasFollowSession(""))
	assert.True(t, HasFollowSession(startOnly+"=== Log follow: n ===\n[STDOUT] done\n"))
}

func TestLauncher_Launch_FailureWritesMarkers(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")

	l, runner := newTestLauncher(func(_ context.Context, call MockCall) *Result {
		return &Result{Success: false, ExitCode: 125, Stderr: "pull access denied\n", Error: "pull access denied"}
	})

	res := l.Launch(context.Background(), LaunchSpec{Image: "img", Name: "n", Detached: true, LogFile: logFile})
	l.Close()

	assert.False(t, res.Success)
	assert.Equal(t, "pull access denied", res.Error)
	assert.Empty(t, res.ContainerID)
	assert.Empty(t, runner.CallsTo("logs"), "follow must not start after a failed launch")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[STDERR] pull access denied\n")
	assert.Contains(t, string(data), "=== Container start finished with exit code: 125 ===\n")
}

func TestLauncher_Launch_SpawnErrorLogged(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")

	l, _ := newTestLauncher(func(_ context.Context, _ MockCall) *Result {
		return &Result{ExitCode: -1, Error: `exec: "docker": executable file not found in $PATH`}
	})

	res := l.Launch(context.Background(), LaunchSpec{Image: "img", Name: "n", LogFile: logFile})

	assert.False(t, res.Success)
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[ERROR] exec: \"docker\": executable file not found in $PATH\n")
	assert.Contains(t, string(data), "exit code: -1 ===")
}

func TestLauncher_Launch_InvalidSpec(t *testing.T) {
	l, runner := newTestLauncher(nil)

	res := l.Launch(context.Background(), LaunchSpec{Name: "n"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "image is required")
	assert.Empty(t, runner.Calls())
}

func TestLauncher_Launch_WithoutLogFile(t *testing.T) {
	l, runner := newTestLauncher(func(_ context.Context, _ MockCall) *Result {
		return &Result{Success: true, Stdout: "id-1\n"}
	})

	res := l.Launch(context.Background(), LaunchSpec{Image: "img", Name: "n", Detached: true})

	assert.True(t, res.Success)
	assert.Equal(t, "id-1", res.ContainerID)
	assert.Len(t, runner.Calls(), 1)
	assert.False(t, l.Following("id-1"))
}

func TestLauncher_Launch_DetachedWithoutID(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	l, runner := newTestLauncher(func(_ context.Context, _ MockCall) *Result {
		return &Result{Success: true}
	})
	defer l.Close()

	res := l.Launch(context.Background(), LaunchSpec{Image: "img", Name: "n", Detached: true, LogFile: logFile})

	assert.False(t, res.Success)
	assert.True(t, res.Detached)
	assert.Equal(t, ErrNoContainerID.Error(), res.Error)
	assert.Equal(t, "n", res.ContainerName)
	assert.Empty(t, runner.CallsTo("logs"))
}

func TestLauncher_Launch_AttachedResult(t *testing.T) {
	l, _ := newTestLauncher(func(_ context.Context, _ MockCall) *Result {
		return &Result{Success: true, Stdout: "done\n"}
	})
	defer l.Close()

	res := l.Launch(context.Background(), LaunchSpec{Image: "img", Name: "n"})

	require.True(t, res.Success, res.Error)
	assert.False(t, res.Detached)
	assert.Empty(t, res.ContainerID)
}

func TestLauncher_FollowOutlivesLaunchContext(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	started := make(chan struct{})
	finished := make(chan struct{})

	l, _ := newTestLauncher(func(ctx context.Context, call MockCall) *Result {
		if call.Args[0] != "logs" {
			return &Result{Success: true, Stdout: "cid\n"}
		}
		close(started)
		<-ctx.Done()
		close(finished)
		return &Result{ExitCode: -1, Error: ctx.Err().Error()}
	})

	ctx, cancel := context.WithCancel(context.Background())
	res := l.Launch(ctx, LaunchSpec{Image: "img", Name: "n", Detached: true, LogFile: logFile})
	require.True(t, res.Success, res.Error)
	<-started

	cancel()

	select {
	case <-finished:
		t.Fatal("log follow stopped with the launch context")
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, l.Following("cid"))

	l.Close()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop log follow")
	}
	assert.False(t, l.Following("cid"))
}

func TestLauncher_StopFollow(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	started := make(chan struct{})

	l, _ := newTestLauncher(func(ctx context.Context, call MockCall) *Result {
		if call.Args[0] == "logs" {
			close(started)
			<-ctx.Done()
			return &Result{ExitCode: -1, Error: ctx.Err().Error()}
		}
		return &Result{Success: true, Stdout: "cid\n"}
	})

	res := l.Launch(context.Background(), LaunchSpec{Image: "img", Name: "n", Detached: true, LogFile: logFile})
	require.True(t, res.Success)

	<-started
	assert.True(t, l.Following("cid"))
	assert.True(t, l.StopFollow("cid"))
	assert.False(t, l.Following("cid"))
	assert.False(t, l.StopFollow("cid"))
}

// --- Client Operations Tests ---

func TestLauncher_Wait(t *testing.T) {
	l, _ := newTestLauncher(func(_ context.Context, call MockCall) *Result {
		return &Result{Success: true, Stdout: "3\n"}
	})

	code, err := l.Wait(context.Background(), "cid")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestLauncher_Wait_Unavailable(t *testing.T) {
	l, _ := newTestLauncher(func(_ context.Context, _ MockCall) *Result {
		return &Result{Error: "No such container: cid", ExitCode: 1}
	})

	_, err := l.Wait(context.Background(), "cid")
	assert.ErrorIs(t, err, ErrExitCodeUnavailable)
}

func TestLauncher_StopRemoveLogs(t *testing.T) {
	l, runner := newTestLauncher(func(_ context.Context, call MockCall) *Result {
		if call.Args[0] == "logs" {
			return &Result{Success: true, Stdout: "out\n", Stderr: "err\n"}
		}
		return nil
	})
	ctx := context.Background()

	require.NoError(t, l.Stop(ctx, "n"))
	require.NoError(t, l.Remove(ctx, "n"))
	logs, err := l.Logs(ctx, "n")
	require.NoError(t, err)

	assert.Equal(t, "out\nerr\n", logs)
	calls := runner.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "docker stop n", calls[0].Command())
	assert.Equal(t, "docker rm -f n", calls[1].Command())
	assert.Equal(t, "docker logs n", calls[2].Command())
}

func TestLauncher_Stop_Error(t *testing.T) {
	l, _ := newTestLauncher(func(_ context.Context, _ MockCall) *Result {
		return &Result{ExitCode: 1, Error: "No such container: n"}
	})

	err := l.Stop(context.Background(), "n")
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "No such container")
}
