// ABOUTME: Tests for shell command execution and outcome mapping
// ABOUTME: Requires a POSIX sh; skipped on Windows

package executor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shellcast/internal/command"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRun_Success(t *testing.T) {
	skipOnWindows(t)
	e := New(Options{})

	status := e.Run(t.Context(), "echo hi")
	assert.Equal(t, command.Completed{Output: "hi\n"}, status)
}

func TestRun_NonZeroExitCapturesStderr(t *testing.T) {
	skipOnWindows(t)
	e := New(Options{})

	status := e.Run(t.Context(), "echo out; echo oops >&2; exit 3")
	assert.Equal(t, command.Failed{Reason: "oops\n"}, status)
}

func TestRun_SpawnFailure(t *testing.T) {
	e := New(Options{Shell: "/definitely/not/a/shell"})

	status := e.Run(t.Context(), "echo hi")
	failed, ok := status.(command.Failed)
	require.True(t, ok, "got %v", status)
	assert.Contains(t, failed.Reason, "/definitely/not/a/shell")
}

func TestRun_DirAndEnv(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	e := New(Options{Dir: dir, Env: []string{"SHELLCAST_TEST=42"}})

	status := e.Run(t.Context(), `printf '%s %s' "$SHELLCAST_TEST" "$(pwd -P)"`)
	completed, ok := status.(command.Completed)
	require.True(t, ok, "got %v", status)
	assert.Contains(t, completed.Output, "42 ")
}

func TestRun_ContextCancelKills(t *testing.T) {
	skipOnWindows(t)
	e := New(Options{})

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	status := e.Run(ctx, "sleep 5")
	assert.Less(t, time.Since(start), 4*time.Second)
	failed, ok := status.(command.Failed)
	require.True(t, ok, "got %v", status)
	assert.Contains(t, failed.Reason, "interrupted")
}

func TestRun_ContextCancelKillsChildren(t *testing.T) {
	skipOnWindows(t)
	e := New(Options{})

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	// The shell cannot exec into sleep here, so sleep is its child and
	// holds the output pipes open unless the whole group is killed.
	start := time.Now()
	status := e.Run(ctx, "sleep 3; echo done")
	assert.Less(t, time.Since(start), 2*time.Second)
	failed, ok := status.(command.Failed)
	require.True(t, ok, "got %v", status)
	assert.Contains(t, failed.Reason, context.DeadlineExceeded.Error())
	assert.NotContains(t, failed.Reason, "done")
}

func TestRun_SilentFailureDescribesExit(t *testing.T) {
	skipOnWindows(t)
	e := New(Options{})

	assert.Equal(t, command.Failed{Reason: "exit status 2"}, e.Run(t.Context(), "exit 2"))

	status := e.Run(t.Context(), "kill -9 $$")
	assert.Equal(t, command.Failed{Reason: "signal: killed"}, status)
}

func TestExecute_OnlyPending(t *testing.T) {
	skipOnWindows(t)
	e := New(Options{})

	pending := command.Command{ID: "1", Cmd: "echo hi", Status: command.Pending{}}
	result, ok := e.Execute(t.Context(), pending)
	require.True(t, ok)
	assert.Equal(t, "1", result.ID)
	assert.Equal(t, "echo hi", result.Cmd)
	assert.Equal(t, command.Completed{Output: "hi\n"}, result.Status)

	done := pending.WithStatus(command.Completed{Output: "x"})
	same, ok := e.Execute(t.Context(), done)
	assert.False(t, ok)
	assert.Equal(t, done, same)
}
