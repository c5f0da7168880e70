// ABOUTME: Runs a command line in a subordinate shell and maps the outcome to a terminal status.
// ABOUTME: Exit 0 is Completed(stdout); non-zero exit is Failed(stderr); spawn errors are Failed(err).

package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/2389/shellcast/internal/command"
)

// DefaultShell is used when Options.Shell is empty.
const DefaultShell = "sh"

// waitDelay bounds how long Run waits for output pipes to close after the
// process group has been killed.
const waitDelay = 2 * time.Second

// Options configures how commands are spawned.
type Options struct {
	Shell string   // interpreter invoked as "<Shell> -c <cmd>"
	Dir   string   // working directory; empty means the agent's own
	Env   []string // extra KEY=VALUE pairs appended to the agent's environment
}

// Executor runs shell commands.
type Executor struct {
	shell string
	dir   string
	env   []string
}

// New creates an Executor.
func New(opts Options) *Executor {
	shell := opts.Shell
	if shell == "" {
		shell = DefaultShell
	}
	return &Executor{
		shell: shell,
		dir:   opts.Dir,
		env:   opts.Env,
	}
}

// Run executes cmd and returns its terminal status. It never returns Pending.
// Cancelling ctx kills the shell and everything it started, which reports as Failed.
func (e *Executor) Run(ctx context.Context, cmd string) command.Status {
	proc := exec.CommandContext(ctx, e.shell, "-c", cmd)
	proc.Dir = e.dir
	if len(e.env) > 0 {
		proc.Env = append(os.Environ(), e.env...)
	}
	setProcessGroup(proc)
	proc.Cancel = func() error { return killProcessGroup(proc) }
	proc.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	err := proc.Run()
	if err == nil {
		return command.Completed{Output: stdout.String()}
	}

	if ctx.Err() != nil {
		return command.Failed{Reason: withStderr(fmt.Sprintf("interrupted: %v", context.Cause(ctx)), stderr.String())}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if stderr.Len() == 0 {
			// Killed by a signal or exited non-zero without a word.
			return command.Failed{Reason: exitErr.Error()}
		}
		return command.Failed{Reason: stderr.String()}
	}
	return command.Failed{Reason: err.Error()}
}

func withStderr(reason, stderr string) string {
	if strings.TrimSpace(stderr) == "" {
		return reason
	}
	return reason + "\n" + stderr
}

// Execute runs c if it is Pending and returns a copy carrying the result.
// Commands that already hold a terminal status are returned unchanged with ok=false.
func (e *Executor) Execute(ctx context.Context, c command.Command) (result command.Command, ok bool) {
	switch c.Status.(type) {
	case command.Pending:
		return c.WithStatus(e.Run(ctx, c.Cmd)), true
	case command.Completed, command.Failed:
		return c, false
	default:
		return c, false
	}
}
