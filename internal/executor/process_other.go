// ABOUTME: Fallback for platforms without process groups
// ABOUTME: Cancellation kills only the shell itself

//go:build !unix

package executor

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

func killProcessGroup(proc *exec.Cmd) error {
	if proc.Process == nil {
		return nil
	}
	return proc.Process.Kill()
}
