// ABOUTME: Process-group handling on Unix: the shell leads its own group
// ABOUTME: Cancellation kills the group so grandchildren do not outlive the command

//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts proc in its own process group so cancellation can
// reach every process the shell spawned.
func setProcessGroup(proc *exec.Cmd) {
	if proc.SysProcAttr == nil {
		proc.SysProcAttr = &syscall.SysProcAttr{}
	}
	proc.SysProcAttr.Setpgid = true
}

// killProcessGroup sends SIGKILL to proc's whole process group.
func killProcessGroup(proc *exec.Cmd) error {
	if proc.Process == nil {
		return nil
	}
	pid := proc.Process.Pid
	if pid <= 0 {
		return proc.Process.Kill()
	}
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		return proc.Process.Kill()
	}
	return nil
}
