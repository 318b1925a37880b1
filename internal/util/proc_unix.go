//go:build !windows

package util

import (
	"os/exec"
	"syscall"
)

// SetDetachedProcess configures the command to run in its own session,
// detached from the daemon's process group so a signal to the daemon does
// not propagate to spawned script runners.
func SetDetachedProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// Terminate sends SIGTERM, the first step of the terminate-then-kill grace
// policy (§4.5). The caller force-kills once the grace period elapses.
func Terminate(cmd *exec.Cmd) error {
	return cmd.Process.Signal(syscall.SIGTERM)
}
