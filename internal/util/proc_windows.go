//go:build windows

package util

import (
	"os/exec"
	"syscall"
)

// SetDetachedProcess configures the command to run in its own process
// group, detached from the daemon's so a signal to the daemon does not
// propagate to spawned script runners.
func SetDetachedProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// Terminate has no graceful-signal equivalent on Windows; killing is the
// only option exec.Cmd exposes here.
func Terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
