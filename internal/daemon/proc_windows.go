//go:build windows

package daemon

import "os"

func osFindProcess(pid int) (*os.Process, error) {
	return os.FindProcess(pid)
}

// osSignal0 approximates liveness on Windows, where os.FindProcess
// always succeeds regardless of whether the process exists.
func osSignal0(proc *os.Process) bool {
	return proc.Pid > 0
}
