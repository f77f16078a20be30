//go:build unix

// Package procutil configures graceful process termination for the Execute
// action (spec §4.9: "Execute actions receive terminate→kill escalation
// after a timeout"), grounded on the teacher's pk/exec_unix.go /
// pk/exec_other.go platform split.
package procutil

import (
	"os/exec"
	"syscall"
)

// SetGracefulShutdown arranges for cmd's context cancellation to send SIGINT
// first; WaitDelay (set by the caller) escalates to SIGKILL if the process
// hasn't exited in time.
func SetGracefulShutdown(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGINT)
	}
}
