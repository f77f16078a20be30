//go:build !unix

package procutil

import "os/exec"

// SetGracefulShutdown is a no-op on non-Unix platforms; cmd.Cancel defaults
// to killing the process outright.
func SetGracefulShutdown(cmd *exec.Cmd) {
	_ = cmd
}
