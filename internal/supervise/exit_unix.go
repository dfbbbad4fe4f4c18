//go:build unix

package supervise

import (
	"os/exec"
	"syscall"
)

// exitStatus maps a child's abnormal exit onto the shell convention:
// 128+signal for signal deaths, the plain status otherwise.
func exitStatus(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return err.ExitCode()
}
