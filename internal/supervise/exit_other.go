//go:build !unix

package supervise

import "os/exec"

func exitStatus(err *exec.ExitError) int {
	return err.ExitCode()
}
