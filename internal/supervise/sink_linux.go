//go:build linux

package supervise

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// newCrashSink creates the anonymous memory file handed to the child. The
// descriptor is close-on-exec in the supervisor; ExtraFiles re-dups it into
// the child without the flag.
func newCrashSink() (*os.File, error) {
	fd, err := unix.MemfdCreate("crashship-crash-sink", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("supervise: memfd_create: %w", err)
	}
	return os.NewFile(uintptr(fd), "crashship-crash-sink"), nil
}
