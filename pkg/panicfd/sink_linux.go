//go:build linux

package panicfd

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const memfdName = "crashship-panic-sig"

// newMemSink creates an anonymous memory-backed sink via memfd_create(2).
// The descriptor is close-on-exec so child processes do not inherit it by
// accident; supervisors that want inheritance clear the flag themselves.
func newMemSink() (*os.File, string, error) {
	fd, err := unix.MemfdCreate(memfdName, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, "", fmt.Errorf("panicfd: memfd_create: %w", err)
	}
	return os.NewFile(uintptr(fd), memfdName), "", nil
}

// validFD reports whether fd is an open descriptor in this process.
func validFD(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}
