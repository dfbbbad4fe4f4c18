//go:build !linux

package panicfd

import (
	"fmt"
	"os"
)

// newMemSink falls back to a plain temp file on platforms without memfd.
// The file is removed by Close on a clean exit like a pending artifact.
func newMemSink() (*os.File, string, error) {
	file, err := os.CreateTemp("", "crashship-panic-*.sig")
	if err != nil {
		return nil, "", fmt.Errorf("panicfd: create sink: %w", err)
	}
	return file, file.Name(), nil
}

func validFD(fd int) bool {
	return fd >= 0
}
