//go:build !linux

package supervise

import (
	"fmt"
	"os"
)

// newCrashSink falls back to an unlinked temp file where memfd is not
// available.
func newCrashSink() (*os.File, error) {
	f, err := os.CreateTemp("", "crashship-crash-sink-*")
	if err != nil {
		return nil, fmt.Errorf("supervise: create sink: %w", err)
	}
	// Best effort; the descriptor stays usable either way.
	_ = os.Remove(f.Name())
	return f, nil
}
