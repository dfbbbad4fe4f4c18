package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PendingArtifact is one raw crash sink in the pending directory, written by
// a crashing process (or handed over by the supervisor) and not yet turned
// into a report set.
type PendingArtifact struct {
	// Path is the absolute path of the pending file.
	Path string

	// Exec is the executable basename encoded in the filename, unsanitized.
	Exec string

	// PID is the writing process id encoded in the filename.
	PID int

	// CreatedAt is the creation time encoded in the filename.
	CreatedAt time.Time

	// Size is the current file size.
	Size int64

	// ModTime is the file's last modification time.
	ModTime time.Time
}

// PendingName builds the pending filename for a crash sink:
// <exec>.<pid>.<unixnano>.panic.
func PendingName(exec string, pid int, t time.Time) string {
	return fmt.Sprintf("%s.%d.%d.panic", exec, pid, t.UnixNano())
}

// ParsePendingName decodes a pending filename. The exec part may itself
// contain dots, so the pid and timestamp are taken from the right.
func ParsePendingName(name string) (exec string, pid int, created time.Time, err error) {
	const suffix = ".panic"
	if !strings.HasSuffix(name, suffix) {
		return "", 0, time.Time{}, fmt.Errorf("not a pending artifact: %q", name)
	}
	rest := strings.TrimSuffix(name, suffix)

	i := strings.LastIndexByte(rest, '.')
	if i < 0 {
		return "", 0, time.Time{}, fmt.Errorf("malformed pending name: %q", name)
	}
	nanos, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", 0, time.Time{}, fmt.Errorf("malformed pending timestamp in %q: %w", name, err)
	}
	rest = rest[:i]

	j := strings.LastIndexByte(rest, '.')
	if j < 0 {
		return "", 0, time.Time{}, fmt.Errorf("malformed pending name: %q", name)
	}
	pid, err = strconv.Atoi(rest[j+1:])
	if err != nil {
		return "", 0, time.Time{}, fmt.Errorf("malformed pending pid in %q: %w", name, err)
	}
	exec = rest[:j]
	if exec == "" {
		return "", 0, time.Time{}, fmt.Errorf("empty exec in pending name %q", name)
	}
	return exec, pid, time.Unix(0, nanos), nil
}

// RawCrash is a crash artifact on its way into the spool: the identity of
// the crashed process plus the captured trace. The collector finalizes it
// into a report set.
type RawCrash struct {
	// Exec is the crashed executable's basename, unsanitized.
	Exec string

	// PID is the crashed process id.
	PID int

	// Ver is the version reported for the crashed process, if known.
	Ver string

	// Trace is the captured runtime trace (or stderr tail fallback).
	Trace []byte

	// CapturedAt is when the crash was captured.
	CapturedAt time.Time
}
