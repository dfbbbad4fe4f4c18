package panicfd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"sync"
	"time"
)

// Environment variables honored by Install.
const (
	// EnvCrashFD names an inherited descriptor to use as the crash sink,
	// set by the crashship supervisor.
	EnvCrashFD = "CRASHSHIP_CRASH_FD"

	// EnvPendingDir names the pending spool directory for unsupervised
	// processes.
	EnvPendingDir = "CRASHSHIP_PENDING_DIR"
)

var (
	installMu sync.Mutex
	installed *Handler
)

// Handler is an installed crash capture sink.
type Handler struct {
	file      *os.File
	path      string // on-disk sink path, "" for memfd and inherited fds
	pending   bool   // path is a pending spool artifact
	inherited bool
}

// Install registers a crash capture sink for this process.
//
// The sink is chosen in order: the descriptor named by CRASHSHIP_CRASH_FD,
// a pending spool file when a pending directory is configured, else an
// anonymous memory file. Installing again replaces the previous sink.
func Install(opts ...Option) (*Handler, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.pendingDir == "" {
		o.pendingDir = os.Getenv(EnvPendingDir)
	}

	h, err := newHandler(o)
	if err != nil {
		return nil, err
	}

	if err := debug.SetCrashOutput(h.file, debug.CrashOptions{}); err != nil {
		h.discard()
		return nil, fmt.Errorf("panicfd: set crash output: %w", err)
	}

	if o.coreDump {
		// Raise SIGABRT with a core dump on fatal errors, on top of the
		// captured trace.
		debug.SetTraceback("crash")
	}

	installMu.Lock()
	installed = h
	installMu.Unlock()

	return h, nil
}

func newHandler(o options) (*Handler, error) {
	if v := os.Getenv(EnvCrashFD); v != "" {
		fd, err := strconv.Atoi(v)
		if err != nil || fd < 0 {
			return nil, fmt.Errorf("panicfd: bad %s value %q", EnvCrashFD, v)
		}
		if !validFD(fd) {
			return nil, fmt.Errorf("panicfd: %s names closed descriptor %d", EnvCrashFD, fd)
		}
		return &Handler{
			file:      os.NewFile(uintptr(fd), "crash-fd"),
			inherited: true,
		}, nil
	}

	if o.pendingDir != "" {
		file, path, err := openPending(o.pendingDir)
		if err != nil {
			return nil, err
		}
		return &Handler{file: file, path: path, pending: true}, nil
	}

	file, path, err := newMemSink()
	if err != nil {
		return nil, err
	}
	return &Handler{file: file, path: path}, nil
}

// openPending creates the pending spool artifact for this process.
func openPending(dir string) (*os.File, string, error) {
	name := fmt.Sprintf("%s.%d.%d.panic",
		sanitizeExec(executableBase()), os.Getpid(), time.Now().UnixNano())
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, "", fmt.Errorf("panicfd: open pending artifact: %w", err)
	}
	return file, path, nil
}

// File exposes the sink, for supervisors and tests that read it back.
func (h *Handler) File() *os.File {
	return h.file
}

// Path returns the sink's on-disk path, or "" when the sink is anonymous
// (memfd) or inherited.
func (h *Handler) Path() string {
	return h.path
}

// Close uninstalls the sink. A pending artifact that received no crash
// output is removed: the process is exiting cleanly, so there is nothing
// to collect. A crashed process never gets here.
func (h *Handler) Close() error {
	installMu.Lock()
	if installed == h {
		// Ignore the error: passing nil cannot fail, and a replacement
		// sink installed meanwhile must not be clobbered.
		_ = debug.SetCrashOutput(nil, debug.CrashOptions{})
		installed = nil
	}
	installMu.Unlock()

	return h.discard()
}

// discard releases the sink, removing an empty on-disk artifact.
func (h *Handler) discard() error {
	if h.file == nil {
		return nil
	}

	remove := false
	if h.path != "" {
		if fi, err := h.file.Stat(); err == nil && fi.Size() == 0 {
			remove = true
		}
	}

	err := h.file.Close()
	h.file = nil

	if remove {
		if rmErr := os.Remove(h.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}
	return err
}

func executableBase() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Base(exe)
	}
	return filepath.Base(os.Args[0])
}

// sanitizeExec maps the executable name onto the spool-safe alphabet:
// every byte outside [0-9A-Za-z] becomes '_'.
func sanitizeExec(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}
