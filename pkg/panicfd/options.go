package panicfd

// Option configures optional behavior of Install.
type Option func(*options)

type options struct {
	pendingDir string
	coreDump   bool
}

func defaultOptions() options {
	return options{}
}

// WithPendingDir makes Install write the crash sink as a pending spool
// artifact in dir, overriding the CRASHSHIP_PENDING_DIR environment
// variable.
func WithPendingDir(dir string) Option {
	return func(o *options) {
		o.pendingDir = dir
	}
}

// WithCoreDump sets the runtime traceback mode to "crash", so fatal
// errors terminate via SIGABRT and produce a core dump in addition to
// the captured trace.
func WithCoreDump() Option {
	return func(o *options) {
		o.coreDump = true
	}
}
