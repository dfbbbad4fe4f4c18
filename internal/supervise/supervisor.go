// Package supervise runs a child process under post-mortem crash capture.
//
// The supervisor creates an anonymous sink, passes it to the child as an
// inherited descriptor named by CRASHSHIP_CRASH_FD, and tees the child's
// stderr into a bounded tail buffer. When the child exits abnormally the
// sink (or, if the child died before installing its handler, the stderr
// tail) becomes the payload of a finalized report set.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	adapterlog "github.com/spoolworks/crashship/internal/adapters/log"
	"github.com/spoolworks/crashship/internal/collector"
	"github.com/spoolworks/crashship/internal/domain"
	"github.com/spoolworks/crashship/internal/ports"
	"github.com/spoolworks/crashship/pkg/panicfd"
)

const (
	// DefaultRestartDelay is the pause before relaunching a crashed child.
	DefaultRestartDelay = 5 * time.Second

	// DefaultStderrTail bounds the stderr fallback payload.
	DefaultStderrTail = 64 << 10

	// termGrace is how long a canceled child gets between SIGTERM and
	// the hard kill.
	termGrace = 10 * time.Second
)

// Config describes one supervised command.
type Config struct {
	// Command is the child argv; Command[0] is the executable.
	Command []string

	// Restart relaunches the child after an abnormal exit. Clean exits
	// always end supervision.
	Restart bool

	// RestartDelay is the pause before a relaunch. Zero selects
	// DefaultRestartDelay.
	RestartDelay time.Duration

	// MaxRestarts caps relaunches; zero means unlimited. Only abnormal
	// exits count.
	MaxRestarts int

	// StderrTail is how many bytes of child stderr to keep as the
	// fallback payload. Zero selects DefaultStderrTail.
	StderrTail int

	// Stdout and Stderr receive the child's output. Nil selects the
	// supervisor's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Supervisor launches and watches one child command.
type Supervisor struct {
	cfg       Config
	collector ports.CrashCollector
	logger    ports.Logger
}

// New creates a supervisor for the given command.
func New(cfg Config, crashes ports.CrashCollector, logger ports.Logger) (*Supervisor, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("supervise: empty command")
	}
	if crashes == nil {
		return nil, errors.New("supervise: nil collector")
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.StderrTail <= 0 {
		cfg.StderrTail = DefaultStderrTail
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if logger == nil {
		logger = adapterlog.NewNoopLogger()
	}
	return &Supervisor{cfg: cfg, collector: crashes, logger: logger}, nil
}

// Run launches the child and supervises it until it exits for good or ctx
// is canceled. The returned code is the last child's exit status, for the
// caller to mirror.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	restarts := 0
	for {
		code, crashed, err := s.runOnce(ctx)
		if err != nil || !crashed || !s.cfg.Restart {
			return code, err
		}

		restarts++
		if s.cfg.MaxRestarts > 0 && restarts > s.cfg.MaxRestarts {
			s.logger.Warn("restart budget exhausted",
				ports.Int("restarts", restarts-1),
				ports.Int("exit_code", code))
			return code, nil
		}

		s.logger.Info("restarting after abnormal exit",
			ports.Int("restart", restarts),
			ports.Duration("delay", s.cfg.RestartDelay))
		select {
		case <-ctx.Done():
			return code, ctx.Err()
		case <-time.After(s.cfg.RestartDelay):
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) (code int, crashed bool, err error) {
	sink, err := newCrashSink()
	if err != nil {
		return 0, false, err
	}
	defer sink.Close()

	execName := filepath.Base(s.cfg.Command[0])
	tail := &tailBuffer{max: s.cfg.StderrTail}

	cmd := exec.CommandContext(ctx, s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = s.cfg.Stdout
	cmd.Stderr = io.MultiWriter(s.cfg.Stderr, tail)
	// The first extra file lands at descriptor 3 in the child.
	cmd.ExtraFiles = []*os.File{sink}
	cmd.Env = append(os.Environ(), panicfd.EnvCrashFD+"=3")
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = termGrace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return 0, false, fmt.Errorf("supervise: start %s: %w", execName, err)
	}
	pid := cmd.Process.Pid
	s.logger.Info("child started",
		ports.String("exec", execName), ports.Int("pid", pid))

	waitErr := cmd.Wait()
	if waitErr == nil {
		s.logger.Info("child exited cleanly",
			ports.String("exec", execName),
			ports.Duration("uptime", time.Since(start)))
		return 0, false, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 0, false, fmt.Errorf("supervise: wait for %s: %w", execName, waitErr)
	}
	code = exitStatus(exitErr)

	if ctx.Err() != nil {
		// The supervisor signaled the child itself; a shutdown is not
		// a crash.
		return code, false, ctx.Err()
	}

	s.logger.Warn("child exited abnormally",
		ports.String("exec", execName),
		ports.Int("pid", pid),
		ports.Int("exit_code", code),
		ports.Duration("uptime", time.Since(start)))

	payload, readErr := readSink(sink)
	if readErr != nil {
		s.logger.Error("read crash sink", ports.Err(readErr))
	}
	if len(payload) == 0 {
		// The child died before its handler installed, or it is not a
		// Go program at all. The stderr tail is the best artifact left.
		payload = tail.Bytes()
	}
	if len(payload) == 0 {
		s.logger.Warn("abnormal exit left no crash output",
			ports.String("exec", execName), ports.Int("pid", pid))
		return code, true, nil
	}

	crash := domain.RawCrash{
		Exec:       execName,
		PID:        pid,
		Trace:      payload,
		CapturedAt: time.Now(),
	}
	if _, err := s.collector.Finalize(ctx, crash); err != nil &&
		!errors.Is(err, domain.ErrNoConsent) && !errors.Is(err, collector.ErrFiltered) {
		s.logger.Error("finalize crash report", ports.Err(err))
	}
	return code, true, nil
}

func readSink(f *os.File) ([]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("supervise: rewind sink: %w", err)
	}
	return io.ReadAll(f)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte {
	return t.buf
}
