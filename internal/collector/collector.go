// Package collector finalizes raw crash artifacts into report sets.
//
// Raw artifacts arrive two ways: crashing processes leave pending files in
// the spool (the handler's unsupervised path), and the supervisor hands over
// captured traces directly. Either way the collector applies the consent and
// filter gates, extracts the crash signature, enriches the metadata with
// host facts, and writes the finalized set through the spool.
package collector

import (
	"context"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/spoolworks/crashship/internal/domain"
	"github.com/spoolworks/crashship/internal/ports"
)

// FilterFileName is the run-state file that narrows handling to matching
// executables. Its content is a single token; the token "none" suppresses
// all handling.
const FilterFileName = "filter-in"

// DefaultEmptyGrace is how long an empty pending file may exist before the
// sweep removes it. Processes that exit cleanly without reaching their
// handler's Close, or die before the runtime writes the trace, leave these.
const DefaultEmptyGrace = time.Minute

// ErrFiltered is returned when the filter file excludes the executable.
var ErrFiltered = errors.New("crashship: crash filtered out")

// HostInfoFunc supplies host facts for meta enrichment. Injectable for tests.
type HostInfoFunc func() (hostname, osRelease string, uptimeSec uint64)

// Options tunes collector behavior. Zero values select the defaults.
type Options struct {
	// RunStateDir holds the filter file; empty disables filtering.
	RunStateDir string

	// EmptyGrace overrides DefaultEmptyGrace.
	EmptyGrace time.Duration

	// Version is recorded as ver= when the crash carries none.
	Version string

	// HostInfo overrides the gopsutil-backed host facts source.
	HostInfo HostInfoFunc
}

// Collector implements ports.CrashCollector.
type Collector struct {
	spool      ports.PendingSpool
	consent    ports.ConsentStore
	logger     ports.Logger
	runState   string
	emptyGrace time.Duration
	version    string
	hostInfo   HostInfoFunc
}

// New creates a collector over the given spool and consent store.
func New(spool ports.PendingSpool, consentStore ports.ConsentStore, logger ports.Logger, opts Options) *Collector {
	if opts.EmptyGrace <= 0 {
		opts.EmptyGrace = DefaultEmptyGrace
	}
	if opts.Version == "" {
		opts.Version = "unknown"
	}
	if opts.HostInfo == nil {
		opts.HostInfo = gopsutilHostInfo
	}
	return &Collector{
		spool:      spool,
		consent:    consentStore,
		logger:     logger,
		runState:   opts.RunStateDir,
		emptyGrace: opts.EmptyGrace,
		version:    opts.Version,
		hostInfo:   opts.HostInfo,
	}
}

// Sweep processes every pending artifact once. Finalized and consent-denied
// artifacts are removed; filtered and failed ones stay for a later pass (the
// cleanup runner ages them out eventually).
func (c *Collector) Sweep(ctx context.Context) (int, error) {
	pending, err := c.spool.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for _, artifact := range pending {
		select {
		case <-ctx.Done():
			return finalized, ctx.Err()
		default:
		}

		if artifact.Size == 0 {
			if time.Since(artifact.ModTime) > c.emptyGrace {
				if err := c.spool.RemovePending(ctx, artifact); err == nil {
					c.logger.Debug("removed empty pending artifact",
						ports.String("path", artifact.Path))
				}
			}
			continue
		}

		trace, err := c.spool.ReadPending(ctx, artifact)
		if err != nil {
			c.logger.Warn("read pending artifact",
				ports.String("path", artifact.Path), ports.Err(err))
			continue
		}

		crash := domain.RawCrash{
			Exec:       artifact.Exec,
			PID:        artifact.PID,
			Trace:      trace,
			CapturedAt: artifact.CreatedAt,
		}
		_, err = c.Finalize(ctx, crash)
		switch {
		case errors.Is(err, domain.ErrNoConsent):
			c.spool.RemovePending(ctx, artifact)
		case errors.Is(err, ErrFiltered):
			// Not ours to handle; leave it.
		case err != nil:
			c.logger.Error("finalize crash",
				ports.String("exec", artifact.Exec), ports.Err(err))
		default:
			finalized++
			c.spool.RemovePending(ctx, artifact)
		}
	}
	return finalized, nil
}

// Finalize turns one raw crash into a finalized report set.
func (c *Collector) Finalize(ctx context.Context, crash domain.RawCrash) (domain.Report, error) {
	if !c.consent.Granted() {
		c.logger.Info("no consent, not handling crash",
			ports.String("exec", crash.Exec), ports.Int("pid", crash.PID))
		return domain.Report{}, domain.ErrNoConsent
	}

	execName := domain.SanitizeExecName(crash.Exec)
	if skip, token := c.filteredOut(execName); skip {
		c.logger.Debug("crash filtered out",
			ports.String("exec", execName), ports.String("filter", token))
		return domain.Report{}, ErrFiltered
	}

	capturedAt := crash.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	ver := crash.Ver
	if ver == "" {
		ver = c.version
	}
	hostname, osRelease, uptime := c.hostInfo()

	meta := domain.Meta{
		ExecName:     execName,
		Ver:          ver,
		Sig:          domain.ExtractSignature(crash.Trace),
		PID:          crash.PID,
		OSRelease:    osRelease,
		UptimeSec:    uptime,
		Hostname:     hostname,
		ClientID:     c.consent.ClientID(),
		CapturedAt:   capturedAt,
		PayloadCRC32: crc32.ChecksumIEEE(crash.Trace),
	}

	report, err := c.spool.WriteReport(ctx, meta, crash.Trace)
	if err != nil {
		return domain.Report{}, err
	}
	c.logger.Info("crash report finalized",
		ports.String("basename", report.Basename),
		ports.String("sig", meta.Sig),
		ports.Int64("payload_bytes", report.PayloadBytes))
	return report, nil
}

// filteredOut consults the filter file. A missing or empty file filters
// nothing.
func (c *Collector) filteredOut(execName string) (bool, string) {
	if c.runState == "" {
		return false, ""
	}
	data, err := os.ReadFile(filepath.Join(c.runState, FilterFileName))
	if err != nil {
		return false, ""
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return false, ""
	}
	if token == "none" {
		return true, token
	}
	return !strings.Contains(execName, token), token
}

func gopsutilHostInfo() (string, string, uint64) {
	info, err := host.Info()
	if err != nil {
		hostname, _ := os.Hostname()
		return hostname, runtime.GOOS, 0
	}
	release := info.Platform
	if info.PlatformVersion != "" {
		release += "-" + info.PlatformVersion
	}
	if release == "" {
		release = info.OS
	}
	return info.Hostname, release, info.Uptime
}
