package app

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/spoolworks/crashship/internal/ports"
)

// Cleanup retention defaults.
const (
	DefaultCleanupInterval = 6 * time.Hour
	DefaultHighWatermark   = int64(1 << 28) // 256 MiB
	DefaultLowWatermark    = int64(3 << 26) // 192 MiB
	DefaultPendingMaxAge   = 24 * time.Hour
	DefaultLedgerMaxAge    = 7 * 24 * time.Hour
)

// CleanupConfig holds retention settings for the spool cleanup runner.
type CleanupConfig struct {
	CheckInterval  time.Duration
	HighWatermark  int64
	LowWatermark   int64
	PendingMaxAge  time.Duration
	LedgerMaxAge   time.Duration
	RunImmediately bool
}

// CleanupRunner trims the report spool when it grows beyond the high
// watermark, removing the oldest report sets whole until the directory
// shrinks below the low watermark. Stale pending artifacts and expired
// upload ledger rows are removed in the same pass.
type CleanupRunner struct {
	checkInterval  time.Duration
	highWatermark  int64
	lowWatermark   int64
	pendingMaxAge  time.Duration
	ledgerMaxAge   time.Duration
	runImmediately bool

	reports ports.ReportSpool
	pending ports.PendingSpool
	ledger  ports.UploadLedger
	logger  ports.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCleanupRunner creates a cleanup runner. Zero config values fall back
// to the package defaults. A nil ledger skips the ledger pruning step.
func NewCleanupRunner(cfg CleanupConfig, reports ports.ReportSpool, pending ports.PendingSpool, ledger ports.UploadLedger, logger ports.Logger) *CleanupRunner {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCleanupInterval
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = DefaultHighWatermark
	}
	if cfg.LowWatermark <= 0 {
		cfg.LowWatermark = DefaultLowWatermark
	}
	if cfg.PendingMaxAge <= 0 {
		cfg.PendingMaxAge = DefaultPendingMaxAge
	}
	if cfg.LedgerMaxAge <= 0 {
		cfg.LedgerMaxAge = DefaultLedgerMaxAge
	}

	return &CleanupRunner{
		checkInterval:  cfg.CheckInterval,
		highWatermark:  cfg.HighWatermark,
		lowWatermark:   cfg.LowWatermark,
		pendingMaxAge:  cfg.PendingMaxAge,
		ledgerMaxAge:   cfg.LedgerMaxAge,
		runImmediately: cfg.RunImmediately,
		reports:        reports,
		pending:        pending,
		ledger:         ledger,
		logger:         logger,
	}
}

// Start launches the cleanup loop.
func (c *CleanupRunner) Start(ctx context.Context) {
	cleanupCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.loop(cleanupCtx)
}

// Stop terminates the cleanup loop and waits for it to finish.
func (c *CleanupRunner) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *CleanupRunner) loop(ctx context.Context) {
	defer c.wg.Done()

	if c.runImmediately {
		c.RunOnce(ctx)
	}

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single retention pass.
func (c *CleanupRunner) RunOnce(ctx context.Context) {
	c.prunePending(ctx)
	c.trimReports(ctx)
	c.pruneLedger(ctx)
}

// pruneLedger drops upload records older than the retention age. The rate
// limiter only looks back one window, so expired rows are dead weight.
func (c *CleanupRunner) pruneLedger(ctx context.Context) {
	if c.ledger == nil {
		return
	}
	pruned, err := c.ledger.Prune(ctx, c.ledgerMaxAge)
	if err != nil {
		c.logger.Error("ledger cleanup failed", ports.Err(err))
		return
	}
	if pruned > 0 {
		c.logger.Info("ledger cleanup removed expired uploads",
			ports.Int64("removed", pruned))
	}
}

// prunePending removes pending artifacts older than the configured age.
// Anything that old was either already finalized or will never complete.
func (c *CleanupRunner) prunePending(ctx context.Context) {
	artifacts, err := c.pending.ListPending(ctx)
	if err != nil {
		c.logger.Error("spool cleanup: list pending failed", ports.Err(err))
		return
	}

	now := time.Now()
	removed := 0
	for _, artifact := range artifacts {
		if ctx.Err() != nil {
			return
		}
		if now.Sub(artifact.ModTime) <= c.pendingMaxAge {
			continue
		}
		if err := c.pending.RemovePending(ctx, artifact); err != nil {
			c.logger.Error("spool cleanup: remove pending failed",
				ports.Err(err), ports.String("path", artifact.Path))
			continue
		}
		removed++
	}

	if removed > 0 {
		c.logger.Info("spool cleanup removed stale pending artifacts",
			ports.Int("removed", removed))
	}
}

// trimReports drops the oldest report sets until the reports directory is
// below the low watermark.
func (c *CleanupRunner) trimReports(ctx context.Context) {
	curSize, err := c.reports.TotalBytes(ctx)
	if err != nil {
		c.logger.Error("spool cleanup: size check failed", ports.Err(err))
		return
	}
	if curSize <= c.highWatermark {
		return
	}

	sets, err := c.reports.Scan(ctx)
	if err != nil {
		c.logger.Error("spool cleanup: scan failed", ports.Err(err))
		return
	}
	if len(sets) == 0 {
		return
	}

	freed := int64(0)
	for _, report := range sets {
		if ctx.Err() != nil {
			return
		}
		if curSize <= c.lowWatermark {
			break
		}

		setBytes := report.PayloadBytes
		if fi, err := os.Stat(report.MetaPath); err == nil {
			setBytes += fi.Size()
		}

		if err := c.reports.Remove(ctx, report); err != nil {
			c.logger.Error("spool cleanup: remove failed",
				ports.Err(err), ports.String("report", report.Basename))
			continue
		}
		curSize -= setBytes
		freed += setBytes
	}

	if freed > 0 {
		c.logger.Info("spool cleanup completed",
			ports.Int64("bytes_freed", freed),
			ports.Int64("bytes_remaining", curSize))
	}
}
