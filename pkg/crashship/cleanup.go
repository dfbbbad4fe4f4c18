package crashship

import (
	"time"

	"github.com/spoolworks/crashship/internal/app"
)

// CleanupConfig holds configuration options for automatic spool cleanup.
// When enabled, the agent periodically measures the reports directory and
// removes the oldest report sets once it exceeds the high watermark,
// stopping at the low watermark. Stale pending artifacts are pruned in the
// same pass.
type CleanupConfig struct {
	// Enabled controls whether automatic cleanup runs. Default: false
	Enabled bool

	// CheckInterval is how often the spool size is checked.
	// Default: 6 hours
	CheckInterval time.Duration

	// HighWatermark is the reports directory size, in bytes, above which
	// cleanup begins. Default: 256 MiB
	HighWatermark int64

	// LowWatermark is the target size, in bytes, cleanup trims down to.
	// Default: 192 MiB
	LowWatermark int64

	// PendingMaxAge is how old a pending artifact may grow before it is
	// removed as abandoned. Default: 24 hours
	PendingMaxAge time.Duration

	// LedgerMaxAge is how long upload ledger rows are retained before a
	// cleanup pass prunes them. Default: 7 days
	LedgerMaxAge time.Duration
}

// DefaultCleanupConfig returns a CleanupConfig with cleanup enabled and
// default thresholds.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Enabled:       true,
		CheckInterval: app.DefaultCleanupInterval,
		HighWatermark: app.DefaultHighWatermark,
		LowWatermark:  app.DefaultLowWatermark,
		PendingMaxAge: app.DefaultPendingMaxAge,
		LedgerMaxAge:  app.DefaultLedgerMaxAge,
	}
}

// WithCleanupConfig enables automatic spool cleanup with the given
// configuration. Zero values fall back to defaults.
func WithCleanupConfig(cfg CleanupConfig) Option {
	if !cfg.Enabled {
		return func(o *options) {} // No-op if not enabled
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = app.DefaultCleanupInterval
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = app.DefaultHighWatermark
	}
	if cfg.LowWatermark <= 0 {
		cfg.LowWatermark = app.DefaultLowWatermark
	}
	if cfg.PendingMaxAge <= 0 {
		cfg.PendingMaxAge = app.DefaultPendingMaxAge
	}
	if cfg.LedgerMaxAge <= 0 {
		cfg.LedgerMaxAge = app.DefaultLedgerMaxAge
	}
	return func(o *options) {
		o.cleanupConfig = &cfg
	}
}
