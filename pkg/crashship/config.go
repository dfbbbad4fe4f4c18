package crashship

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spoolworks/crashship/internal/domain"
)

// DefaultServiceURL is the endpoint crash reports ship to when no other
// URL is configured.
const DefaultServiceURL = "https://api.spoolworks.io"

// Config holds the configuration for a Crashship instance. The zero value
// is not usable; at minimum SpoolDir must be set. SetDefaults fills in
// everything else.
type Config struct {
	// SpoolDir is the spool root. Crash artifacts land in pending/ and
	// sealed report sets in reports/ beneath it.
	SpoolDir string

	// StateDir holds the consent record, the upload ledger, and the
	// persisted agent state. Defaults to <SpoolDir>/state.
	StateDir string

	// RunStateDir holds runtime control files (pause, filter, mocks).
	// Defaults to <StateDir>/run.
	RunStateDir string

	// ServiceURL is the ingest endpoint base URL.
	ServiceURL string

	// AuthKey is sent as a bearer token with each upload. Empty disables
	// authentication.
	AuthKey string

	// PollInterval is how often the agent sweeps the pending directory.
	PollInterval time.Duration

	// SendInterval is the minimum time between send passes.
	SendInterval time.Duration

	// HardInterval is the report age beyond which resource gating no
	// longer defers sending.
	HardInterval time.Duration

	// HTTPTimeout bounds each upload request.
	HTTPTimeout time.Duration

	// MaxReportBytes drops payloads larger than this instead of sending
	// them.
	MaxReportBytes int64

	// MaxPerDay caps uploads in a rolling 24 hour window.
	MaxPerDay int

	// MaxBytesPerDay caps uploaded bytes in the same window.
	MaxBytesPerDay int64

	// MaxHoldOff is the upper bound of the random delay inserted before
	// each send pass.
	MaxHoldOff time.Duration

	// Verify checks payload checksums before sending.
	Verify bool

	// Once performs a single sweep and send pass, then returns.
	Once bool

	// IgnoreHoldOff disables the random pre-send delay.
	IgnoreHoldOff bool

	// IgnorePauseFile sends even when the pause control file is present.
	IgnorePauseFile bool
}

// SetDefaults fills in default values for unset fields. SpoolDir is left
// alone; Validate rejects a config without one.
func (c *Config) SetDefaults() {
	if c.StateDir == "" && c.SpoolDir != "" {
		c.StateDir = filepath.Join(c.SpoolDir, "state")
	}
	if c.RunStateDir == "" && c.StateDir != "" {
		c.RunStateDir = filepath.Join(c.StateDir, "run")
	}
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.SendInterval <= 0 {
		c.SendInterval = 30 * time.Second
	}
	if c.HardInterval <= 0 {
		c.HardInterval = 10 * time.Minute
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.MaxReportBytes <= 0 {
		c.MaxReportBytes = 1 << 20 // 1MB
	}
	if c.MaxPerDay <= 0 {
		c.MaxPerDay = 32
	}
	if c.MaxBytesPerDay <= 0 {
		c.MaxBytesPerDay = 24 << 20 // 24MB
	}
	if c.MaxHoldOff < 0 {
		c.MaxHoldOff = 0
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.SpoolDir == "" {
		return fmt.Errorf("%w: spool dir is required", domain.ErrInvalidConfig)
	}
	if c.ServiceURL == "" {
		return fmt.Errorf("%w: service url is required", domain.ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	if c.SendInterval <= 0 {
		return fmt.Errorf("%w: send interval must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxReportBytes <= 0 {
		return fmt.Errorf("%w: max report bytes must be positive", domain.ErrInvalidConfig)
	}
	return nil
}
