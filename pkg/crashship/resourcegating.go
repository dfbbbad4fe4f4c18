package crashship

import (
	"github.com/spoolworks/crashship/internal/resources"
)

// ResourceGatingConfig holds configuration options for resource gating.
// When enabled, the agent samples host CPU utilization before each send
// and defers delivery while the host is busy. Reports older than the hard
// interval are sent regardless, so gating delays uploads but never starves
// the spool.
type ResourceGatingConfig struct {
	// Enabled controls whether resource gating is active. Default: false
	Enabled bool

	// CPUThreshold is the CPU utilization fraction (0.0 to 1.0) above
	// which sending is deferred. Default: 0.85
	CPUThreshold float64
}

// DefaultResourceGatingConfig returns a ResourceGatingConfig with gating
// enabled at the default threshold.
func DefaultResourceGatingConfig() ResourceGatingConfig {
	return ResourceGatingConfig{
		Enabled:      true,
		CPUThreshold: resources.DefaultCPUThreshold,
	}
}

// WithResourceGatingConfig enables resource gating with the given
// configuration. Zero values fall back to defaults.
func WithResourceGatingConfig(cfg ResourceGatingConfig) Option {
	if !cfg.Enabled {
		return func(o *options) {} // No-op if not enabled
	}
	if cfg.CPUThreshold <= 0 || cfg.CPUThreshold > 1 {
		cfg.CPUThreshold = resources.DefaultCPUThreshold
	}
	return func(o *options) {
		o.resourceGatingConfig = &cfg
	}
}
