// Package crashship provides a crash reporting agent for services that
// must not be slowed down by their own telemetry.
//
// Example usage:
//
//	cfg := crashship.DefaultConfig()
//	cfg.SpoolDir = "/var/spool/crashship"
//	cfg.AuthKey = "your-api-key"
//	if err := crashship.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Run wires up the full agent: consent watching, spool cleanup, and CPU
// gating. Programs that need finer control over options, plugins, or the
// lifecycle should use the pkg/crashship facade directly.
package crashship

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/spoolworks/crashship/internal/cliconfig"
	agent "github.com/spoolworks/crashship/pkg/crashship"
	pkglog "github.com/spoolworks/crashship/pkg/log"
	"github.com/spoolworks/crashship/plugins/consentwatch"
)

// Config holds the configuration for the crash shipping agent.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Run starts the crash shipping agent with the given configuration.
// It blocks until the context is cancelled, the agent crashes, or, with
// cfg.Once set, the single sweep-and-send pass completes.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := agent.New(agent.Config{
		SpoolDir:        cfg.SpoolDir,
		StateDir:        cfg.StateDir,
		RunStateDir:     cfg.RunStateDir,
		ServiceURL:      cfg.ServiceURL,
		AuthKey:         cfg.AuthKey,
		PollInterval:    cfg.PollInterval,
		SendInterval:    cfg.SendInterval,
		HardInterval:    cfg.HardInterval,
		HTTPTimeout:     cfg.HTTPTimeout,
		MaxReportBytes:  cfg.MaxReportBytes,
		MaxPerDay:       cfg.MaxPerDay,
		MaxBytesPerDay:  cfg.MaxBytesPerDay,
		MaxHoldOff:      cfg.MaxHoldOff,
		Verify:          cfg.Verify,
		Once:            cfg.Once,
		IgnoreHoldOff:   cfg.IgnoreHoldOff,
		IgnorePauseFile: cfg.IgnorePauseFile,
	},
		agent.WithLogger(pkglog.NewZerologAdapterWithLogger(cliconfig.Logger())),
		consentwatch.WithDefaultConsentWatcher(),
		agent.WithCleanupConfig(agent.DefaultCleanupConfig()),
		agent.WithResourceGatingConfig(agent.ResourceGatingConfig{
			Enabled:      true,
			CPUThreshold: cfg.CPUThreshold,
		}),
	)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}

	runDone := a.Done()
	if !cfg.Once {
		runDone = nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return a.Stop()
		case <-runDone:
			return a.Stop()
		case <-ticker.C:
			switch a.Status() {
			case agent.StateStopped:
				return nil
			case agent.StateCrashed:
				return errors.New("crashship: agent crashed")
			}
		}
	}
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, set AuthKey before calling Run; SpoolDir defaults to
// /var/spool/crashship.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Logger returns the package-level zerolog logger used by the agent.
func Logger() zerolog.Logger {
	return cliconfig.Logger()
}

// DefaultServiceURL is the default endpoint for shipping crash reports.
const DefaultServiceURL = cliconfig.DefaultServiceURL
