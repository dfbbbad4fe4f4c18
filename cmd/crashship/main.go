package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/spoolworks/crashship/internal/cliconfig"
	"github.com/spoolworks/crashship/pkg/crashship"
	pkglog "github.com/spoolworks/crashship/pkg/log"
	"github.com/spoolworks/crashship/plugins/consentwatch"
)

const helpBanner = `
  ____  ____      _     ____   _   _  ____   _   _  ___  ____
 / ___||  _ \    / \   / ___| | | | |/ ___| | | | ||_ _||  _ \
| |    | |_) |  / _ \  \___ \ | |_| |\___ \ | |_| | | | | |_) |
| |___ |  _ <  / ___ \  ___) ||  _  | ___) ||  _  | | | |  __/
 \____||_| \_\/_/   \_\|____/ |_| |_||____/ |_| |_||___||_|
`

const helpDescription = `
Capture your processes' crashes, spool them locally, and ship sanitized
reports to spoolworks.io once the user has opted in.

Highlights:
  - Crash artifacts land on disk first; delivery survives restarts and offline hosts.
  - Nothing leaves the machine without a recorded consent grant.
  - Daily count/byte caps and CPU gating keep the agent invisible in production.
  - Requires a spoolworks API key—read the docs or email us.

Docs: https://docs.spoolworks.io/getting-started
Contact: support@spoolworks.io
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  crashship --spool-dir /var/spool/crashship --auth-key <api-key>
  crashship run -- ./myserver --port 8080
  crashship consent grant
  crashship --config $HOME/.crashship/config.toml --once
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// exitCode is what main exits with after a clean Execute. The run
// subcommand sets it to mirror the child's exit status.
var exitCode int

// resolveConfig finishes cfg for a command: config file first (default
// $HOME/.crashship/config.toml), then CRASHSHIP_* environment variables,
// with explicitly set flags winning over both.
func resolveConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	// Build set of changed flags
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}

	// Validate and set derived defaults
	return cfg.Validate()
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "crashship",
		Short:   "Capture, spool, and ship crash reports without getting in the way",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}

			hi := cliconfig.ReadHostInfo()

			// Log configuration (masking API key)
			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			log.Info().
				Interface("config", logCfg).
				Str("hostname", hi.Hostname).
				Str("os_release", hi.OSRelease).
				Msg("configuration")

			libCfg := crashship.Config{
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
			}

			// Create zerolog adapter for the library
			zerologAdapter := pkglog.NewZerologAdapterWithLogger(log)

			agent, err := crashship.New(libCfg,
				crashship.WithLogger(zerologAdapter),
				// Report consent changes as they happen
				consentwatch.WithConsentWatcher(consentwatch.DefaultConfig()),
				// Keep the spool inside its disk budget
				crashship.WithCleanupConfig(crashship.DefaultCleanupConfig()),
				// Hold sends while the host is busy
				crashship.WithResourceGatingConfig(crashship.ResourceGatingConfig{
					Enabled:      true,
					CPUThreshold: cfg.CPUThreshold,
				}),
			)
			if err != nil {
				return fmt.Errorf("create crashship: %w", err)
			}
			defer agent.Close()

			// Setup signal handling for graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := agent.Start(ctx); err != nil {
				return fmt.Errorf("start crashship: %w", err)
			}

			// Create done channel to detect completion
			doneCh := make(chan struct{})
			go func() {
				// Poll for completion (for once mode)
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						status := agent.Status()
						if status == crashship.StateStopped || status == crashship.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			// In once mode the run loop's exit ends the process; as a
			// daemon only a signal or a crash does.
			runDone := agent.Done()
			if !cfg.Once {
				runDone = nil
			}

			// Wait for signal or completion
			select {
			case <-sigCh:
				log.Info().Msg("received signal, stopping...")
			case <-runDone:
			case <-doneCh:
				if agent.Status() == crashship.StateCrashed {
					log.Error().Msg("crashship crashed")
				}
			}

			// Graceful shutdown
			if err := agent.Stop(); err != nil {
				return fmt.Errorf("stop crashship: %w", err)
			}
			return nil
		},
	}

	// Flags shared by every subcommand
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.crashship/config.toml)")
	root.PersistentFlags().StringVar(&cfg.SpoolDir, "spool-dir", cfg.SpoolDir, "spool directory for crash artifacts")

	root.PersistentFlags().StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, fmt.Sprintf("base service URL (defaults to %s; override only for internal testing)", cliconfig.DefaultServiceURL))
	if err := root.PersistentFlags().MarkHidden("service-url"); err != nil {
		log.Info().Err(err).Msg("failed to hide service-url flag")
	}
	root.PersistentFlags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for authentication")

	root.PersistentFlags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for consent and the send ledger (defaults to <spool-dir>/state)")
	if err := root.PersistentFlags().MarkHidden("state-dir"); err != nil {
		log.Info().Err(err).Msg("failed to hide state-dir flag")
	}

	// Daemon-only flags
	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "poll interval when idle")
	root.Flags().DurationVar(&cfg.SendInterval, "send-interval", cfg.SendInterval, "soft send interval")
	root.Flags().DurationVar(&cfg.HardInterval, "hard-interval", cfg.HardInterval, "hard send interval (override gating)")
	root.Flags().Int64Var(&cfg.MaxReportBytes, "max-report-bytes", cfg.MaxReportBytes, "maximum bytes per crash report")
	root.Flags().IntVar(&cfg.MaxPerDay, "max-per-day", cfg.MaxPerDay, "maximum reports sent per 24h window")

	root.Flags().Float64Var(&cfg.CPUThreshold, "cpu-threshold", cfg.CPUThreshold, "max CPU usage fraction before delaying send")

	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	root.Flags().BoolVar(&cfg.Verify, "verify", cfg.Verify, "verify report digests while scanning (debug)")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "process available reports and exit")
	root.Flags().BoolVar(&cfg.IgnoreHoldOff, "ignore-hold-off", cfg.IgnoreHoldOff, "skip the post-crash hold-off delay (debug)")
	root.Flags().BoolVar(&cfg.IgnorePauseFile, "ignore-pause-file", cfg.IgnorePauseFile, "send even when the pause file is present (debug)")

	root.AddCommand(
		newRunCmd(&cfg, &cfgPath),
		newServeCmd(),
		newStatusCmd(&cfg, &cfgPath),
		newConsentCmd(&cfg, &cfgPath),
	)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("crashship")
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
