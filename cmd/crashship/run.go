package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spoolworks/crashship/internal/adapters/fs"
	adapterlog "github.com/spoolworks/crashship/internal/adapters/log"
	"github.com/spoolworks/crashship/internal/cliconfig"
	"github.com/spoolworks/crashship/internal/collector"
	"github.com/spoolworks/crashship/internal/consent"
	"github.com/spoolworks/crashship/internal/supervise"
)

var runHelp = strings.TrimSpace(`
Launch a command under crash capture.

The child inherits a crash sink descriptor (CRASHSHIP_CRASH_FD); Go
programs instrumented with the panicfd package write their panic trace
to it. Children that die before installing a handler fall back to a
bounded stderr tail. Abnormal exits are finalized into the spool for
the shipping daemon to deliver later.

crashship run mirrors the child's exit code.
`)

func newRunCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	var (
		restart      bool
		restartDelay time.Duration
		maxRestarts  int
	)

	cmd := &cobra.Command{
		Use:     "run -- <command> [args...]",
		Short:   "Run a command under crash capture",
		Long:    runHelp,
		Example: strings.TrimSpace("  crashship run -- ./myserver --port 8080\n  crashship run --restart --max-restarts 5 -- ./worker"),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}

			logger := adapterlog.NewZerologAdapterWithLogger(cliconfig.Logger())

			spool := fs.NewSpool(cfg.SpoolDir, 0, 0)
			if err := spool.EnsureDirs(); err != nil {
				return fmt.Errorf("prepare spool: %w", err)
			}
			consentStore := consent.NewStore(cfg.StateDir, cfg.RunStateDir)
			coll := collector.New(spool, consentStore, logger, collector.Options{
				RunStateDir: cfg.RunStateDir,
				Version:     getVersion(),
			})

			sup, err := supervise.New(supervise.Config{
				Command:      args,
				Restart:      restart,
				RestartDelay: restartDelay,
				MaxRestarts:  maxRestarts,
			}, coll, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			code, err := sup.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			exitCode = code
			return nil
		},
	}

	// Everything after -- belongs to the child.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVar(&restart, "restart", false, "relaunch the command after abnormal exits")
	cmd.Flags().DurationVar(&restartDelay, "restart-delay", supervise.DefaultRestartDelay, "pause before a relaunch")
	cmd.Flags().IntVar(&maxRestarts, "max-restarts", 0, "cap on relaunches (0 = unlimited)")
	return cmd
}
