package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spoolworks/crashship/internal/cliconfig"
	"github.com/spoolworks/crashship/internal/ingest"
)

var serveHelp = strings.TrimSpace(`
Run a local collection endpoint that accepts what the agent ships:
crash report uploads, consent notifications, and a listing API for
received reports. Reports are stored on disk under --data-dir.

Meant for development and air-gapped deployments; point the agent at it
with CRASHSHIP_SERVICE_URL or the config file.
`)

func newServeCmd() *cobra.Command {
	var cfg ingest.Config

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run a local crash report collection endpoint",
		Long:    serveHelp,
		Example: strings.TrimSpace("  crashship serve --data-dir ./received\n  crashship serve --addr :9090 --auth-token secret --data-dir /srv/crashes"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := ingest.New(cfg, cliconfig.Logger())
			if err != nil {
				return err
			}
			defer srv.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", ingest.DefaultAddr, "listen address")
	cmd.Flags().StringVar(&cfg.DataDir, "data-dir", "", "directory for received reports")
	cmd.Flags().StringVar(&cfg.AuthToken, "auth-token", "", "bearer token required on /v1 (empty disables auth)")
	_ = cmd.MarkFlagRequired("data-dir")
	return cmd
}
