package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spoolworks/crashship/internal/adapters/fs"
	"github.com/spoolworks/crashship/internal/adapters/sqlite"
	"github.com/spoolworks/crashship/internal/app"
	"github.com/spoolworks/crashship/internal/cliconfig"
	"github.com/spoolworks/crashship/internal/consent"
)

var statusHelp = strings.TrimSpace(`
Print what the agent knows: consent, spool backlog, lifetime counters
from the state file, and the send ledger's recent activity. Read-only;
safe to run next to a live agent.
`)

func newStatusCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show consent, spool backlog, and recent uploads",
		Long:  statusHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), *cfg)
		},
	}
}

func printStatus(w io.Writer, cfg cliconfig.Config) error {
	ctx := context.Background()

	consentStore := consent.NewStore(cfg.StateDir, cfg.RunStateDir)
	if consentStore.Granted() {
		fmt.Fprintf(w, "Consent:      granted (client %s)\n", consentStore.ClientID())
	} else {
		fmt.Fprintln(w, "Consent:      not granted")
	}

	if pausePath := filepath.Join(cfg.RunStateDir, app.PauseFileName); fileStatOK(pausePath) {
		fmt.Fprintf(w, "Sending:      paused (%s present)\n", pausePath)
	}

	spool := fs.NewSpool(cfg.SpoolDir, 0, 0)
	pending, err := spool.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	queuedBytes, err := spool.TotalBytes(ctx)
	if err != nil {
		return fmt.Errorf("spool size: %w", err)
	}
	fmt.Fprintf(w, "Spool:        %d pending artifacts, %d report bytes queued\n", len(pending), queuedBytes)

	stateRepo := fs.NewStateFileRepository(cfg.StateDir)
	st, err := stateRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	fmt.Fprintf(w, "Last sweep:   %s\n", fmtTime(st.LastSweep))
	fmt.Fprintf(w, "Last send:    %s\n", fmtTime(st.LastSend))
	if st.LastSendError != "" {
		fmt.Fprintf(w, "Last error:   %s\n", st.LastSendError)
	}
	fmt.Fprintf(w, "Lifetime:     %d collected, %d sent (%d bytes), %d dropped\n",
		st.TotalCollected, st.TotalSent, st.TotalSentBytes, st.TotalDropped)

	ledger, err := sqlite.Open(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	since := time.Now().Add(-24 * time.Hour)
	count, err := ledger.CountSince(ctx, since)
	if err != nil {
		return fmt.Errorf("ledger count: %w", err)
	}
	bytes, err := ledger.BytesSince(ctx, since)
	if err != nil {
		return fmt.Errorf("ledger bytes: %w", err)
	}
	fmt.Fprintf(w, "Last 24h:     %d sent, %d bytes\n", count, bytes)

	recent, err := ledger.Recent(ctx, 5)
	if err != nil {
		return fmt.Errorf("ledger recent: %w", err)
	}
	fmt.Fprintln(w, "Recent uploads:")
	if len(recent) == 0 {
		fmt.Fprintln(w, "  none")
		return nil
	}
	for _, rec := range recent {
		fmt.Fprintf(w, "  %s  %s  %d bytes  sig=%s\n",
			rec.SentAt.UTC().Format(time.RFC3339), rec.ExecName, rec.PayloadBytes, rec.Sig)
	}
	return nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func fileStatOK(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
