package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spoolworks/crashship/internal/cliconfig"
	"github.com/spoolworks/crashship/internal/consent"
)

var consentHelp = strings.TrimSpace(`
Manage the consent record. Crash reports are collected locally either
way, but nothing is uploaded until consent is granted. Granting mints a
random client id that accompanies every upload; revoking deletes it.

The agent notices consent changes while running, no restart needed.
`)

func newConsentCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Manage crash reporting consent",
		Long:  consentHelp,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "grant",
			Short: "Grant consent and print the client id",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := resolveConfig(cmd, cfg, *cfgPath); err != nil {
					return err
				}
				store := consent.NewStore(cfg.StateDir, cfg.RunStateDir)
				id, err := store.Grant()
				if err != nil {
					return fmt.Errorf("grant consent: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "consent granted, client id %s\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "revoke",
			Short: "Revoke consent and discard the client id",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := resolveConfig(cmd, cfg, *cfgPath); err != nil {
					return err
				}
				store := consent.NewStore(cfg.StateDir, cfg.RunStateDir)
				if err := store.Revoke(); err != nil {
					return fmt.Errorf("revoke consent: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "consent revoked")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the current consent state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := resolveConfig(cmd, cfg, *cfgPath); err != nil {
					return err
				}
				store := consent.NewStore(cfg.StateDir, cfg.RunStateDir)
				if store.Granted() {
					fmt.Fprintf(cmd.OutOrStdout(), "granted, client id %s\n", store.ClientID())
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "not granted")
				}
				return nil
			},
		},
	)
	return cmd
}
