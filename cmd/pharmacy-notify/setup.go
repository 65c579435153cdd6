/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"context"
	"fmt"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/provider"
	"github.com/spf13/cobra"
)

type setupClient interface {
	Setup(ctx context.Context) (provider.Snapshot, error)
}

// NewSetupCmd creates the setup command with explicit dependencies.
func NewSetupCmd(client setupClient) *cobra.Command {
	if client == nil {
		panic("NewSetupCmd: client dependency cannot be nil")
	}

	return &cobra.Command{
		Use:   "setup",
		Short: "Enable push notifications",
		Long: `Ask for notification permission, register the messaging worker,
obtain a push token and send it to the backend.

USAGE:
    pharmacy-notify setup

OPTIONS:
    -h, --help           Show this help`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := client.Setup(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "state: %s\npermission: %s\n", snap.State, snap.Permission)
			if err != nil {
				pnerrors.Report(pnerrors.NewDefaultCLIHandler(), err)
				return fmt.Errorf("setup: %w", err)
			}
			colors.Success("Push notifications enabled")
			return nil
		},
	}
}

var setupCmd = NewSetupCmd(client)

func init() {
	cmd.RootCmd.AddCommand(setupCmd)
}
