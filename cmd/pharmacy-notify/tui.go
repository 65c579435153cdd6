/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"context"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/spf13/cobra"
)

type tuiClient interface {
	RunTUI(ctx context.Context) error
}

// NewTUICmd creates the tui command with explicit dependencies.
func NewTUICmd(client tuiClient) *cobra.Command {
	if client == nil {
		panic("NewTUICmd: client dependency cannot be nil")
	}

	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive inbox",
		Long: `Open the interactive inbox of unread notifications.

While the inbox is open the push relay runs in foreground mode: incoming
pushes refresh the list instead of raising a system notification.

KEYS:
    j/k, up/down         Move the cursor
    g/G                  Jump to first or last row
    r                    Refresh
    m                    Mark selected as read
    a                    Mark all as read
    d                    Delete selected
    s                    Enable notifications
    q, esc               Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return client.RunTUI(ctx)
		},
	}
}

var tuiCmd = NewTUICmd(client)

func init() {
	cmd.RootCmd.AddCommand(tuiCmd)
}
