/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/cristianoliveira/pharmacy-notify/internal/app"
	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	"github.com/spf13/cobra"
)

type runClient interface {
	Run(ctx context.Context, opts app.RunOptions) error
}

type pollClient interface {
	runClient
	SetPollInterval(ctx context.Context, interval time.Duration) error
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
var signalContext = func(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// NewRunCmd creates the run command with explicit dependencies.
func NewRunCmd(client runClient) *cobra.Command {
	if client == nil {
		panic("NewRunCmd: client dependency cannot be nil")
	}

	var noPoll bool
	var addr string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Receive notifications until interrupted",
		Long: `Serve the push relay, run auto-setup and poll the backend until
interrupted. Pushes are POSTed to /v1/push/{token} on the relay address.

USAGE:
    pharmacy-notify run [--addr host:port] [--no-poll]

OPTIONS:
    --addr <host:port>   Relay listen address (default: relay_addr)
    --no-poll            Do not start the polling fallback
    -h, --help           Show this help`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.DefaultRunOptions()
			if addr != "" {
				opts.Addr = addr
			}
			if noPoll {
				opts.Poll = false
			}
			opts.Ready = func() {
				colors.Info(fmt.Sprintf("Listening for notifications on %s (Ctrl+C to stop)...", opts.Addr))
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			if err := client.Run(ctx, opts); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return nil
		},
	}
	runCmd.Flags().StringVar(&addr, "addr", "", "Relay listen address")
	runCmd.Flags().BoolVar(&noPoll, "no-poll", false, "Do not start the polling fallback")

	return runCmd
}

// NewPollCmd creates the poll command with explicit dependencies.
func NewPollCmd(client pollClient) *cobra.Command {
	if client == nil {
		panic("NewPollCmd: client dependency cannot be nil")
	}

	var interval time.Duration
	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll the backend for unread notifications",
		Long: `Poll the unread endpoint and show new notifications until interrupted.
No push relay is started.

USAGE:
    pharmacy-notify poll [--interval 30s]

OPTIONS:
    --interval <dur>     Polling interval, saved for later runs
    -h, --help           Show this help`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			if interval > 0 {
				if err := client.SetPollInterval(ctx, interval); err != nil {
					return fmt.Errorf("poll: %w", err)
				}
			}
			err := client.Run(ctx, app.RunOptions{
				Poll:  true,
				Ready: func() { colors.Info("Polling for notifications (Ctrl+C to stop)...") },
			})
			if err != nil {
				return fmt.Errorf("poll: %w", err)
			}
			return nil
		},
	}
	pollCmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval")

	return pollCmd
}

var (
	runCmd  = NewRunCmd(client)
	pollCmd = NewPollCmd(client)
)

func init() {
	cmd.RootCmd.AddCommand(runCmd, pollCmd)
}
