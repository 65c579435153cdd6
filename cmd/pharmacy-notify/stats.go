/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/spf13/cobra"
)

type statsClient interface {
	Stats(ctx context.Context) (notification.Stats, error)
}

// NewStatsCmd creates the stats command with explicit dependencies.
func NewStatsCmd(client statsClient) *cobra.Command {
	if client == nil {
		panic("NewStatsCmd: client dependency cannot be nil")
	}

	var format string
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show notification counts",
		Long: `Show total, unread and read notification counts from the backend.

USAGE:
    pharmacy-notify stats [--format=text|json]

OPTIONS:
    --format <fmt>       Output format: text (default) or json
    -h, --help           Show this help`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			w := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			case "", "text":
				fmt.Fprintf(w, "total:  %d\nunread: %d\nread:   %d\n", stats.Total, stats.Unread, stats.Read)
				return nil
			default:
				return fmt.Errorf("stats: unknown format %q", format)
			}
		},
	}
	statsCmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return statsCmd
}

var statsCmd = NewStatsCmd(client)

func init() {
	cmd.RootCmd.AddCommand(statsCmd)
}
