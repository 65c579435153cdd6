/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss/table"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/spf13/cobra"
)

type historyClient interface {
	History(ctx context.Context, limit int) ([]storage.DeliveryRow, error)
	Duplicates(ctx context.Context) ([]storage.Duplicate, error)
}

type cleanupClient interface {
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// NewHistoryCmd creates the history command with explicit dependencies.
func NewHistoryCmd(client historyClient) *cobra.Command {
	if client == nil {
		panic("NewHistoryCmd: client dependency cannot be nil")
	}

	var limit int
	var duplicates bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List displayed notifications",
		Long: `List notifications that were displayed on this machine, newest first.

USAGE:
    pharmacy-notify history [--limit <n>] [--duplicates]

OPTIONS:
    --limit <n>          Maximum rows to show (default: 20)
    --duplicates         Show backend notifications displayed more than once
    -h, --help           Show this help`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if duplicates {
				dups, err := client.Duplicates(cmd.Context())
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
				if len(dups) == 0 {
					colors.Info("No duplicate deliveries")
					return nil
				}
				t := table.New().Headers("ID", "DELIVERIES", "CHANNELS")
				for _, d := range dups {
					t.Row(strconv.Itoa(d.NotificationID), strconv.Itoa(d.Deliveries), d.Channels)
				}
				fmt.Fprintln(w, t.Render())
				return nil
			}

			if limit <= 0 {
				return fmt.Errorf("history: limit must be a positive integer")
			}
			rows, err := client.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(rows) == 0 {
				colors.Info("No notifications displayed yet")
				return nil
			}
			t := table.New().Headers("SHOWN", "CHANNEL", "TYPE", "TAG", "TITLE")
			for _, r := range rows {
				t.Row(r.ShownAt.Local().Format("2006-01-02 15:04:05"), r.Channel, r.Type, r.Tag, r.Title)
			}
			fmt.Fprintln(w, t.Render())
			return nil
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to show")
	historyCmd.Flags().BoolVar(&duplicates, "duplicates", false, "Show notifications displayed more than once")

	return historyCmd
}

// NewCleanupCmd creates the cleanup command with explicit dependencies.
func NewCleanupCmd(client cleanupClient) *cobra.Command {
	if client == nil {
		panic("NewCleanupCmd: client dependency cannot be nil")
	}

	var olderThan time.Duration
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune the delivery history",
		Long: `Delete delivery history rows older than a duration.

USAGE:
    pharmacy-notify cleanup [--older-than <duration>]

OPTIONS:
    --older-than <d>     Age of rows to delete, e.g. 72h (default: history_retention)
    -h, --help           Show this help`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := olderThan
			if d == 0 {
				d = config.GetDuration("history_retention", 30*24*time.Hour)
			}
			if d <= 0 {
				return fmt.Errorf("cleanup: duration must be positive")
			}
			n, err := client.Cleanup(cmd.Context(), time.Now().Add(-d))
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			colors.Success(fmt.Sprintf("Removed %d history rows", n))
			return nil
		},
	}
	cleanupCmd.Flags().DurationVar(&olderThan, "older-than", 0, "Delete rows older than this duration")

	return cleanupCmd
}

var (
	historyCmd = NewHistoryCmd(client)
	cleanupCmd = NewCleanupCmd(client)
)

func init() {
	cmd.RootCmd.AddCommand(historyCmd, cleanupCmd)
}
