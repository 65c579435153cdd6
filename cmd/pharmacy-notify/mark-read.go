/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	"github.com/spf13/cobra"
)

type markReadClient interface {
	MarkRead(ctx context.Context, id int) error
}

type markAllReadClient interface {
	MarkAllRead(ctx context.Context) error
}

// parseID converts a notification id argument.
func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid notification id %q", arg)
	}
	return id, nil
}

// NewMarkReadCmd creates the mark-read command with explicit dependencies.
func NewMarkReadCmd(client markReadClient) *cobra.Command {
	if client == nil {
		panic("NewMarkReadCmd: client dependency cannot be nil")
	}

	return &cobra.Command{
		Use:   "mark-read <id>",
		Short: "Mark a notification as read",
		Long: `Mark a notification as read by ID.

USAGE:
    pharmacy-notify mark-read <id>

OPTIONS:
    -h, --help           Show this help`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return fmt.Errorf("mark-read: %w", err)
			}
			if err := client.MarkRead(cmd.Context(), id); err != nil {
				return fmt.Errorf("mark-read: %w", err)
			}
			colors.Success(fmt.Sprintf("Notification %d marked as read", id))
			return nil
		},
	}
}

// NewMarkAllReadCmd creates the mark-all-read command with explicit dependencies.
func NewMarkAllReadCmd(client markAllReadClient) *cobra.Command {
	if client == nil {
		panic("NewMarkAllReadCmd: client dependency cannot be nil")
	}

	return &cobra.Command{
		Use:   "mark-all-read",
		Short: "Mark every notification as read",
		Long:  `Mark every notification of the logged in user as read.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.MarkAllRead(cmd.Context()); err != nil {
				return fmt.Errorf("mark-all-read: %w", err)
			}
			colors.Success("All notifications marked as read")
			return nil
		},
	}
}

var (
	markReadCmd    = NewMarkReadCmd(client)
	markAllReadCmd = NewMarkAllReadCmd(client)
)

func init() {
	cmd.RootCmd.AddCommand(markReadCmd, markAllReadCmd)
}
