/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"context"
	"fmt"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	"github.com/spf13/cobra"
)

type deleteClient interface {
	Delete(ctx context.Context, id int) error
}

// NewDeleteCmd creates the delete command with explicit dependencies.
func NewDeleteCmd(client deleteClient) *cobra.Command {
	if client == nil {
		panic("NewDeleteCmd: client dependency cannot be nil")
	}

	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Long: `Delete a notification on the backend by ID.

USAGE:
    pharmacy-notify delete <id>

OPTIONS:
    -h, --help           Show this help`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			if err := client.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			colors.Success(fmt.Sprintf("Notification %d deleted", id))
			return nil
		},
	}
}

var deleteCmd = NewDeleteCmd(client)

func init() {
	cmd.RootCmd.AddCommand(deleteCmd)
}
