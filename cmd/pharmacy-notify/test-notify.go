/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/spf13/cobra"
)

type testNotifyClient interface {
	TestNotify(ctx context.Context, title, message, typ string) (bool, error)
}

// NewTestNotifyCmd creates the test-notify command with explicit dependencies.
func NewTestNotifyCmd(client testNotifyClient) *cobra.Command {
	if client == nil {
		panic("NewTestNotifyCmd: client dependency cannot be nil")
	}

	var typ, title, message string
	testNotifyCmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Show a local test notification",
		Long: fmt.Sprintf(`Show a local notification without contacting the backend.

USAGE:
    pharmacy-notify test-notify [--type <type>] [--title <text>] [--message <text>]

OPTIONS:
    --type <type>        One of: %s (default: info)
    --title <text>       Notification title
    --message <text>     Notification body
    -h, --help           Show this help`, strings.Join(notification.Types(), ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := title
			if subject == "" {
				subject = "Test " + notification.Lookup(typ).Name + " notification"
			}
			shown, err := client.TestNotify(cmd.Context(), subject, message, typ)
			if err != nil {
				return fmt.Errorf("test-notify: %w", err)
			}
			if !shown {
				colors.Warning("Notification not shown: permission is not granted")
				return nil
			}
			colors.Success("Test notification shown")
			return nil
		},
	}
	testNotifyCmd.Flags().StringVar(&typ, "type", "info", "Notification type")
	testNotifyCmd.Flags().StringVar(&title, "title", "", "Notification title")
	testNotifyCmd.Flags().StringVar(&message, "message", "This is a test notification", "Notification body")

	return testNotifyCmd
}

var testNotifyCmd = NewTestNotifyCmd(client)

func init() {
	cmd.RootCmd.AddCommand(testNotifyCmd)
}
