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

type soundClient interface {
	PlaySound(ctx context.Context, typ string) error
	WriteSound(ctx context.Context, typ, path string) error
}

// NewSoundCmd creates the sound command with explicit dependencies.
func NewSoundCmd(client soundClient) *cobra.Command {
	if client == nil {
		panic("NewSoundCmd: client dependency cannot be nil")
	}

	var typ, out string
	soundCmd := &cobra.Command{
		Use:   "sound",
		Short: "Play or export a notification chime",
		Long: `Play the chime of a notification type, or write it as a WAV file.

USAGE:
    pharmacy-notify sound [--type <type>] [--out <file.wav>]

OPTIONS:
    --type <type>        Notification type (default: default)
    --out <file>         Write the chime to file instead of playing it
    -h, --help           Show this help`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out != "" {
				if err := client.WriteSound(cmd.Context(), typ, out); err != nil {
					return fmt.Errorf("sound: %w", err)
				}
				colors.Success(fmt.Sprintf("Chime written to %s", out))
				return nil
			}
			if err := client.PlaySound(cmd.Context(), typ); err != nil {
				return fmt.Errorf("sound: %w", err)
			}
			return nil
		},
	}
	soundCmd.Flags().StringVar(&typ, "type", "default", "Notification type")
	soundCmd.Flags().StringVar(&out, "out", "", "Write the chime to this WAV file")

	return soundCmd
}

var soundCmd = NewSoundCmd(client)

func init() {
	cmd.RootCmd.AddCommand(soundCmd)
}
