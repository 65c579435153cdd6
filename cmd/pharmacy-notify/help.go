/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"fmt"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/spf13/cobra"
)

// NewHelpCmd creates the help command.
func NewHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Show this help message",
		Long:  `Show this help message, or the help of a command.`,
		RunE: func(c *cobra.Command, args []string) error {
			root := c.Root()
			if len(args) == 0 {
				cmd.PrintHelp(root, c.OutOrStdout())
				return nil
			}
			target, _, err := root.Find(args)
			if err != nil || target == nil || target == root {
				cmd.PrintHelp(root, c.OutOrStdout())
				return nil
			}
			fmt.Fprintln(c.OutOrStdout(), target.Long)
			return nil
		},
	}
}

var helpCmd = NewHelpCmd()

func init() {
	cmd.RootCmd.SetHelpCommand(helpCmd)
}
