/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/version"
	"github.com/spf13/cobra"
)

var (
	debugFlag bool
	quietFlag bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "pharmacy-notify",
	Short:         "Order, invoice and payment notifications for the pharmacy app.",
	Long:          `Order, invoice and payment notifications for the pharmacy app.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return Bootstrap(cmd.Name())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.ShutdownGlobal()
	},
}

// Bootstrap loads configuration, applies the global flags and starts the
// file logger.
func Bootstrap(command string) error {
	config.Load()
	if debugFlag {
		config.Set("debug", "true")
	}
	if quietFlag {
		config.Set("quiet", "true")
	}
	colors.SetDebug(config.GetBool("debug", false))
	colors.SetQuiet(config.GetBool("quiet", false))

	if err := logging.InitGlobal(command); err != nil {
		colors.Warning(fmt.Sprintf("file logging disabled: %v", err))
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.Version = version.String()

	// Hide the completion command
	RootCmd.CompletionOptions.HiddenDefaultCmd = true

	RootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != cmd.Root() {
			fmt.Fprintln(cmd.OutOrStdout(), cmd.Long)
			return
		}
		PrintHelp(cmd, cmd.OutOrStdout())
	})

	RootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Print debug output")
	RootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress info and success output")
}

// commandOrder is the order commands appear in the help text.
var commandOrder = []string{
	"login",
	"logout",
	"setup",
	"run",
	"poll",
	"tui",
	"stats",
	"mark-read",
	"mark-all-read",
	"delete",
	"test-notify",
	"sound",
	"history",
	"cleanup",
	"help",
	"version",
}

// PrintHelp writes the root help text to w.
func PrintHelp(cmd *cobra.Command, w io.Writer) {
	var cmdLines []string
	for _, name := range commandOrder {
		var found *cobra.Command
		for _, c := range cmd.Commands() {
			if c.Name() == name {
				found = c
				break
			}
		}
		if found == nil {
			continue
		}
		cmdLines = append(cmdLines, fmt.Sprintf("    %-20s %s", found.Use, found.Short))
	}

	fmt.Fprintf(w, `pharmacy-notify v%s

Order, invoice and payment notifications for the pharmacy app.

USAGE:
    pharmacy-notify [COMMAND] [OPTIONS]

COMMANDS:
%s

OPTIONS:
    --debug         Print debug output
    -q, --quiet     Suppress info and success output
    -h, --help      Show help message
`, version.String(), strings.Join(cmdLines, "\n"))
}
