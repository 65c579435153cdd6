/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"os"

	"github.com/cristianoliveira/pharmacy-notify/cmd"
	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
)

type closer interface {
	Close() error
}

// run executes the command line and returns the process exit code.
func run(args []string, execute func() error, c closer) int {
	cmd.RootCmd.SetArgs(args)
	err := execute()
	if cerr := c.Close(); cerr != nil {
		colors.Debug("closing session: " + cerr.Error())
	}
	if err != nil {
		msg := err.Error()
		if pnerrors.Known(err) {
			msg = pnerrors.UserMessage(err)
		}
		colors.Error(msg)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], cmd.Execute, client))
}
