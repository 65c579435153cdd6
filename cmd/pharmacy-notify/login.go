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

type loginClient interface {
	Login(ctx context.Context, token, user string) error
}

type logoutClient interface {
	Logout(ctx context.Context) error
}

// NewLoginCmd creates the login command with explicit dependencies.
func NewLoginCmd(client loginClient) *cobra.Command {
	if client == nil {
		panic("NewLoginCmd: client dependency cannot be nil")
	}

	var token, user string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Store the backend auth token",
		Long: `Store the backend auth token used for every request.

USAGE:
    pharmacy-notify login --token <token> [--user <id>]

OPTIONS:
    --token <token>      Auth token issued by the backend (required)
    --user <id>          User id sent along with push tokens
    -h, --help           Show this help`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Login(cmd.Context(), token, user); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			colors.Success("Logged in")
			return nil
		},
	}
	loginCmd.Flags().StringVar(&token, "token", "", "Auth token issued by the backend")
	loginCmd.Flags().StringVar(&user, "user", "", "User id sent along with push tokens")
	_ = loginCmd.MarkFlagRequired("token")

	return loginCmd
}

// NewLogoutCmd creates the logout command with explicit dependencies.
func NewLogoutCmd(client logoutClient) *cobra.Command {
	if client == nil {
		panic("NewLogoutCmd: client dependency cannot be nil")
	}

	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the auth token and push token",
		Long:  `Forget the stored auth token, user id and cached push token.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			colors.Success("Logged out")
			return nil
		},
	}
}

var (
	loginCmd  = NewLoginCmd(client)
	logoutCmd = NewLogoutCmd(client)
)

func init() {
	cmd.RootCmd.AddCommand(loginCmd, logoutCmd)
}
