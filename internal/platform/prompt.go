package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
)

// Prompter asks the user for notification permission.
type Prompter interface {
	Prompt(ctx context.Context) (notification.Permission, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) (notification.Permission, error)

func (f PrompterFunc) Prompt(ctx context.Context) (notification.Permission, error) { return f(ctx) }

// Fixed always answers with the same permission.
type Fixed notification.Permission

func (f Fixed) Prompt(context.Context) (notification.Permission, error) {
	return notification.Permission(f), nil
}

// HuhPrompter shows an interactive confirm on the terminal. Aborting the
// form counts as dismissing the prompt.
type HuhPrompter struct {
	AppName string
}

func (h HuhPrompter) Prompt(ctx context.Context) (notification.Permission, error) {
	name := h.AppName
	if name == "" {
		name = "pharmacy-notify"
	}
	allow := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s wants to show notifications", name)).
				Description("New orders, invoices and offers will appear as notifications.").
				Affirmative("Allow").
				Negative("Block").
				Value(&allow),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return notification.PermissionDefault, nil
		}
		return notification.PermissionDefault, fmt.Errorf("permission prompt: %w", err)
	}
	if allow {
		return notification.PermissionGranted, nil
	}
	return notification.PermissionDenied, nil
}

// PrompterForPolicy maps permission_policy to a prompter: "prompt" asks
// interactively, "grant" and "deny" answer without asking.
func PrompterForPolicy(policy string) Prompter {
	switch strings.ToLower(policy) {
	case "grant":
		return Fixed(notification.PermissionGranted)
	case "deny":
		return Fixed(notification.PermissionDenied)
	default:
		return HuhPrompter{}
	}
}
