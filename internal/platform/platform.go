// Package platform models the browser surface the notification layer runs
// on: the permission prompt, the service worker container, registrations
// and window clients. Browser is the in-process implementation used by the
// CLI; the mocks in this package back unit tests.
package platform

import (
	"context"
	"errors"

	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
)

// ErrNoPermission is returned by ShowNotification when permission is not granted.
var ErrNoPermission = errors.New("no notification permission has been granted")

// Permissions is the notification permission API.
type Permissions interface {
	// Supported reports whether notifications exist on this platform.
	Supported() bool
	// Permission returns the current state without prompting.
	Permission() notification.Permission
	// Request shows the permission prompt once and returns the answer.
	Request(ctx context.Context) (notification.Permission, error)
}

// WorkerContainer registers service workers.
type WorkerContainer interface {
	Supported() bool
	// Register installs scriptURL at the origin root scope. Registering the
	// same script again returns the existing registration.
	Register(ctx context.Context, scriptURL string) (Registration, error)
}

// Registration is an installed service worker.
type Registration interface {
	Scope() string
	ScriptURL() string
	ShowNotification(ctx context.Context, p notification.Payload) (*Shown, error)
	SkipWaiting(ctx context.Context) error
	Active() bool
}

// MatchOptions filters Clients.MatchAll.
type MatchOptions struct {
	IncludeUncontrolled bool
}

// WindowClient is an open tab or window.
type WindowClient interface {
	URL() string
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
}

// Clients is the service worker's view of open windows.
type Clients interface {
	MatchAll(ctx context.Context, opts MatchOptions) ([]WindowClient, error)
	OpenWindow(ctx context.Context, url string) (WindowClient, error)
	Claim(ctx context.Context) error
}
