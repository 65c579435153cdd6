// Package serviceworker is the background channel: it shows push messages
// received while no tab has focus and routes notification clicks to an
// in-app URL.
package serviceworker

import (
	"context"
	"fmt"

	"github.com/cristianoliveira/pharmacy-notify/internal/dedup"
	"github.com/cristianoliveira/pharmacy-notify/internal/display"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/metrics"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/platform"
	"github.com/cristianoliveira/pharmacy-notify/internal/sound"
)

// Events is the source of notificationclick and notificationclose events.
type Events interface {
	OnNotificationClick(h platform.EventHandler)
	OnNotificationClose(h platform.EventHandler)
}

// Options configure a Worker.
type Options struct {
	Registration platform.Registration
	Clients      platform.Clients
	// Sound defaults to silence.
	Sound sound.Sounder
	// Dedup may be nil, in which case every message is shown.
	Dedup *dedup.Filter
	// Matcher defaults to ExactRoot.
	Matcher Matcher
	// DefaultURL is opened for payloads without data.url.
	DefaultURL string
	Metrics    *metrics.Metrics
	Logger     logging.Logger
}

// Worker handles the service worker lifecycle and events.
type Worker struct {
	opts Options
	log  logging.Logger
}

// New returns a worker bound to one registration.
func New(opts Options) *Worker {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Sound == nil {
		opts.Sound = sound.Silent{}
	}
	if opts.Matcher == nil {
		opts.Matcher = ExactRoot()
	}
	if opts.DefaultURL == "" {
		opts.DefaultURL = notification.DefaultURL
	}
	return &Worker{opts: opts, log: opts.Logger.With("component", "serviceworker")}
}

// Install activates the new worker version without waiting for tabs to close.
func (w *Worker) Install(ctx context.Context) error {
	if err := w.opts.Registration.SkipWaiting(ctx); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	return nil
}

// Activate takes control of every open window.
func (w *Worker) Activate(ctx context.Context) error {
	if w.opts.Clients == nil {
		return nil
	}
	if err := w.opts.Clients.Claim(ctx); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return nil
}

// Bind subscribes the click and close handlers to events.
func (w *Worker) Bind(events Events) {
	events.OnNotificationClick(func(ctx context.Context, n *platform.Shown) {
		if err := w.HandleNotificationClick(ctx, n); err != nil {
			w.log.Error("notification click failed", "error", err)
		}
	})
	events.OnNotificationClose(w.HandleNotificationClose)
}

// HandleBackgroundMessage shows p and then plays the chime. A failing chime
// never fails the display.
func (w *Worker) HandleBackgroundMessage(ctx context.Context, p notification.Payload) error {
	if !w.opts.Dedup.Admit(ctx, p) {
		w.opts.Metrics.CountSuppressed(string(notification.ChannelBackground))
		return nil
	}
	if p.Icon == "" {
		p.Icon = notification.Lookup(p.Data.Type).Icon
	}
	if _, err := w.opts.Registration.ShowNotification(ctx, p); err != nil {
		w.opts.Dedup.Release(ctx, p)
		if display.Dropped(err) {
			return nil
		}
		w.log.Error("failed to show background notification", "title", p.Title, "error", err)
		return fmt.Errorf("show notification: %w", err)
	}
	w.opts.Metrics.CountShown(string(notification.ChannelBackground))

	if err := w.opts.Sound.Play(ctx, p.Data.Type); err != nil {
		w.log.Warn("notification sound failed", "error", err)
	}
	return nil
}

// HandleNotificationClick closes n, then focuses and navigates the first
// window accepted by the matcher, or opens a new window.
func (w *Worker) HandleNotificationClick(ctx context.Context, n *platform.Shown) error {
	n.Close()
	target := n.Payload.Data.URL
	if target == "" {
		target = w.opts.DefaultURL
	}
	if w.opts.Clients == nil {
		return fmt.Errorf("open %s: no clients", target)
	}

	clients, err := w.opts.Clients.MatchAll(ctx, platform.MatchOptions{IncludeUncontrolled: true})
	if err != nil {
		return fmt.Errorf("match clients: %w", err)
	}
	for _, client := range clients {
		if !w.opts.Matcher(client) {
			continue
		}
		if err := client.Focus(ctx); err != nil {
			return fmt.Errorf("focus client: %w", err)
		}
		if err := client.Navigate(ctx, target); err != nil {
			return fmt.Errorf("navigate client: %w", err)
		}
		w.log.Debug("reused window", "url", target)
		return nil
	}

	if _, err := w.opts.Clients.OpenWindow(ctx, target); err != nil {
		return fmt.Errorf("open window: %w", err)
	}
	w.log.Debug("opened window", "url", target)
	return nil
}

// HandleNotificationClose records a dismissal.
func (w *Worker) HandleNotificationClose(_ context.Context, n *platform.Shown) {
	w.log.Info("notification closed", "id", n.ID, "tag", n.Payload.Data.Tag)
}
