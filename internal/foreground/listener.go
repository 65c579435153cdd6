// Package foreground renders push messages delivered to the active tab.
package foreground

import (
	"context"

	"github.com/cristianoliveira/pharmacy-notify/internal/dedup"
	"github.com/cristianoliveira/pharmacy-notify/internal/display"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/metrics"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/push"
	"github.com/cristianoliveira/pharmacy-notify/internal/sound"
)

// Messaging delivers foreground messages to registered handlers.
type Messaging interface {
	OnMessage(h push.Handler) (unsubscribe func())
}

// Options configure a Listener.
type Options struct {
	Permissions display.PermissionSource
	Display     display.Notifier
	Sound       sound.Sounder
	Dedup       *dedup.Filter
	Metrics     *metrics.Metrics
	Logger      logging.Logger
}

// Listener shows foreground messages. Messages arriving without permission
// are dropped; nothing is queued or retried.
type Listener struct {
	opts Options
	log  logging.Logger
}

// New returns a listener.
func New(opts Options) *Listener {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Sound == nil {
		opts.Sound = sound.Silent{}
	}
	return &Listener{opts: opts, log: opts.Logger.With("component", "foreground")}
}

// Listen subscribes to m. Callers must invoke the returned function on
// teardown.
func (l *Listener) Listen(m Messaging) (unsubscribe func()) {
	return m.OnMessage(func(ctx context.Context, p notification.Payload) {
		if err := l.Handle(ctx, p); err != nil {
			l.log.Error("failed to show foreground notification", "title", p.Title, "error", err)
		}
	})
}

// Handle displays p when permission is granted.
func (l *Listener) Handle(ctx context.Context, p notification.Payload) error {
	if l.opts.Permissions == nil || !l.opts.Permissions.Permission().Granted() {
		l.log.Debug("foreground message dropped without permission", "title", p.Title)
		return nil
	}
	if !l.opts.Dedup.Admit(ctx, p) {
		l.opts.Metrics.CountSuppressed(string(notification.ChannelForeground))
		return nil
	}
	if p.Icon == "" {
		p.Icon = notification.Lookup(p.Data.Type).Icon
	}
	if err := l.opts.Display.Show(ctx, notification.Delivery{Payload: p, Channel: notification.ChannelForeground}); err != nil {
		l.opts.Dedup.Release(ctx, p)
		if display.Dropped(err) {
			return nil
		}
		return err
	}
	l.opts.Metrics.CountShown(string(notification.ChannelForeground))
	if err := l.opts.Sound.Play(ctx, p.Data.Type); err != nil {
		l.log.Warn("notification sound failed", "error", err)
	}
	return nil
}
