package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/cristianoliveira/pharmacy-notify/internal/display"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/google/uuid"
)

// KeyPermission persists the answer to the permission prompt.
const KeyPermission = "notification_permission"

// Shown is a displayed notification.
type Shown struct {
	ID      string
	Payload notification.Payload
	Channel notification.Channel

	mu     sync.Mutex
	closed bool
}

// Close removes the notification from the screen.
func (s *Shown) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether Close was called or the notification was replaced.
func (s *Shown) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// EventHandler receives notificationclick and notificationclose events.
type EventHandler func(ctx context.Context, n *Shown)

// Options configure a Browser.
type Options struct {
	// Origin is the app origin windows are opened against.
	Origin string
	// Unsupported simulates a platform without notifications or workers.
	Unsupported bool
	Prompter    Prompter
	Opener      Opener
	// Sink renders shown notifications.
	Sink display.Notifier
	// Prefs persists the permission answer. May be nil.
	Prefs  storage.KV
	Logger logging.Logger
}

// Browser is an in-process implementation of every platform interface.
type Browser struct {
	opts Options
	log  logging.Logger

	mu            sync.Mutex
	permission    notification.Permission
	registrations map[string]*registration
	windows       []*Window
	shown         []*Shown
	onClick       []EventHandler
	onClose       []EventHandler
	prompts       int
}

var (
	_ Permissions              = (*Browser)(nil)
	_ WorkerContainer          = (*Browser)(nil)
	_ Clients                  = (*Browser)(nil)
	_ display.PermissionSource = (*Browser)(nil)
)

// NewBrowser returns a browser. The persisted permission, if any, is
// restored from opts.Prefs.
func NewBrowser(ctx context.Context, opts Options) *Browser {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Origin == "" {
		opts.Origin = "http://localhost:3000"
	}
	opts.Origin = strings.TrimSuffix(opts.Origin, "/")
	b := &Browser{
		opts:          opts,
		log:           opts.Logger,
		permission:    notification.PermissionDefault,
		registrations: make(map[string]*registration),
	}
	if opts.Prefs != nil {
		if p, err := notification.ParsePermission(storage.GetOr(ctx, opts.Prefs, KeyPermission, "")); err == nil {
			b.permission = p
		}
	}
	return b
}

func (b *Browser) Supported() bool { return !b.opts.Unsupported }

func (b *Browser) Permission() notification.Permission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.permission
}

// Request prompts the user. Once answered with granted or denied the
// prompt is not shown again and the stored answer is returned.
func (b *Browser) Request(ctx context.Context) (notification.Permission, error) {
	if !b.Supported() {
		return notification.PermissionDefault, pnerrors.ErrUnsupportedPlatform
	}
	if current := b.Permission(); current != notification.PermissionDefault {
		return current, nil
	}
	if b.opts.Prompter == nil {
		return notification.PermissionDefault, nil
	}

	b.mu.Lock()
	b.prompts++
	b.mu.Unlock()

	answer, err := b.opts.Prompter.Prompt(ctx)
	if err != nil {
		return notification.PermissionDefault, err
	}
	b.setPermission(ctx, answer)
	return answer, nil
}

// Prompts returns how many times the prompt was shown.
func (b *Browser) Prompts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prompts
}

// Reset returns permission to default, as if the user cleared site settings.
func (b *Browser) Reset(ctx context.Context) {
	b.setPermission(ctx, notification.PermissionDefault)
}

func (b *Browser) setPermission(ctx context.Context, p notification.Permission) {
	b.mu.Lock()
	b.permission = p
	b.mu.Unlock()

	if b.opts.Prefs == nil {
		return
	}
	if err := b.opts.Prefs.Set(ctx, KeyPermission, p.String()); err != nil {
		b.log.Warn("failed to persist permission", "error", err)
	}
	dismissed := "false"
	if p == notification.PermissionDefault {
		dismissed = "true"
	}
	if err := b.opts.Prefs.Set(ctx, storage.KeyNotificationDismiss, dismissed); err != nil {
		b.log.Warn("failed to persist dismissal", "error", err)
	}
}

// Register installs a worker at root scope. Repeated calls with the same
// script return the same registration.
func (b *Browser) Register(_ context.Context, scriptURL string) (Registration, error) {
	if !b.Supported() {
		return nil, fmt.Errorf("%w: service workers unavailable", pnerrors.ErrUnsupportedPlatform)
	}
	if !strings.HasPrefix(scriptURL, "/") {
		return nil, fmt.Errorf("script %q must be served from the origin root", scriptURL)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if reg, ok := b.registrations[scriptURL]; ok {
		return reg, nil
	}
	reg := &registration{browser: b, script: scriptURL, scope: b.opts.Origin + "/"}
	b.registrations[scriptURL] = reg
	b.log.Debug("service worker registered", "script", scriptURL)
	return reg, nil
}

// Registrations returns how many distinct workers are installed.
func (b *Browser) Registrations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.registrations)
}

// Show displays p. It fails with ErrNoPermission unless permission is
// granted. A notification sharing the tag of an open one replaces it.
func (b *Browser) Show(ctx context.Context, p notification.Payload, channel notification.Channel) (*Shown, error) {
	if !b.Permission().Granted() {
		return nil, ErrNoPermission
	}
	n := &Shown{ID: uuid.NewString(), Payload: p, Channel: channel}

	b.mu.Lock()
	if tag := p.Data.Tag; tag != "" {
		for _, old := range b.shown {
			if old.Payload.Data.Tag == tag && !old.Closed() {
				old.Close()
			}
		}
	}
	b.shown = append(b.shown, n)
	b.mu.Unlock()

	if b.opts.Sink != nil {
		if err := b.opts.Sink.Show(ctx, notification.Delivery{Payload: p, Channel: channel}); err != nil {
			if display.Dropped(err) {
				b.forget(n)
				return nil, err
			}
			return n, fmt.Errorf("render notification: %w", err)
		}
	}
	return n, nil
}

func (b *Browser) forget(n *Shown) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.shown {
		if s == n {
			b.shown = append(b.shown[:i], b.shown[i+1:]...)
			return
		}
	}
}

// Notifier adapts Show to display.Notifier.
func (b *Browser) Notifier() display.Notifier {
	return display.NotifierFunc(func(ctx context.Context, d notification.Delivery) error {
		_, err := b.Show(ctx, d.Payload, d.Channel)
		return err
	})
}

// Shown returns every notification displayed so far.
func (b *Browser) Shown() []*Shown {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Shown, len(b.shown))
	copy(out, b.shown)
	return out
}

// OnNotificationClick registers a click handler.
func (b *Browser) OnNotificationClick(h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onClick = append(b.onClick, h)
}

// OnNotificationClose registers a dismissal handler.
func (b *Browser) OnNotificationClose(h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onClose = append(b.onClose, h)
}

// Click simulates the user clicking the notification with id.
func (b *Browser) Click(ctx context.Context, id string) error {
	n, handlers, err := b.lookup(id, true)
	if err != nil {
		return err
	}
	for _, h := range handlers {
		h(ctx, n)
	}
	return nil
}

// Dismiss simulates the user swiping the notification away.
func (b *Browser) Dismiss(ctx context.Context, id string) error {
	n, handlers, err := b.lookup(id, false)
	if err != nil {
		return err
	}
	n.Close()
	for _, h := range handlers {
		h(ctx, n)
	}
	return nil
}

func (b *Browser) lookup(id string, click bool) (*Shown, []EventHandler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range b.shown {
		if n.ID == id {
			handlers := b.onClose
			if click {
				handlers = b.onClick
			}
			return n, append([]EventHandler(nil), handlers...), nil
		}
	}
	return nil, nil, fmt.Errorf("notification %s not found", id)
}

// AddWindow simulates a tab the user already has open.
func (b *Browser) AddWindow(rawURL string, controlled bool) *Window {
	w := &Window{browser: b, url: rawURL, controlled: controlled}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows = append(b.windows, w)
	return w
}

// Windows returns every open window.
func (b *Browser) Windows() []*Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Window(nil), b.windows...)
}

func (b *Browser) MatchAll(_ context.Context, opts MatchOptions) ([]WindowClient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []WindowClient
	for _, w := range b.windows {
		if w.isControlled() || opts.IncludeUncontrolled {
			out = append(out, w)
		}
	}
	return out, nil
}

// OpenWindow opens target, resolved against the origin, through the Opener.
func (b *Browser) OpenWindow(ctx context.Context, target string) (WindowClient, error) {
	abs, err := b.resolve(target)
	if err != nil {
		return nil, err
	}
	if b.opts.Opener != nil {
		if err := b.opts.Opener.Open(ctx, abs); err != nil {
			return nil, fmt.Errorf("open window: %w", err)
		}
	}
	return b.AddWindow(abs, true), nil
}

// Claim takes control of every open window.
func (b *Browser) Claim(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.windows {
		w.setControlled()
	}
	return nil
}

func (b *Browser) resolve(target string) (string, error) {
	base, err := url.Parse(b.opts.Origin + "/")
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", b.opts.Origin, err)
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	return base.ResolveReference(ref).String(), nil
}

type registration struct {
	browser *Browser
	script  string
	scope   string

	mu     sync.Mutex
	active bool
}

func (r *registration) Scope() string     { return r.scope }
func (r *registration) ScriptURL() string { return r.script }

func (r *registration) ShowNotification(ctx context.Context, p notification.Payload) (*Shown, error) {
	return r.browser.Show(ctx, p, notification.ChannelBackground)
}

func (r *registration) SkipWaiting(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	return nil
}

func (r *registration) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Window is an open tab.
type Window struct {
	browser *Browser

	mu         sync.Mutex
	url        string
	controlled bool
	focused    bool
	navigated  []string
}

func (w *Window) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

func (w *Window) Focus(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focused = true
	return nil
}

func (w *Window) Navigate(ctx context.Context, target string) error {
	abs, err := w.browser.resolve(target)
	if err != nil {
		return err
	}
	if w.browser.opts.Opener != nil {
		if err := w.browser.opts.Opener.Open(ctx, abs); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.url = abs
	w.navigated = append(w.navigated, abs)
	return nil
}

// Focused reports whether Focus was called.
func (w *Window) Focused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Navigations returns every URL the window was navigated to.
func (w *Window) Navigations() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.navigated...)
}

func (w *Window) isControlled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.controlled
}

func (w *Window) setControlled() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.controlled = true
}
