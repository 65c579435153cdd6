// Package provider drives notification setup for a mounted app and exposes
// its state to the UI.
//
// States move uninitialized -> requesting -> granted|denied|error. granted
// means a token was obtained and the backend accepted it.
package provider

import (
	"context"
	"sync"
	"time"

	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/gateway"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/platform"
)

// State is the provider's setup state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateRequesting    State = "requesting"
	StateGranted       State = "granted"
	StateDenied        State = "denied"
	StateError         State = "error"
)

// DefaultDelay postpones auto-setup so the prompt does not show on load.
const DefaultDelay = 2 * time.Second

// Gateway is the part of the token gateway the provider drives.
type Gateway interface {
	Supported() bool
	RequestPermission(ctx context.Context) (notification.Permission, error)
	RegisterServiceWorker(ctx context.Context, path string) (platform.Registration, error)
	GetToken(ctx context.Context, reg platform.Registration) string
	SendTokenToBackend(ctx context.Context, token, authToken, deviceType string) bool
}

// Snapshot is the state exposed to the UI.
type Snapshot struct {
	State      State
	Permission notification.Permission
	Loading    bool
	Error      string
	// Token is the last token obtained, kept after a failed backend call.
	Token string
}

// Options configure a Provider.
type Options struct {
	Gateway    Gateway
	WorkerPath string
	DeviceType string
	AutoSetup  bool
	// Delay defaults to DefaultDelay.
	Delay time.Duration
	// After defaults to time.After.
	After  func(time.Duration) <-chan time.Time
	Logger logging.Logger
}

// Provider holds setup state.
type Provider struct {
	opts Options
	log  logging.Logger

	setupMu sync.Mutex

	mu          sync.Mutex
	snap        Snapshot
	authToken   string
	subscribers map[chan Snapshot]struct{}
	pending     chan struct{}
	pendingDone chan struct{}
}

// New returns an unmounted provider.
func New(opts Options) *Provider {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.After == nil {
		opts.After = time.After
	}
	if opts.WorkerPath == "" {
		opts.WorkerPath = "/firebase-messaging-sw.js"
	}
	if opts.DeviceType == "" {
		opts.DeviceType = gateway.DefaultDeviceType
	}
	return &Provider{
		opts:        opts,
		log:         opts.Logger.With("component", "provider"),
		snap:        Snapshot{State: StateUninitialized, Permission: notification.PermissionDefault},
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Snapshot returns the current state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Subscribe streams every state change. Slow subscribers miss
// intermediate snapshots. The returned function unsubscribes.
func (p *Provider) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Provider) update(fn func(*Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.snap)
	for ch := range p.subscribers {
		select {
		case ch <- p.snap:
		default:
		}
	}
}

// AuthToken returns the current auth token.
func (p *Provider) AuthToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authToken
}

// Mount schedules auto-setup once, after the delay, when auto-setup is on,
// an auth token is present and the platform is supported.
func (p *Provider) Mount(ctx context.Context, authToken string) {
	p.mu.Lock()
	p.authToken = authToken
	if p.pending != nil {
		p.mu.Unlock()
		return
	}
	if !p.opts.AutoSetup || authToken == "" || p.opts.Gateway == nil || !p.opts.Gateway.Supported() {
		p.mu.Unlock()
		p.log.Debug("auto-setup skipped", "auto_setup", p.opts.AutoSetup, "has_token", authToken != "")
		return
	}
	cancel := make(chan struct{})
	done := make(chan struct{})
	p.pending, p.pendingDone = cancel, done
	wait := p.opts.After(p.opts.Delay)
	p.mu.Unlock()

	go func() {
		defer close(done)
		select {
		case <-cancel:
			return
		case <-ctx.Done():
			return
		case <-wait:
		}
		if err := p.Setup(ctx); err != nil {
			p.log.Warn("auto-setup failed", "error", err)
		}
	}()
}

// Unmount cancels a pending auto-setup and waits for a running one.
func (p *Provider) Unmount() {
	p.mu.Lock()
	cancel, done := p.pending, p.pendingDone
	p.pending, p.pendingDone = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	close(cancel)
	<-done
}

// SetAuthToken records a new auth token. When it changes while granted the
// setup runs again right away so the backend learns the token for the new
// user.
func (p *Provider) SetAuthToken(ctx context.Context, authToken string) error {
	_, err := p.setAuthToken(ctx, authToken)
	return err
}

// SetupWithAuthToken stores authToken and runs Setup exactly once, whether
// or not the token change already triggered it.
func (p *Provider) SetupWithAuthToken(ctx context.Context, authToken string) error {
	ran, err := p.setAuthToken(ctx, authToken)
	if ran {
		return err
	}
	return p.Setup(ctx)
}

func (p *Provider) setAuthToken(ctx context.Context, authToken string) (bool, error) {
	p.mu.Lock()
	changed := authToken != p.authToken
	p.authToken = authToken
	granted := p.snap.State == StateGranted
	p.mu.Unlock()

	if !changed || !granted || authToken == "" {
		return false, nil
	}
	p.log.Info("auth token changed, resending push token")
	return true, p.Setup(ctx)
}

// Setup requests permission, registers the worker, obtains a token and
// sends it to the backend. Concurrent calls run one after another.
func (p *Provider) Setup(ctx context.Context) error {
	p.setupMu.Lock()
	defer p.setupMu.Unlock()

	p.update(func(s *Snapshot) {
		s.State = StateRequesting
		s.Loading = true
		s.Error = ""
	})

	g := p.opts.Gateway
	if g == nil || !g.Supported() {
		return p.fail(StateError, pnerrors.ErrUnsupportedPlatform)
	}

	perm, err := g.RequestPermission(ctx)
	p.update(func(s *Snapshot) { s.Permission = perm })
	if err != nil {
		return p.fail(StateError, err)
	}
	if !perm.Granted() {
		// A dismissed prompt counts as denied until the user answers.
		return p.fail(StateDenied, pnerrors.ErrPermissionDenied)
	}

	reg, err := g.RegisterServiceWorker(ctx, p.opts.WorkerPath)
	if err != nil {
		return p.fail(StateError, err)
	}

	token := g.GetToken(ctx, reg)
	if token == "" {
		return p.fail(StateError, pnerrors.ErrTokenUnavailable)
	}
	p.update(func(s *Snapshot) { s.Token = token })

	if !g.SendTokenToBackend(ctx, token, p.AuthToken(), p.opts.DeviceType) {
		return p.fail(StateError, pnerrors.ErrBackendRejected)
	}

	p.update(func(s *Snapshot) {
		s.State = StateGranted
		s.Loading = false
	})
	p.log.Info("notification setup complete")
	return nil
}

func (p *Provider) fail(state State, err error) error {
	p.update(func(s *Snapshot) {
		s.State = state
		s.Loading = false
		s.Error = pnerrors.UserMessage(err)
	})
	return err
}
