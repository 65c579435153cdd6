// Package app composes the notification layer into a session: storage,
// backend client, platform, push relay and the three delivery channels,
// built once from configuration and torn down together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/backend"
	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	"github.com/cristianoliveira/pharmacy-notify/internal/credential"
	"github.com/cristianoliveira/pharmacy-notify/internal/dedup"
	"github.com/cristianoliveira/pharmacy-notify/internal/display"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/foreground"
	"github.com/cristianoliveira/pharmacy-notify/internal/gateway"
	"github.com/cristianoliveira/pharmacy-notify/internal/hooks"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/metrics"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/platform"
	"github.com/cristianoliveira/pharmacy-notify/internal/polling"
	"github.com/cristianoliveira/pharmacy-notify/internal/provider"
	"github.com/cristianoliveira/pharmacy-notify/internal/push"
	"github.com/cristianoliveira/pharmacy-notify/internal/serviceworker"
	"github.com/cristianoliveira/pharmacy-notify/internal/sound"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage/sqlite"
)

// Options override pieces of the session that config would otherwise build.
type Options struct {
	// Store defaults to SQLite at storage.DBPath().
	Store storage.Store
	// Credentials defaults to credential_backend.
	Credentials credential.Store
	HTTPClient  *http.Client
	// Prompter defaults to permission_policy.
	Prompter platform.Prompter
	Opener   platform.Opener
	// Sounder defaults to the chime when sound_enabled is set.
	Sounder sound.Sounder
	// Out receives terminal notifications. Defaults to stdout.
	Out    io.Writer
	Ticker polling.TickerFunc
	After  func(time.Duration) <-chan time.Time
	Logger logging.Logger
}

// Session owns every component of one running client.
type Session struct {
	Store       storage.Store
	Credentials credential.Store
	Backend     *backend.Client
	Metrics     *metrics.Metrics
	Dedup       *dedup.Filter
	Sound       sound.Sounder
	Hooks       *hooks.Runner
	Throttle    *display.Throttle
	Browser     *platform.Browser
	Relay       *push.Relay
	Gateway     *gateway.Gateway
	Worker      *serviceworker.Worker
	Foreground  *foreground.Listener
	Polling     *polling.Manager
	Provider    *provider.Provider

	scheme  backend.Scheme
	log     logging.Logger
	closers []func() error
}

// New builds a session from the loaded configuration.
func New(ctx context.Context, opts Options) (_ *Session, err error) {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	s := &Session{log: opts.Logger.With("component", "session")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.scheme, err = backend.ParseScheme(config.Get("auth_scheme", "token"))
	if err != nil {
		return nil, err
	}

	s.Store = opts.Store
	if s.Store == nil {
		store, err := sqlite.NewSQLiteStorage(storage.DBPath())
		if err != nil {
			return nil, err
		}
		s.Store = store
		s.closers = append(s.closers, store.Close)
	}

	s.Credentials = opts.Credentials
	if s.Credentials == nil {
		if s.Credentials, err = credential.FromConfig(s.Store); err != nil {
			return nil, fmt.Errorf("open credential store: %w", err)
		}
	}

	set, closeSet, err := dedup.FromConfig(s.Store)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeSet)
	s.Dedup = dedup.NewFilter(set, dedup.ParseCriteria(config.Get("dedup_criteria", "id")), opts.Logger.With("component", "dedup"))

	s.Metrics = metrics.MustNew()
	s.Backend = backend.New(backend.Config{
		BaseURL:    config.Get("backend_url", ""),
		Timeout:    config.GetDuration("backend_timeout", backend.DefaultTimeout),
		HTTPClient: opts.HTTPClient,
	})
	before, after := s.Metrics.BackendObserver()
	s.Backend.SetBeforeRequest(before)
	s.Backend.SetAfterResponse(after)

	s.Sound = opts.Sounder
	if s.Sound == nil {
		s.Sound = newSounder(s.Store, s.log)
	}

	s.Hooks = hooks.FromConfig(opts.Logger)
	if err := s.Hooks.Init(); err != nil {
		s.log.Warn("hooks directory unavailable", "error", err)
	}

	sinks, err := newSinks(opts.Out)
	if err != nil {
		return nil, err
	}
	recorder := display.NewRecorder(hooks.Wrap(sinks, s.Hooks), s.Store, opts.Logger)
	s.Throttle = display.NewThrottle(recorder, config.GetInt("display_rate", 30), opts.Logger)

	prompter := opts.Prompter
	if prompter == nil {
		prompter = platform.PrompterForPolicy(config.Get("permission_policy", "prompt"))
	}
	opener := opts.Opener
	if opener == nil {
		opener = platform.SystemOpener{}
	}
	origin := config.Get("app_origin", "http://localhost:3000")
	s.Browser = platform.NewBrowser(ctx, platform.Options{
		Origin:   origin,
		Prompter: prompter,
		Opener:   opener,
		Sink:     s.Throttle,
		Prefs:    s.Store,
		Logger:   opts.Logger.With("component", "platform"),
	})

	s.Relay = push.NewRelay(s.Store, s.Metrics, opts.Logger)
	s.Gateway = gateway.New(gateway.Options{
		Permissions: s.Browser,
		Workers:     s.Browser,
		Tokens:      s.Relay,
		Backend:     s.Backend,
		Prefs:       s.Store,
		VAPIDKey:    config.Get("vapid_key", ""),
		Scheme:      s.scheme,
		Logger:      opts.Logger,
	})

	if err := s.startWorker(ctx, origin, opts.Logger); err != nil {
		return nil, err
	}

	gate := display.NewGate(s.Browser.Notifier(), s.Browser, opts.Logger)
	s.Foreground = foreground.New(foreground.Options{
		Permissions: s.Browser,
		Display:     gate,
		Sound:       s.Sound,
		Dedup:       s.Dedup,
		Metrics:     s.Metrics,
		Logger:      opts.Logger,
	})
	s.Polling = polling.New(polling.Options{
		Backend:      s.Backend,
		Display:      gate,
		Sound:        s.Sound,
		Dedup:        s.Dedup,
		Scheme:       s.scheme,
		AllowOverlap: config.GetBool("polling_allow_overlap", false),
		Ticker:       opts.Ticker,
		Metrics:      s.Metrics,
		Logger:       opts.Logger,
	})
	s.Provider = provider.New(provider.Options{
		Gateway:    s.Gateway,
		WorkerPath: config.Get("worker_path", "/firebase-messaging-sw.js"),
		DeviceType: config.Get("device_type", "web"),
		AutoSetup:  config.GetBool("auto_setup", true),
		Delay:      config.GetDuration("auto_setup_delay", provider.DefaultDelay),
		After:      opts.After,
		Logger:     opts.Logger,
	})
	return s, nil
}

// startWorker installs the messaging worker and routes background pushes to it.
func (s *Session) startWorker(ctx context.Context, origin string, log logging.Logger) error {
	reg, err := s.Browser.Register(ctx, config.Get("worker_path", "/firebase-messaging-sw.js"))
	if err != nil {
		return fmt.Errorf("register messaging worker: %w", err)
	}
	matcher, err := serviceworker.ParseMatcher(config.Get("worker_window_match", serviceworker.MatchExactRoot), origin)
	if err != nil {
		return err
	}
	s.Worker = serviceworker.New(serviceworker.Options{
		Registration: reg,
		Clients:      s.Browser,
		Sound:        s.Sound,
		Dedup:        s.Dedup,
		Matcher:      matcher,
		DefaultURL:   config.Get("default_click_url", "/notifications"),
		Metrics:      s.Metrics,
		Logger:       log,
	})
	if err := s.Worker.Install(ctx); err != nil {
		return fmt.Errorf("install messaging worker: %w", err)
	}
	if err := s.Worker.Activate(ctx); err != nil {
		return fmt.Errorf("activate messaging worker: %w", err)
	}
	s.Worker.Bind(s.Browser)
	s.Relay.SetBackgroundHandler(func(ctx context.Context, p notification.Payload) {
		// failures are logged by the worker
		_ = s.Worker.HandleBackgroundMessage(ctx, p)
	})
	return nil
}

func newSounder(prefs storage.KV, log logging.Logger) sound.Sounder {
	if !config.GetBool("sound_enabled", true) {
		return sound.Silent{}
	}
	player, err := sound.DetectPlayer(config.Get("sound_player", "auto"))
	if err != nil {
		log.Warn("no audio player found, notifications will be silent", "error", err)
		return sound.Silent{}
	}
	return sound.NewChime(player, prefs, filepath.Join(config.Get("state_dir", os.TempDir()), "sounds"))
}

func newSinks(out io.Writer) (display.Notifier, error) {
	mode := config.Get("display", "terminal")
	var sinks display.Multi
	if mode == "terminal" || mode == "both" {
		sinks = append(sinks, display.NewTerminal(out))
	}
	if mode == "shoutrrr" || mode == "both" {
		urls := config.GetList("shoutrrr_urls")
		if len(urls) == 0 {
			return nil, errors.New("display: shoutrrr selected but shoutrrr_urls is empty")
		}
		sh, err := display.NewShoutrrr(urls, config.GetDuration("backend_timeout", 15*time.Second))
		if err != nil {
			return nil, fmt.Errorf("display: %w", err)
		}
		sinks = append(sinks, sh)
	}
	return sinks, nil
}

// Credential returns the stored auth token with the configured scheme.
func (s *Session) Credential(ctx context.Context) (backend.Credential, error) {
	token, err := s.Credentials.Token(ctx)
	if err != nil {
		return backend.Credential{}, err
	}
	if token == "" {
		return backend.Credential{}, pnerrors.ErrNotAuthenticated
	}
	return backend.Credential{Scheme: s.scheme, Token: token}, nil
}

// AuthToken returns the stored auth token or "" when logged out.
func (s *Session) AuthToken(ctx context.Context) string {
	cred, err := s.Credential(ctx)
	if err != nil {
		return ""
	}
	return cred.Token
}

// Login stores the auth token and, when given, the user id sent along with
// push tokens.
func (s *Session) Login(ctx context.Context, token, user string) error {
	if token == "" {
		return errors.New("login: token cannot be empty")
	}
	if err := s.Credentials.SetToken(ctx, token); err != nil {
		return fmt.Errorf("store auth token: %w", err)
	}
	if user != "" {
		if err := s.Store.Set(ctx, storage.KeyUser, user); err != nil {
			return fmt.Errorf("store user: %w", err)
		}
	}
	return nil
}

// Logout forgets the auth token, the user and the cached push token.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.Credentials.Clear(ctx); err != nil {
		return err
	}
	for _, key := range []string{storage.KeyUser, storage.KeyFCMToken} {
		if err := s.Store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// PollInterval returns the persisted notificationInterval (milliseconds)
// or polling_interval.
func (s *Session) PollInterval(ctx context.Context) time.Duration {
	fallback := config.GetDuration("polling_interval", polling.DefaultInterval)
	raw := storage.GetOr(ctx, s.Store, storage.KeyNotificationInterval, "")
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// Setup runs the provider setup for the stored auth token and fires the
// setup-complete hook.
func (s *Session) Setup(ctx context.Context) (provider.Snapshot, error) {
	err := s.Provider.SetupWithAuthToken(ctx, s.AuthToken(ctx))
	snap := s.Provider.Snapshot()
	hookErr := s.Hooks.Run(ctx, hooks.PointSetupComplete, map[string]string{
		"SETUP_STATE":      string(snap.State),
		"SETUP_PERMISSION": snap.Permission.String(),
		"SETUP_ERROR":      snap.Error,
	})
	if err != nil {
		return snap, err
	}
	return snap, hookErr
}

// Close releases every resource the session opened. It is safe to call
// more than once.
func (s *Session) Close() error {
	if s.Provider != nil {
		s.Provider.Unmount()
	}
	if s.Polling != nil {
		s.Polling.Close()
	}
	if s.Hooks != nil {
		s.Hooks.Wait()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
