// Package polling is the HTTP fallback channel: it fetches the unread
// endpoint on an interval and raises a local notification for every record
// it returns.
package polling

import (
	"context"
	"sync"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/backend"
	"github.com/cristianoliveira/pharmacy-notify/internal/dedup"
	"github.com/cristianoliveira/pharmacy-notify/internal/display"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/metrics"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/sound"
)

// DefaultInterval is used when Start is given no interval.
const DefaultInterval = 30 * time.Second

// Fetcher returns the unread records of the user behind cred.
type Fetcher interface {
	Unread(ctx context.Context, cred backend.Credential) ([]notification.Record, error)
}

// TickerFunc starts a ticker and returns its channel and stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// Options configure a Manager.
type Options struct {
	Backend Fetcher
	Display display.Notifier
	Sound   sound.Sounder
	// Dedup may be nil, in which case every poll re-notifies every unread record.
	Dedup  *dedup.Filter
	Scheme backend.Scheme
	// AllowOverlap makes every Start create an independent loop, even for
	// the same auth token.
	AllowOverlap bool
	// Ticker defaults to time.NewTicker. Tests inject their own tick channel.
	Ticker  TickerFunc
	Metrics *metrics.Metrics
	Logger  logging.Logger
}

// Manager owns the polling loops of one session.
type Manager struct {
	opts Options
	log  logging.Logger

	mu      sync.Mutex
	loops   map[*loop]struct{}
	current *loop
	wg      sync.WaitGroup
}

type loop struct {
	authToken string
	interval  time.Duration
	refs      int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (l *loop) halt() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Handle is one caller's claim on a polling loop.
type Handle struct {
	loop     *loop
	released bool
}

// AuthToken returns the token the loop polls with.
func (h *Handle) AuthToken() string { return h.loop.authToken }

// Interval returns the polling interval.
func (h *Handle) Interval() time.Duration { return h.loop.interval }

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.loop.done }

// New returns a manager.
func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Sound == nil {
		opts.Sound = sound.Silent{}
	}
	if opts.Scheme == "" {
		opts.Scheme = backend.SchemeToken
	}
	if opts.Ticker == nil {
		opts.Ticker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	return &Manager{
		opts:  opts,
		log:   opts.Logger.With("component", "polling"),
		loops: make(map[*loop]struct{}),
	}
}

// Start fetches immediately and then every interval until the handle is
// stopped or ctx is done. Without AllowOverlap a second Start for the same
// token shares the running loop, and a different token replaces it.
func (m *Manager) Start(ctx context.Context, authToken string, interval time.Duration) *Handle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opts.AllowOverlap && m.current != nil {
		if m.current.authToken == authToken {
			m.current.refs++
			m.log.Debug("polling loop shared", "refs", m.current.refs)
			return &Handle{loop: m.current}
		}
		m.log.Info("auth token changed, replacing polling loop")
		m.removeLocked(m.current)
	}

	l := &loop{
		authToken: authToken,
		interval:  interval,
		refs:      1,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	m.loops[l] = struct{}{}
	m.current = l
	m.opts.Metrics.SetPollLoops(len(m.loops))

	m.wg.Add(1)
	go m.run(ctx, l)
	m.log.Info("polling started", "interval", interval.String(), "loops", len(m.loops))
	return &Handle{loop: l}
}

// Stop releases h. The loop stops once its last handle is released. A
// fetch already in flight is allowed to finish.
func (m *Manager) Stop(h *Handle) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.released {
		return
	}
	h.released = true

	l := h.loop
	if _, ok := m.loops[l]; !ok {
		return
	}
	l.refs--
	if l.refs > 0 {
		return
	}
	m.removeLocked(l)
	m.log.Info("polling stopped", "loops", len(m.loops))
}

func (m *Manager) removeLocked(l *loop) {
	l.halt()
	delete(m.loops, l)
	if m.current == l {
		m.current = nil
	}
	m.opts.Metrics.SetPollLoops(len(m.loops))
}

// Active returns the number of running loops.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loops)
}

// Close stops every loop and waits for them to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	for l := range m.loops {
		m.removeLocked(l)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, l *loop) {
	defer m.wg.Done()
	defer close(l.done)

	m.poll(ctx, l)
	select {
	case <-l.stop:
		return
	default:
	}

	ticks, stopTicker := m.opts.Ticker(l.interval)
	defer stopTicker()
	for {
		select {
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		case <-ticks:
			// A stop racing with a tick wins.
			select {
			case <-l.stop:
				return
			default:
			}
			m.poll(ctx, l)
		}
	}
}

func (m *Manager) poll(ctx context.Context, l *loop) {
	cred := backend.Credential{Scheme: m.opts.Scheme, Token: l.authToken}
	records, err := m.opts.Backend.Unread(ctx, cred)
	m.opts.Metrics.CountFetch(err == nil)
	if err != nil {
		m.log.Warn("unread fetch failed", "error", err)
		return
	}

	shown := 0
	chime := ""
	for _, r := range records {
		p := notification.FromRecord(r)
		if !m.opts.Dedup.Admit(ctx, p) {
			m.opts.Metrics.CountSuppressed(string(notification.ChannelPoll))
			continue
		}
		if err := m.opts.Display.Show(ctx, notification.Delivery{Payload: p, Channel: notification.ChannelPoll}); err != nil {
			// Not shown, so a later poll or push may surface it.
			m.opts.Dedup.Release(ctx, p)
			if !display.Dropped(err) {
				m.log.Warn("failed to show polled notification", "id", r.ID, "error", err)
			}
			continue
		}
		m.opts.Metrics.CountShown(string(notification.ChannelPoll))
		if shown == 0 {
			chime = r.Extra.Type
		}
		shown++
	}
	m.log.Debug("poll finished", "unread", len(records), "shown", shown)

	// One chime per poll, in the first shown record's voice.
	if shown > 0 {
		if err := m.opts.Sound.Play(ctx, chime); err != nil {
			m.log.Warn("notification sound failed", "error", err)
		}
	}
}

// SendImmediateNotification shows a local notification without touching
// the network.
func (m *Manager) SendImmediateNotification(ctx context.Context, title, message, typ string) error {
	p := notification.Immediate(title, message, typ)
	if err := m.opts.Display.Show(ctx, notification.Delivery{Payload: p, Channel: notification.ChannelImmediate}); err != nil {
		if display.Dropped(err) {
			return nil
		}
		return err
	}
	m.opts.Metrics.CountShown(string(notification.ChannelImmediate))
	if err := m.opts.Sound.Play(ctx, typ); err != nil {
		m.log.Warn("notification sound failed", "error", err)
	}
	return nil
}
