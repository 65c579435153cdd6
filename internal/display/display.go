// Package display renders local notifications: on the terminal, through
// shoutrrr service URLs, or both. Decorators gate display on permission,
// throttle storms and record every delivery.
package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"golang.org/x/time/rate"
)

// ErrDropped reports that a decorator chose not to display a notification.
// Callers treat it as "not shown" rather than as a failure.
var ErrDropped = errors.New("notification dropped")

// Dropped reports whether err means the notification was withheld on purpose.
func Dropped(err error) bool {
	return errors.Is(err, ErrDropped)
}

// Notifier shows a local notification.
type Notifier interface {
	Show(ctx context.Context, d notification.Delivery) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, d notification.Delivery) error

func (f NotifierFunc) Show(ctx context.Context, d notification.Delivery) error { return f(ctx, d) }

// Terminal prints one colored line per notification.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminal returns a notifier writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) Show(_ context.Context, d notification.Delivery) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	shownAt := d.ShownAt
	if shownAt.IsZero() {
		shownAt = time.Now()
	}
	info := notification.Lookup(d.Data.Type)
	line := fmt.Sprintf("[%s] [%s] %s %s", shownAt.Format("15:04:05"), d.Channel, info.Emoji, d.Title)
	if _, err := fmt.Fprintf(t.out, "%s%s%s\n", colorForType(info.Name), line, colors.Reset); err != nil {
		return err
	}
	if d.Body != "" {
		if _, err := fmt.Fprintf(t.out, "  └─ %s\n", d.Body); err != nil {
			return err
		}
	}
	return nil
}

func colorForType(name string) string {
	switch name {
	case "error":
		return colors.Red
	case "warning", "collection":
		return colors.Yellow
	case "success", "payment":
		return colors.Green
	case "offer":
		return colors.Magenta
	case "order", "invoice":
		return colors.Cyan
	default:
		return colors.Blue
	}
}

// Multi shows on every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Show(ctx context.Context, d notification.Delivery) error {
	var errs []error
	for _, n := range m {
		if err := n.Show(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PermissionSource reports the current notification permission.
type PermissionSource interface {
	Permission() notification.Permission
}

// Gate drops notifications unless permission is granted. A dropped
// notification returns ErrDropped.
type Gate struct {
	next  Notifier
	perms PermissionSource
	log   logging.Logger
}

// NewGate wraps next.
func NewGate(next Notifier, perms PermissionSource, log logging.Logger) *Gate {
	if log == nil {
		log = logging.Nop()
	}
	return &Gate{next: next, perms: perms, log: log}
}

func (g *Gate) Show(ctx context.Context, d notification.Delivery) error {
	if p := g.perms.Permission(); !p.Granted() {
		g.log.Debug("notification dropped", "permission", p.String(), "tag", d.Data.Tag)
		return fmt.Errorf("permission %s: %w", p.String(), ErrDropped)
	}
	return g.next.Show(ctx, d)
}

// Throttle limits how many notifications per minute reach next. Excess
// notifications are dropped with ErrDropped and counted.
type Throttle struct {
	next    Notifier
	limiter *rate.Limiter
	log     logging.Logger

	mu      sync.Mutex
	dropped int
}

// NewThrottle allows perMinute notifications per minute with an equal burst.
// perMinute <= 0 disables throttling.
func NewThrottle(next Notifier, perMinute int, log logging.Logger) *Throttle {
	if log == nil {
		log = logging.Nop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &Throttle{next: next, limiter: limiter, log: log}
}

func (t *Throttle) Show(ctx context.Context, d notification.Delivery) error {
	if !t.limiter.Allow() {
		t.mu.Lock()
		t.dropped++
		t.mu.Unlock()
		t.log.Warn("notification throttled", "tag", d.Data.Tag, "channel", string(d.Channel))
		return fmt.Errorf("throttled: %w", ErrDropped)
	}
	return t.next.Show(ctx, d)
}

// Dropped returns how many notifications were throttled.
func (t *Throttle) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Recorder appends every successfully shown notification to the delivery log.
type Recorder struct {
	next Notifier
	log  storage.DeliveryLog
	l    logging.Logger
	now  func() time.Time
}

// NewRecorder wraps next.
func NewRecorder(next Notifier, deliveries storage.DeliveryLog, log logging.Logger) *Recorder {
	if log == nil {
		log = logging.Nop()
	}
	return &Recorder{next: next, log: deliveries, l: log, now: time.Now}
}

func (r *Recorder) Show(ctx context.Context, d notification.Delivery) error {
	if d.ShownAt.IsZero() {
		d.ShownAt = r.now()
	}
	if err := r.next.Show(ctx, d); err != nil {
		return err
	}
	if err := r.log.RecordDelivery(ctx, d); err != nil {
		r.l.Warn("failed to record delivery", "error", err)
	}
	return nil
}
