// Package push is the local push relay. It issues push tokens for worker
// registrations and delivers messages posted for those tokens either to
// foreground subscribers or to the background handler, the way the web
// push service splits delivery between an open tab and the service worker.
package push

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/metrics"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/platform"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/google/uuid"
)

var (
	// ErrMissingVAPIDKey is returned by GetToken without a VAPID key.
	ErrMissingVAPIDKey = errors.New("missing VAPID key")
	// ErrUnknownToken is returned when a message targets a token never issued.
	ErrUnknownToken = errors.New("unknown push token")
	// ErrNoReceiver is returned when nothing can receive a message.
	ErrNoReceiver = errors.New("no receiver for push message")
)

// Handler receives a push payload.
type Handler func(ctx context.Context, p notification.Payload)

// TokenOptions mirror the messaging SDK's getToken options.
type TokenOptions struct {
	VAPIDKey     string
	Registration platform.Registration
}

// Message is the body accepted by the relay endpoint.
type Message struct {
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Icon  string `json:"icon,omitempty"`
		Image string `json:"image,omitempty"`
	} `json:"notification"`
	Data notification.Data `json:"data"`
}

// Payload converts m into a displayable payload.
func (m Message) Payload() notification.Payload {
	return notification.Payload{
		Title: m.Notification.Title,
		Body:  m.Notification.Body,
		Icon:  m.Notification.Icon,
		Image: m.Notification.Image,
		Data:  m.Data,
	}
}

// Relay issues tokens and routes messages.
type Relay struct {
	kv      storage.KV
	log     logging.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	tokens      map[string]struct{}
	subscribers map[int]Handler
	nextID      int
	background  Handler
	foreground  bool
}

// NewRelay returns a relay storing its installation id in kv.
func NewRelay(kv storage.KV, m *metrics.Metrics, log logging.Logger) *Relay {
	if log == nil {
		log = logging.Nop()
	}
	return &Relay{
		kv:          kv,
		log:         log,
		metrics:     m,
		tokens:      make(map[string]struct{}),
		subscribers: make(map[int]Handler),
	}
}

// GetToken returns the push token of the registration. The token is stable
// for a given VAPID key, worker and installation.
func (r *Relay) GetToken(ctx context.Context, opts TokenOptions) (string, error) {
	if opts.VAPIDKey == "" {
		return "", ErrMissingVAPIDKey
	}
	if opts.Registration == nil {
		return "", fmt.Errorf("get token: no service worker registration")
	}
	installation, err := r.installationID(ctx)
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	sum := sha256.Sum256([]byte(opts.VAPIDKey + "\n" + opts.Registration.Scope() + "\n" + opts.Registration.ScriptURL() + "\n" + installation))
	token := base64.RawURLEncoding.EncodeToString(sum[:])

	r.mu.Lock()
	r.tokens[token] = struct{}{}
	r.mu.Unlock()
	return token, nil
}

func (r *Relay) installationID(ctx context.Context) (string, error) {
	id, err := r.kv.Get(ctx, storage.KeyInstallationID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	id = uuid.NewString()
	if err := r.kv.Set(ctx, storage.KeyInstallationID, id); err != nil {
		return "", err
	}
	return id, nil
}

// restoreToken accepts the token persisted by an earlier process, which
// the backend still holds for this device.
func (r *Relay) restoreToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	stored, err := r.kv.Get(ctx, storage.KeyFCMToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.log.Warn("failed to read stored push token", "error", err)
		}
		return false
	}
	if stored != token {
		return false
	}
	r.mu.Lock()
	r.tokens[token] = struct{}{}
	r.mu.Unlock()
	return true
}

// OnMessage subscribes h to foreground messages. The returned function
// unsubscribes and must be called when the subscriber goes away.
func (r *Relay) OnMessage(h Handler) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subscribers[id] = h
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subscribers, id)
			r.mu.Unlock()
		})
	}
}

// Subscribers returns the number of foreground subscribers.
func (r *Relay) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// SetBackgroundHandler installs the handler used when no foreground
// subscriber takes the message.
func (r *Relay) SetBackgroundHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.background = h
}

// SetForeground marks whether the app is in the foreground.
func (r *Relay) SetForeground(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.foreground = active
}

// Deliver routes m for token and returns the channel that received it.
func (r *Relay) Deliver(ctx context.Context, token string, m Message) (notification.Channel, error) {
	r.mu.RLock()
	_, known := r.tokens[token]
	foreground := r.foreground && len(r.subscribers) > 0
	var handlers []Handler
	if foreground {
		for _, h := range r.subscribers {
			handlers = append(handlers, h)
		}
	}
	background := r.background
	r.mu.RUnlock()

	if !known {
		known = r.restoreToken(ctx, token)
	}
	if !known {
		r.metrics.CountRejected("unknown_token")
		return "", ErrUnknownToken
	}

	p := m.Payload()
	if foreground {
		for _, h := range handlers {
			h(ctx, p)
		}
		r.metrics.CountPush(string(notification.ChannelForeground))
		return notification.ChannelForeground, nil
	}
	if background == nil {
		r.metrics.CountRejected("no_receiver")
		return "", ErrNoReceiver
	}
	background(ctx, p)
	r.metrics.CountPush(string(notification.ChannelBackground))
	return notification.ChannelBackground, nil
}
