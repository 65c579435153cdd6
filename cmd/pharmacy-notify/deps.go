/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cristianoliveira/pharmacy-notify/internal/app"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/provider"
	"github.com/cristianoliveira/pharmacy-notify/internal/sound"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/cristianoliveira/pharmacy-notify/internal/tui/state"
	"github.com/cristianoliveira/pharmacy-notify/internal/version"
)

// sessionClient builds the session on first use, after the root command
// has loaded configuration.
type sessionClient struct {
	mu      sync.Mutex
	session *app.Session
	newFunc func(ctx context.Context) (*app.Session, error)
}

func newSessionClient() *sessionClient {
	return &sessionClient{newFunc: func(ctx context.Context) (*app.Session, error) {
		return app.New(ctx, app.Options{Logger: logging.GetGlobal()})
	}}
}

func (c *sessionClient) get(ctx context.Context) (*app.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}
	s, err := c.newFunc(ctx)
	if err != nil {
		return nil, err
	}
	c.session = s
	return s, nil
}

// Close releases the session if one was built.
func (c *sessionClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func (c *sessionClient) Login(ctx context.Context, token, user string) error {
	s, err := c.get(ctx)
	if err != nil {
		return err
	}
	return s.Login(ctx, token, user)
}

func (c *sessionClient) Logout(ctx context.Context) error {
	s, err := c.get(ctx)
	if err != nil {
		return err
	}
	return s.Logout(ctx)
}

func (c *sessionClient) Setup(ctx context.Context) (provider.Snapshot, error) {
	s, err := c.get(ctx)
	if err != nil {
		return provider.Snapshot{}, err
	}
	return s.Setup(ctx)
}

func (c *sessionClient) Run(ctx context.Context, opts app.RunOptions) error {
	s, err := c.get(ctx)
	if err != nil {
		return err
	}
	return s.Run(ctx, opts)
}

// SetPollInterval persists interval as notificationInterval.
func (c *sessionClient) SetPollInterval(ctx context.Context, interval time.Duration) error {
	s, err := c.get(ctx)
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, storage.KeyNotificationInterval, strconv.FormatInt(interval.Milliseconds(), 10))
}

func (c *sessionClient) Stats(ctx context.Context) (notification.Stats, error) {
	s, err := c.get(ctx)
	if err != nil {
		return notification.Stats{}, err
	}
	cred, err := s.Credential(ctx)
	if err != nil {
		return notification.Stats{}, err
	}
	return s.Backend.Stats(ctx, cred)
}

func (c *sessionClient) Unread(ctx context.Context) ([]notification.Record, error) {
	s, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	cred, err := s.Credential(ctx)
	if err != nil {
		return nil, err
	}
	return s.Backend.Unread(ctx, cred)
}

func (c *sessionClient) MarkRead(ctx context.Context, id int) error {
	s, err := c.get(ctx)
	if err != nil {
		return err
	}
	cred, err := s.Credential(ctx)
	if err != nil {
		return err
	}
	return s.Backend.MarkRead(ctx, cred, id)
}

func (c *sessionClient) MarkAllRead(ctx context.Context) error {
	s, err := c.get(ctx)
	if err != nil {
		return err
	}
	cred, err := s.Credential(ctx)
	if err != nil {
		return err
	}
	return s.Backend.MarkAllRead(ctx, cred)
}

func (c *sessionClient) Delete(ctx context.Context, id int) error {
	s, err := c.get(ctx)
	if err != nil {
		return err
	}
	cred, err := s.Credential(ctx)
	if err != nil {
		return err
	}
	return s.Backend.Delete(ctx, cred, id)
}

// TestNotify shows a local notification and reports whether it was
// displayed. Permission is requested first when it was never asked.
func (c *sessionClient) TestNotify(ctx context.Context, title, message, typ string) (bool, error) {
	s, err := c.get(ctx)
	if err != nil {
		return false, err
	}
	if s.Browser.Permission() == notification.PermissionDefault {
		if _, err := s.Browser.Request(ctx); err != nil {
			return false, err
		}
	}
	before := len(s.Browser.Shown())
	if err := s.Polling.SendImmediateNotification(ctx, title, message, typ); err != nil {
		return false, err
	}
	return len(s.Browser.Shown()) > before, nil
}

func (c *sessionClient) PlaySound(ctx context.Context, typ string) error {
	s, err := c.get(ctx)
	if err != nil {
		return err
	}
	return s.Sound.Play(ctx, typ)
}

func (c *sessionClient) WriteSound(_ context.Context, typ, path string) error {
	return sound.WriteWAVFile(path, notification.Lookup(typ).Tones)
}

func (c *sessionClient) History(ctx context.Context, limit int) ([]storage.DeliveryRow, error) {
	s, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Store.ListDeliveries(ctx, limit)
}

func (c *sessionClient) Duplicates(ctx context.Context) ([]storage.Duplicate, error) {
	s, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Store.DuplicateDeliveries(ctx)
}

func (c *sessionClient) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	s, err := c.get(ctx)
	if err != nil {
		return 0, err
	}
	return s.Store.Cleanup(ctx, olderThan)
}

// RunTUI opens the inbox while the relay and polling run in the background.
func (c *sessionClient) RunTUI(ctx context.Context) error {
	s, err := c.get(ctx)
	if err != nil {
		return err
	}
	cred, err := s.Credential(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx, app.DefaultRunOptions()) }()

	m := state.NewModel(state.Options{
		Context:    ctx,
		Inbox:      s.Backend,
		Provider:   s.Provider,
		Foreground: s.Relay,
		Credential: cred,
	})
	defer m.Close()
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	cancel()
	return <-runErr
}

func (c *sessionClient) Version() string {
	return version.String()
}

var client = newSessionClient()
