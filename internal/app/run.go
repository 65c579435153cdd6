package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"golang.org/x/sync/errgroup"
)

// RunOptions select what Run starts.
type RunOptions struct {
	// Addr is where the push relay listens. Empty disables the relay.
	Addr string
	// Poll starts the polling fallback for the stored auth token.
	Poll bool
	// Ready, when set, is called once every component is started.
	Ready func()
}

// DefaultRunOptions reads relay_addr and polling_enabled.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Addr: config.Get("relay_addr", "127.0.0.1:8787"),
		Poll: config.GetBool("polling_enabled", true),
	}
}

// Run serves the push relay, mounts the provider and polls until ctx is
// cancelled or the relay fails.
func (s *Session) Run(ctx context.Context, opts RunOptions) error {
	authToken := s.AuthToken(ctx)
	if opts.Addr == "" && authToken == "" {
		// Without the relay only polling could deliver anything.
		return pnerrors.ErrNotAuthenticated
	}
	g, gctx := errgroup.WithContext(ctx)

	if opts.Addr != "" {
		g.Go(func() error {
			if err := s.Relay.Serve(gctx, opts.Addr); err != nil {
				return fmt.Errorf("push relay: %w", err)
			}
			return nil
		})
	}

	unsubscribe := s.Foreground.Listen(s.Relay)
	defer unsubscribe()

	s.Provider.Mount(gctx, authToken)
	defer s.Provider.Unmount()

	if opts.Poll && authToken != "" {
		// The polling fallback ships its own worker script next to the
		// messaging one.
		if _, err := s.Browser.Register(gctx, config.Get("polling_worker_path", "/sw.js")); err != nil {
			s.log.Warn("failed to register polling worker", "error", err)
		}
		h := s.Polling.Start(gctx, authToken, s.PollInterval(gctx))
		g.Go(func() error {
			<-gctx.Done()
			s.Polling.Stop(h)
			<-h.Done()
			return nil
		})
		s.log.Info("polling started", "interval", h.Interval().String())
	} else if opts.Poll {
		s.log.Warn("polling skipped: not logged in")
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if opts.Ready != nil {
		opts.Ready()
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
