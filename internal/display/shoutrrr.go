package display

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
)

// sender is the subset of the shoutrrr router used here.
type sender interface {
	Send(message string, params *stypes.Params) []error
}

// Shoutrrr forwards notifications to shoutrrr service URLs (desktop,
// ntfy, gotify, generic webhooks and so on).
type Shoutrrr struct {
	sender sender
}

// NewShoutrrr builds a sender for urls.
func NewShoutrrr(urls []string, timeout time.Duration) (*Shoutrrr, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("shoutrrr: at least one URL is required")
	}
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("shoutrrr: create sender: %w", err)
	}
	if timeout > 0 {
		router.Timeout = timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))
	return &Shoutrrr{sender: router}, nil
}

func (s *Shoutrrr) Show(_ context.Context, d notification.Delivery) error {
	params := stypes.Params{}
	if d.Title != "" {
		params.SetTitle(d.Title)
	}
	for _, err := range s.sender.Send(d.Body, &params) {
		if err != nil {
			return fmt.Errorf("shoutrrr: send: %w", err)
		}
	}
	return nil
}
