package sound

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
)

// Sounder plays the chime for a notification type.
type Sounder interface {
	Play(ctx context.Context, typ string) error
}

// Silent never plays anything.
type Silent struct{}

func (Silent) Play(context.Context, string) error { return nil }

// Chime renders per-type WAV files once into a cache dir and plays them.
// The notificationSound preference, when set to "false", mutes it.
type Chime struct {
	player   Player
	prefs    storage.KV
	cacheDir string

	mu       sync.Mutex
	rendered map[string]string
}

// NewChime returns a chime playing through player. prefs may be nil.
func NewChime(player Player, prefs storage.KV, cacheDir string) *Chime {
	return &Chime{
		player:   player,
		prefs:    prefs,
		cacheDir: cacheDir,
		rendered: make(map[string]string),
	}
}

// Enabled reports whether the user preference allows sound.
func (c *Chime) Enabled(ctx context.Context) bool {
	if c.prefs == nil {
		return true
	}
	return storage.GetOr(ctx, c.prefs, storage.KeyNotificationSound, "true") != "false"
}

// Play plays the chime for typ. Errors wrap errors.ErrAudioPlayback and
// callers are expected to log and continue.
func (c *Chime) Play(ctx context.Context, typ string) error {
	if !c.Enabled(ctx) {
		return nil
	}
	if c.player == nil {
		return fmt.Errorf("%w: no player configured", pnerrors.ErrAudioPlayback)
	}
	path, err := c.file(notification.Lookup(typ))
	if err != nil {
		return fmt.Errorf("%w: %v", pnerrors.ErrAudioPlayback, err)
	}
	return c.player.Play(ctx, path)
}

func (c *Chime) file(info notification.TypeInfo) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if path, ok := c.rendered[info.Name]; ok {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	path := filepath.Join(c.cacheDir, "chime-"+info.Name+".wav")
	if err := WriteWAVFile(path, info.Tones); err != nil {
		return "", err
	}
	c.rendered[info.Name] = path
	return path, nil
}
