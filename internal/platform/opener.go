package platform

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

// Opener opens a URL for the user.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// SystemOpener opens URLs with the desktop's default handler.
type SystemOpener struct{}

var runCommand = func(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (SystemOpener) Open(ctx context.Context, url string) error {
	name, args := openCommand(runtime.GOOS)
	if err := runCommand(ctx, name, append(args, url)...); err != nil {
		return fmt.Errorf("%s %s: %w", name, url, err)
	}
	return nil
}

func openCommand(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}

// RecordingOpener remembers every URL instead of opening it.
type RecordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (r *RecordingOpener) Open(_ context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	return nil
}

// URLs returns the opened URLs in order.
func (r *RecordingOpener) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}
