package sound

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
)

// Player plays a WAV file.
type Player interface {
	Play(ctx context.Context, path string) error
}

// CommandPlayer plays files with an external program.
type CommandPlayer struct {
	Name string
	Args []string
}

// knownPlayers is searched in order when sound_player is auto.
var knownPlayers = []string{"paplay", "pw-play", "aplay", "afplay"}

var lookPath = exec.LookPath

// DetectPlayer returns the player named by preference, or the first known
// player found on PATH when preference is "auto" or empty.
func DetectPlayer(preference string) (*CommandPlayer, error) {
	preference = strings.TrimSpace(preference)
	if preference != "" && preference != "auto" {
		fields := strings.Fields(preference)
		if _, err := lookPath(fields[0]); err != nil {
			return nil, fmt.Errorf("%w: player %q not found", pnerrors.ErrAudioPlayback, fields[0])
		}
		return &CommandPlayer{Name: fields[0], Args: fields[1:]}, nil
	}
	for _, name := range knownPlayers {
		if _, err := lookPath(name); err == nil {
			return &CommandPlayer{Name: name}, nil
		}
	}
	return nil, fmt.Errorf("%w: no audio player found", pnerrors.ErrAudioPlayback)
}

func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	args := append(append([]string{}, p.Args...), path)
	out, err := exec.CommandContext(ctx, p.Name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %v: %s", pnerrors.ErrAudioPlayback, p.Name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
