// Package sound renders and plays the notification chime. Every channel
// uses the same synthesized sound so background and foreground
// notifications are audibly identical.
package sound

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	SampleRate  = 44100
	BitDepth    = 16
	NumChannels = 1

	// SegmentDuration is the length of each sweep between two tones.
	SegmentDuration = 150 * time.Millisecond

	attack     = 10 * time.Millisecond
	peakGain   = 0.3
	floorGain  = 0.01
	maxPCM16   = math.MaxInt16
	wavPCMType = 1
)

// Synthesize renders a sine sweep through tones. Each consecutive pair is
// joined by an exponential frequency ramp, and the whole chime runs
// through a short attack followed by an exponential decay.
func Synthesize(tones []float64) []int {
	if len(tones) == 0 {
		return nil
	}
	segments := len(tones) - 1
	if segments == 0 {
		segments = 1
	}
	segLen := int(SegmentDuration.Seconds() * SampleRate)
	total := segLen * segments
	attackLen := int(attack.Seconds() * SampleRate)

	samples := make([]int, total)
	phase := 0.0
	for i := 0; i < total; i++ {
		seg := i / segLen
		from := tones[seg]
		to := from
		if seg+1 < len(tones) {
			to = tones[seg+1]
		}
		progress := float64(i%segLen) / float64(segLen)
		freq := from * math.Pow(to/from, progress)
		phase += 2 * math.Pi * freq / SampleRate

		samples[i] = int(math.Sin(phase) * envelope(i, total, attackLen) * maxPCM16)
	}
	return samples
}

func envelope(i, total, attackLen int) float64 {
	if i < attackLen {
		return peakGain * float64(i) / float64(attackLen)
	}
	decay := float64(i-attackLen) / float64(total-attackLen)
	return peakGain * math.Pow(floorGain/peakGain, decay)
}

// EncodeWAV writes samples as a 16-bit mono WAV stream.
func EncodeWAV(w io.WriteSeeker, samples []int) error {
	enc := wav.NewEncoder(w, SampleRate, BitDepth, NumChannels, wavPCMType)
	buf := &audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{SampleRate: SampleRate, NumChannels: NumChannels},
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write to WAV encoder: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile renders tones into a WAV file at path.
func WriteWAVFile(path string, tones []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()
	return EncodeWAV(f, Synthesize(tones))
}
