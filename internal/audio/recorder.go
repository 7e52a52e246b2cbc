package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder captures one utterance from an InputDevice into a WAV file.
type Recorder struct {
	cfg    Config
	device InputDevice
	now    func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(cfg Config, device InputDevice) *Recorder {
	return &Recorder{cfg: cfg, device: device, now: time.Now}
}

// Record listens until speech is followed by SilenceDuration of silence or
// MaxDuration elapses, then writes the captured audio to a timestamped WAV
// under InputDir and returns its path. Leading silence is dropped apart
// from one buffer of pre-roll. If no speech was heard it returns ErrNoAudio
// and leaves no file behind.
func (r *Recorder) Record(ctx context.Context) (string, error) {
	stream, err := r.device.OpenInput(r.cfg.SampleRate, r.cfg.FramesPerBuffer)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	log := logger()
	start := time.Now()

	buf := make([]int16, r.cfg.FramesPerBuffer)
	var (
		captured  []int16
		preroll   []int16
		heard     bool
		silentFor time.Duration
		elapsed   time.Duration
	)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := stream.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			d := framesDuration(n, r.cfg.SampleRate)
			elapsed += d

			if computeRMS(chunk) >= r.cfg.SilenceThreshold {
				if !heard {
					captured = append(captured, preroll...)
					heard = true
				}
				silentFor = 0
			} else if heard {
				silentFor += d
			}

			if heard {
				captured = append(captured, chunk...)
			} else {
				preroll = append(preroll[:0], chunk...)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("reading input: %w", err)
		}
		if heard && silentFor >= r.cfg.SilenceDuration {
			break
		}
		if elapsed >= r.cfg.MaxDuration {
			break
		}
	}

	if !heard || len(captured) == 0 {
		log.Info("recording ended without speech", "elapsed", elapsed)
		return "", ErrNoAudio
	}

	path := r.cfg.InputPath(r.now())
	if err := writeWAV(path, captured, r.cfg.SampleRate); err != nil {
		return "", err
	}
	log.Debug("recorded utterance", "path", path, "samples", len(captured),
		"audio", framesDuration(len(captured), r.cfg.SampleRate), "took", time.Since(start))
	return path, nil
}

// writeWAV writes mono 16-bit samples to path, removing the file on failure.
func writeWAV(path string, samples []int16, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			removeQuietly(path)
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}
