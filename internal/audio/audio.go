// Package audio records microphone input, transcodes synthesized speech with
// ffmpeg and plays WAV files back at a chosen speed.
//
// Device access sits behind the InputDevice and OutputDevice interfaces so
// the recording and playback logic can run against in-memory fakes; the
// PortAudio type is the real implementation.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoAudio is returned when a recording captured no speech.
var ErrNoAudio = errors.New("no audio captured")

// Config configures the audio adapter.
type Config struct {
	InputDir  string // recordings, default "audio/input"
	OutputDir string // synthesized speech, default "audio/output"
	TempFile  string // shared MP3 staging file, default "temp_audio.mp3"

	FFmpegPath string

	SampleRate      int // capture rate in Hz
	FramesPerBuffer int

	// SilenceThreshold is the RMS level, in 16-bit sample units, below
	// which a buffer counts as silence.
	SilenceThreshold float64

	// SilenceDuration of continuous silence after speech ends a recording.
	SilenceDuration time.Duration

	// MaxDuration caps a recording, including any leading silence.
	MaxDuration time.Duration
}

// DefaultConfig returns the capture settings used for speech: 16 kHz mono,
// 1024-frame buffers, stop after 3s of silence or 30s total.
func DefaultConfig() Config {
	return Config{
		InputDir:         filepath.Join("audio", "input"),
		OutputDir:        filepath.Join("audio", "output"),
		TempFile:         "temp_audio.mp3",
		FFmpegPath:       "ffmpeg",
		SampleRate:       16000,
		FramesPerBuffer:  1024,
		SilenceThreshold: 300,
		SilenceDuration:  3 * time.Second,
		MaxDuration:      30 * time.Second,
	}
}

// EnsureDirs creates the input and output staging directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.InputDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

const stampLayout = "20060102150405"

// InputPath returns the timestamped recording path for t.
func (c Config) InputPath(t time.Time) string {
	return filepath.Join(c.InputDir, fmt.Sprintf("audio_input_%s.wav", t.Format(stampLayout)))
}

// OutputPath returns the timestamped playback path for t.
func (c Config) OutputPath(t time.Time) string {
	return filepath.Join(c.OutputDir, fmt.Sprintf("audio_output_%s.wav", t.Format(stampLayout)))
}

// removeQuietly deletes path, ignoring a missing file.
func removeQuietly(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger().Warn("failed to remove audio file", "path", path, "error", err)
	}
}
