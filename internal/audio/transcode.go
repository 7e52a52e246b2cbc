package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// TranscodeError is returned when ffmpeg fails to start or exits non-zero.
type TranscodeError struct {
	Src, Dst string
	Stderr   string
	Err      error
}

func (e *TranscodeError) Error() string {
	msg := fmt.Sprintf("transcoding %s to %s: %v", e.Src, e.Dst, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func (e *TranscodeError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Transcoder converts audio files by running ffmpeg.
type Transcoder struct {
	cfg Config
}

// NewTranscoder creates a Transcoder.
func NewTranscoder(cfg Config) *Transcoder {
	return &Transcoder{cfg: cfg}
}

// Transcode runs `ffmpeg -y -i src dst`, letting ffmpeg pick formats from
// the file extensions. The source file is always removed afterwards; a
// partial destination is removed on failure.
func (t *Transcoder) Transcode(ctx context.Context, src, dst string) (err error) {
	defer func() {
		removeQuietly(src)
		if err != nil {
			removeQuietly(dst)
		}
	}()

	start := time.Now()
	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, "-y", "-i", src, dst)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &TranscodeError{Src: src, Dst: dst, Stderr: stderr.String(), Err: err}
	}
	logger().Debug("transcoded", "src", src, "dst", dst, "took", time.Since(start))
	return nil
}

// SaveMP3AsWAV stages MP3 bytes in the shared temp file and transcodes them
// to a WAV at dst.
func (t *Transcoder) SaveMP3AsWAV(ctx context.Context, mp3 []byte, dst string) error {
	if err := os.WriteFile(t.cfg.TempFile, mp3, 0o644); err != nil {
		return fmt.Errorf("staging mp3: %w", err)
	}
	return t.Transcode(ctx, t.cfg.TempFile, dst)
}
