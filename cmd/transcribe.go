package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/eikaiwa/internal/audio"
	"github.com/abhisek/eikaiwa/internal/speech"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe a recording with Whisper (any format ffmpeg reads)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logCloser, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logCloser.Close()

		client, err := speech.New(cfg.SpeechSettings())
		if err != nil {
			return err
		}

		wav, err := stageRecording(cmd.Context(), args[0], audio.NewTranscoder(cfg.AudioSettings()))
		if err != nil {
			return err
		}
		defer os.Remove(wav)

		text, err := client.Transcribe(cmd.Context(), wav)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

type wavConverter interface {
	Transcode(ctx context.Context, src, dst string) error
}

// stageRecording returns a temporary WAV copy of path, converting other
// formats with ffmpeg. Transcription consumes its input, so the user's file
// is never passed directly.
func stageRecording(ctx context.Context, path string, conv wavConverter) (string, error) {
	tmp, err := copyToTemp(path)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(tmp)
	if strings.EqualFold(ext, ".wav") {
		return tmp, nil
	}

	// Transcode removes tmp whether or not it succeeds.
	wav := strings.TrimSuffix(tmp, ext) + ".wav"
	if err := conv.Transcode(ctx, tmp, wav); err != nil {
		return "", err
	}
	return wav, nil
}

func copyToTemp(path string) (_ string, err error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "eikaiwa-*"+filepath.Ext(path))
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst.Name())
		}
	}()
	if _, err = io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copying %s: %w", path, err)
	}
	return dst.Name(), nil
}
