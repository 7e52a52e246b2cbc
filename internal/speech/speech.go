// Package speech wraps the OpenAI audio endpoints: Whisper transcription of
// recorded utterances and text-to-speech synthesis of replies.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/abhisek/eikaiwa/internal/audio"
)

// MinDuration is the shortest recording sent for transcription.
const MinDuration = 100 * time.Millisecond

var (
	// ErrEmptyAudio is returned for a zero-byte recording.
	ErrEmptyAudio = errors.New("audio file is empty")

	// ErrEmptyText is returned when asked to synthesize nothing.
	ErrEmptyText = errors.New("nothing to synthesize")
)

// ErrAudioTooShort is returned when a recording is below MinDuration or the
// transcription API rejects it as too short.
type ErrAudioTooShort struct {
	Duration time.Duration // zero when reported by the API
	Err      error
}

func (e *ErrAudioTooShort) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio too short: %v", e.Err)
	}
	return fmt.Sprintf("audio too short (%s, minimum %s)", e.Duration, MinDuration)
}

func (e *ErrAudioTooShort) Unwrap() error { return e.Err }

// Transcriber turns a recorded file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Config configures the OpenAI audio client.
type Config struct {
	APIKey             string
	BaseURL            string // optional, for compatible APIs
	TranscriptionModel string
	TTSModel           string
	Voice              string // default voice when a call passes none
	Language           string // ISO-639-1 hint for transcription
}

// DefaultConfig returns whisper-1 / tts-1 with the "nova" voice, English.
func DefaultConfig() Config {
	return Config{
		TranscriptionModel: openai.Whisper1,
		TTSModel:           string(openai.TTSModel1),
		Voice:              string(openai.VoiceNova),
		Language:           "en",
	}
}

var voices = map[string]openai.SpeechVoice{
	"alloy":   openai.VoiceAlloy,
	"echo":    openai.VoiceEcho,
	"fable":   openai.VoiceFable,
	"onyx":    openai.VoiceOnyx,
	"nova":    openai.VoiceNova,
	"shimmer": openai.VoiceShimmer,
}

// VoiceByName resolves a TTS voice name.
func VoiceByName(name string) (openai.SpeechVoice, bool) {
	v, ok := voices[strings.ToLower(name)]
	return v, ok
}

// Client implements Transcriber and Synthesizer against the OpenAI API.
type Client struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

var (
	_ Transcriber = (*Client)(nil)
	_ Synthesizer = (*Client)(nil)
)

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required for speech")
	}
	if _, ok := VoiceByName(cfg.Voice); !ok {
		return nil, fmt.Errorf("unknown voice %q", cfg.Voice)
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		logger: slog.Default().With("component", "speech"),
	}, nil
}

// Transcribe sends the WAV at path to Whisper and returns the text. The
// file is consumed: it is removed once the call completes, and also when
// it is rejected up front for being empty or shorter than MinDuration.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("recording: %w", err)
	}
	defer removeQuietly(path)

	if info.Size() == 0 {
		return "", ErrEmptyAudio
	}
	d, err := audio.Probe(path)
	if err != nil {
		return "", err
	}
	if d < MinDuration {
		return "", &ErrAudioTooShort{Duration: d}
	}

	start := time.Now()
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: path,
		Language: c.cfg.Language,
	})
	if err != nil {
		return "", mapTranscriptionError(err)
	}
	text := strings.TrimSpace(resp.Text)
	c.logger.Debug("transcribed", "audio", d, "chars", len(text), "took", time.Since(start))
	return text, nil
}

func mapTranscriptionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest && isAudioTooShort(apiErr) {
		return &ErrAudioTooShort{Err: err}
	}
	return fmt.Errorf("transcription: %w", err)
}

const audioTooShortCode = "audio_too_short"

func isAudioTooShort(apiErr *openai.APIError) bool {
	if code, ok := apiErr.Code.(string); ok && code == audioTooShortCode {
		return true
	}
	return strings.Contains(apiErr.Message, audioTooShortCode)
}

// Synthesize returns MP3 audio of text spoken in voice. An empty voice uses
// the configured default.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voice == "" {
		voice = c.cfg.Voice
	}
	v, ok := VoiceByName(voice)
	if !ok {
		return nil, fmt.Errorf("unknown voice %q", voice)
	}

	start := time.Now()
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.cfg.TTSModel),
		Input:          text,
		Voice:          v,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading synthesized audio: %w", err)
	}
	c.logger.Debug("synthesized", "voice", v, "chars", len(text), "bytes", len(data), "took", time.Since(start))
	return data, nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove recording", "path", path, "error", err)
	}
}
