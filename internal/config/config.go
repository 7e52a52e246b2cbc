// Package config handles loading and validating the eikaiwa configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhisek/eikaiwa/internal/audio"
	"github.com/abhisek/eikaiwa/internal/llm"
	"github.com/abhisek/eikaiwa/internal/speech"
)

// Config is the root configuration for the eikaiwa app.
type Config struct {
	LLM        LLMConfig     `mapstructure:"llm"`
	OpenAI     KeyConfig     `mapstructure:"openai"`
	Anthropic  KeyConfig     `mapstructure:"anthropic"`
	Gemini     KeyConfig     `mapstructure:"gemini"`
	OpenRouter KeyConfig     `mapstructure:"openrouter"`
	Speech     SpeechConfig  `mapstructure:"speech"`
	Audio      AudioConfig   `mapstructure:"audio"`
	Memory     MemoryConfig  `mapstructure:"memory"`
	Logging    LoggingConfig `mapstructure:"logging"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
}

// LLMConfig selects the chat backend.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, anthropic, gemini, openrouter, mock
	Model       string        `mapstructure:"model"`    // empty keeps the provider default
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// KeyConfig holds an API key and an optional endpoint override.
type KeyConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SpeechConfig configures transcription and synthesis. Both always go
// through OpenAI regardless of the chat backend.
type SpeechConfig struct {
	TranscriptionModel string `mapstructure:"transcription_model"`
	TTSModel           string `mapstructure:"tts_model"`
	Voice              string `mapstructure:"voice"`
	Language           string `mapstructure:"language"`
}

// AudioConfig configures recording, transcoding and playback.
type AudioConfig struct {
	InputDir         string  `mapstructure:"input_dir"`
	OutputDir        string  `mapstructure:"output_dir"`
	TempFile         string  `mapstructure:"temp_file"`
	FFmpeg           string  `mapstructure:"ffmpeg"`
	SampleRate       int     `mapstructure:"sample_rate"`
	SilenceSeconds   float64 `mapstructure:"silence_seconds"`
	MaxSeconds       float64 `mapstructure:"max_seconds"`
	SilenceThreshold float64 `mapstructure:"silence_threshold"`
}

// MemoryConfig bounds the conversation memory.
type MemoryConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	File   string `mapstructure:"file"`   // "-" for stderr
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads the configuration from .env, the config file, environment
// variables and defaults. If configFile is non-empty it is used directly;
// otherwise ./eikaiwa.yaml, ./configs/eikaiwa.yaml and
// $HOME/.config/eikaiwa/eikaiwa.yaml are searched.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("eikaiwa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "eikaiwa"))
		}
	}

	// EIKAIWA_LLM_PROVIDER, EIKAIWA_AUDIO_FFMPEG, ...
	v.SetEnvPrefix("EIKAIWA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The conventional provider variables work without the prefix too.
	for key, env := range map[string]string{
		"openai.api_key":     "OPENAI_API_KEY",
		"anthropic.api_key":  "ANTHROPIC_API_KEY",
		"gemini.api_key":     "GEMINI_API_KEY",
		"openrouter.api_key": "OPENROUTER_API_KEY",
	} {
		if err := v.BindEnv(key, "EIKAIWA_"+env, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.OpenAI.APIKey = resolveEnvRef(cfg.OpenAI.APIKey)
	cfg.Anthropic.APIKey = resolveEnvRef(cfg.Anthropic.APIKey)
	cfg.Gemini.APIKey = resolveEnvRef(cfg.Gemini.APIKey)
	cfg.OpenRouter.APIKey = resolveEnvRef(cfg.OpenRouter.APIKey)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	llmDefaults := llm.DefaultConfig()
	v.SetDefault("llm.provider", llmDefaults.Provider)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", llmDefaults.Temperature)
	v.SetDefault("llm.timeout", llmDefaults.Timeout)

	speechDefaults := speech.DefaultConfig()
	v.SetDefault("speech.transcription_model", speechDefaults.TranscriptionModel)
	v.SetDefault("speech.tts_model", speechDefaults.TTSModel)
	v.SetDefault("speech.voice", speechDefaults.Voice)
	v.SetDefault("speech.language", speechDefaults.Language)

	audioDefaults := audio.DefaultConfig()
	v.SetDefault("audio.input_dir", audioDefaults.InputDir)
	v.SetDefault("audio.output_dir", audioDefaults.OutputDir)
	v.SetDefault("audio.temp_file", audioDefaults.TempFile)
	v.SetDefault("audio.ffmpeg", audioDefaults.FFmpegPath)
	v.SetDefault("audio.sample_rate", audioDefaults.SampleRate)
	v.SetDefault("audio.silence_seconds", audioDefaults.SilenceDuration.Seconds())
	v.SetDefault("audio.max_seconds", audioDefaults.MaxDuration.Seconds())
	v.SetDefault("audio.silence_threshold", audioDefaults.SilenceThreshold)

	v.SetDefault("memory.max_tokens", 1000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "eikaiwa.log")
	v.SetDefault("metrics.addr", "")
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required for transcription and speech synthesis"))
	}
	if err := c.LLMSettings().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.LLM.Timeout < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout must not be negative, got %s", c.LLM.Timeout))
	}
	if _, ok := speech.VoiceByName(c.Speech.Voice); !ok {
		errs = append(errs, fmt.Errorf("unknown speech.voice %q", c.Speech.Voice))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.SilenceSeconds <= 0 {
		errs = append(errs, fmt.Errorf("audio.silence_seconds must be positive, got %g", c.Audio.SilenceSeconds))
	}
	if c.Audio.MaxSeconds < c.Audio.SilenceSeconds {
		errs = append(errs, fmt.Errorf("audio.max_seconds (%g) must be at least audio.silence_seconds (%g)",
			c.Audio.MaxSeconds, c.Audio.SilenceSeconds))
	}
	if c.Audio.SilenceThreshold <= 0 {
		errs = append(errs, fmt.Errorf("audio.silence_threshold must be positive, got %g", c.Audio.SilenceThreshold))
	}
	if c.Memory.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("memory.max_tokens must be positive, got %d", c.Memory.MaxTokens))
	}
	return errors.Join(errs...)
}

// LLMSettings maps the chat section onto the provider layer's Config.
func (c *Config) LLMSettings() llm.Config {
	cfg := llm.DefaultConfig()
	cfg.Provider = c.LLM.Provider
	cfg.Temperature = c.LLM.Temperature
	cfg.Timeout = c.LLM.Timeout

	cfg.OpenAI.APIKey = c.OpenAI.APIKey
	cfg.OpenAI.BaseURL = c.OpenAI.BaseURL
	cfg.Anthropic.APIKey = c.Anthropic.APIKey
	cfg.Gemini.APIKey = c.Gemini.APIKey
	cfg.OpenRouter.APIKey = c.OpenRouter.APIKey
	if c.OpenRouter.BaseURL != "" {
		cfg.OpenRouter.BaseURL = c.OpenRouter.BaseURL
	}

	if c.LLM.Model != "" {
		switch cfg.Provider {
		case "openai":
			cfg.OpenAI.Model = c.LLM.Model
		case "anthropic":
			cfg.Anthropic.Model = c.LLM.Model
		case "gemini":
			cfg.Gemini.Model = c.LLM.Model
		case "openrouter":
			cfg.OpenRouter.Model = c.LLM.Model
		}
	}
	return cfg
}

// SpeechSettings returns the speech client configuration.
func (c *Config) SpeechSettings() speech.Config {
	return speech.Config{
		APIKey:             c.OpenAI.APIKey,
		BaseURL:            c.OpenAI.BaseURL,
		TranscriptionModel: c.Speech.TranscriptionModel,
		TTSModel:           c.Speech.TTSModel,
		Voice:              c.Speech.Voice,
		Language:           c.Speech.Language,
	}
}

// AudioSettings returns the audio adapter configuration.
func (c *Config) AudioSettings() audio.Config {
	cfg := audio.DefaultConfig()
	cfg.InputDir = c.Audio.InputDir
	cfg.OutputDir = c.Audio.OutputDir
	cfg.TempFile = c.Audio.TempFile
	cfg.FFmpegPath = c.Audio.FFmpeg
	cfg.SampleRate = c.Audio.SampleRate
	cfg.SilenceThreshold = c.Audio.SilenceThreshold
	cfg.SilenceDuration = seconds(c.Audio.SilenceSeconds)
	cfg.MaxDuration = seconds(c.Audio.MaxSeconds)
	return cfg
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// SetupLogging configures the global slog logger. Output goes to the log
// file because the terminal belongs to the TUI. The returned closer
// releases the file.
func SetupLogging(cfg LoggingConfig) (io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.WriteCloser
	switch cfg.File {
	case "-":
		out = nopCloser{os.Stderr}
	case "":
		out = nopCloser{io.Discard}
	default:
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
	return out, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
