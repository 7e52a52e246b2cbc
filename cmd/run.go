package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/eikaiwa/internal/app"
	"github.com/abhisek/eikaiwa/internal/audio"
	"github.com/abhisek/eikaiwa/internal/conversation"
	"github.com/abhisek/eikaiwa/internal/llm"
	"github.com/abhisek/eikaiwa/internal/observe"
	"github.com/abhisek/eikaiwa/internal/practice"
	"github.com/abhisek/eikaiwa/internal/screens/usage"
	"github.com/abhisek/eikaiwa/internal/session"
	"github.com/abhisek/eikaiwa/internal/speech"
	"github.com/abhisek/eikaiwa/internal/store"
	"github.com/abhisek/eikaiwa/internal/translate"
)

// runApp loads the configuration, builds the adapters and launches the TUI,
// serving metrics alongside it when configured.
func runApp(cmd *cobra.Command) error {
	cfg, logCloser, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	audioCfg := cfg.AudioSettings()
	if _, err := exec.LookPath(audioCfg.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found (%s): install it or set audio.ffmpeg", audioCfg.FFmpegPath)
	}
	if err := audioCfg.EnsureDirs(); err != nil {
		return err
	}

	st, err := store.OpenMemory()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	events := st.EventRepo()

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	metrics := observe.DefaultMetrics()
	var metricsProvider *observe.Provider
	if cfg.Metrics.Addr != "" {
		metricsProvider, err = observe.InitProvider(version)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer metricsProvider.Shutdown(context.WithoutCancel(ctx))
		if metrics, err = observe.NewMetrics(metricsProvider.MeterProvider); err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
	}

	provider, err := llm.NewProvider(ctx, cfg.LLMSettings(), events)
	if err != nil {
		return err
	}
	provider = observe.WithMetrics(provider, metrics)

	speechClient, err := speech.New(cfg.SpeechSettings())
	if err != nil {
		return err
	}

	pa, err := audio.OpenPortAudio()
	if err != nil {
		return err
	}
	defer pa.Close()

	memory := conversation.NewMemory(cfg.Memory.MaxTokens, conversation.NewLLMSummariser(provider))
	sess := session.New(memory)
	handlers := practice.New(practice.Deps{
		Recorder:    audio.NewRecorder(audioCfg, pa),
		Transcriber: speechClient,
		Synthesizer: speechClient,
		Transcoder:  audio.NewTranscoder(audioCfg),
		Player:      audio.NewPlayer(audioCfg, pa),
		LLM:         provider,
		Events:      events,
		Metrics:     metrics,
		OutputPath:  audioCfg.OutputPath,
		Temperature: cfg.LLM.Temperature,
	})

	slog.Info("starting", "session", sess.ID, "provider", cfg.LLM.Provider, "model", provider.ModelID())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return app.Run(gctx, app.Options{
			Session:    sess,
			Runner:     handlers,
			Translator: translate.New(provider),
			Events:     events,
		})
	})
	if metricsProvider != nil {
		g.Go(func() error {
			return metricsProvider.Serve(gctx, cfg.Metrics.Addr)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if show, _ := cmd.Flags().GetBool("usage"); show {
		return printUsage(context.Background(), events)
	}
	return nil
}

func printUsage(ctx context.Context, events store.EventRepo) error {
	purposes, err := events.LLMUsageByPurpose(ctx)
	if err != nil {
		return err
	}
	models, err := events.LLMUsageByModel(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, usage.Report(purposes, models))
	return nil
}
