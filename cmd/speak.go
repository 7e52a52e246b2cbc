package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/eikaiwa/internal/audio"
	"github.com/abhisek/eikaiwa/internal/speech"
)

var speakCmd = &cobra.Command{
	Use:   "speak <text...>",
	Short: "Read English text aloud",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		speed, _ := cmd.Flags().GetFloat64("speed")
		if !audio.ValidSpeed(speed) {
			return fmt.Errorf("unsupported speed %v (choose one of %v)", speed, audio.Speeds)
		}
		voice, _ := cmd.Flags().GetString("voice")

		cfg, logCloser, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logCloser.Close()

		speechCfg := cfg.SpeechSettings()
		if voice == "" {
			voice = speechCfg.Voice
		}
		client, err := speech.New(speechCfg)
		if err != nil {
			return err
		}

		audioCfg := cfg.AudioSettings()
		if err := audioCfg.EnsureDirs(); err != nil {
			return err
		}
		pa, err := audio.OpenPortAudio()
		if err != nil {
			return err
		}
		defer pa.Close()

		ctx := cmd.Context()
		mp3, err := client.Synthesize(ctx, strings.Join(args, " "), voice)
		if err != nil {
			return err
		}
		path := audioCfg.OutputPath(time.Now())
		if err := audio.NewTranscoder(audioCfg).SaveMP3AsWAV(ctx, mp3, path); err != nil {
			return err
		}
		return audio.NewPlayer(audioCfg, pa).Play(ctx, path, speed)
	},
}

func init() {
	speakCmd.Flags().Float64("speed", audio.DefaultSpeed, "Playback speed")
	speakCmd.Flags().String("voice", "", "TTS voice (default: speech.voice)")
}
