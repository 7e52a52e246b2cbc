package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abhisek/eikaiwa/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "eikaiwa",
	Short: "Voice English conversation practice",
	Long: "eikaiwa is a terminal app for practicing spoken English with an AI partner:\n" +
		"free conversation, shadowing and dictation, with Japanese feedback.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: search for eikaiwa.yaml)")
	rootCmd.Flags().Bool("usage", false, "Print LLM usage for the session on exit")

	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(speakCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads and validates the configuration named by --config and
// sets up logging. The returned closer releases the log file.
func loadConfig(cmd *cobra.Command) (*config.Config, io.Closer, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	closer, err := config.SetupLogging(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}
