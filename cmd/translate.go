package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/eikaiwa/internal/llm"
	"github.com/abhisek/eikaiwa/internal/store"
	"github.com/abhisek/eikaiwa/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate <text...>",
	Short: "Translate English text into Japanese",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logCloser, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logCloser.Close()

		st, err := store.OpenMemory()
		if err != nil {
			return err
		}
		defer st.Close()

		provider, err := llm.NewProvider(cmd.Context(), cfg.LLMSettings(), st.EventRepo())
		if err != nil {
			return err
		}
		out := translate.New(provider).Translate(cmd.Context(), strings.Join(args, " "))
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}
