package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/eikaiwa/internal/llm"
	"github.com/abhisek/eikaiwa/internal/screens/usage"
	"github.com/abhisek/eikaiwa/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Check the configured chat backend",
}

var llmAskCmd = &cobra.Command{
	Use:   "ask <prompt...>",
	Short: "Send one prompt and show the captured request event",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		system, _ := cmd.Flags().GetString("system")
		verbose, _ := cmd.Flags().GetBool("verbose")

		cfg, logCloser, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logCloser.Close()

		st, err := store.OpenMemory()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		events := st.EventRepo()

		ctx := llm.WithPurpose(cmd.Context(), "cli-ask")
		provider, err := llm.NewProvider(ctx, cfg.LLMSettings(), events)
		if err != nil {
			return err
		}

		resp, genErr := provider.Generate(ctx, llm.Request{
			System:      system,
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: strings.Join(args, " ")}},
			Temperature: cfg.LLM.Temperature,
		})

		out := cmd.OutOrStdout()
		if genErr == nil {
			fmt.Fprintln(out, resp.Text())
			fmt.Fprintln(out)
		}
		if err := printLastEvent(context.Background(), out, events, verbose); err != nil {
			return err
		}
		if genErr != nil {
			return genErr
		}

		purposes, err := events.LLMUsageByPurpose(context.Background())
		if err != nil {
			return err
		}
		models, err := events.LLMUsageByModel(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, usage.Report(purposes, models))
		return nil
	},
}

func printLastEvent(ctx context.Context, out io.Writer, events store.EventRepo, verbose bool) error {
	recs, err := events.QueryLLMEvents(ctx, store.QueryOpts{Limit: 1})
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No LLM event was recorded.")
		return nil
	}
	e, err := events.GetLLMEvent(ctx, recs[0].ID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	fmt.Fprintf(out, "Provider:  %s\n", e.Provider)
	fmt.Fprintf(out, "Model:     %s\n", e.Model)
	fmt.Fprintf(out, "Purpose:   %s\n", e.Purpose)
	fmt.Fprintf(out, "Tokens:    %d in / %d out\n", e.InputTokens, e.OutputTokens)
	fmt.Fprintf(out, "Latency:   %dms\n", e.LatencyMs)
	fmt.Fprintf(out, "Success:   %v\n", e.Success)
	if e.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", e.ErrorMessage)
	}
	if !verbose {
		return nil
	}

	sep := strings.Repeat("─", 60)
	for _, part := range []struct{ label, body string }{
		{"REQUEST", e.RequestBody},
		{"RESPONSE", e.ResponseBody},
	} {
		fmt.Fprintln(out, sep)
		fmt.Fprintln(out, part.label)
		fmt.Fprintln(out, sep)
		if part.body == "" {
			fmt.Fprintln(out, "(not captured)")
			continue
		}
		fmt.Fprintln(out, part.body)
	}
	return nil
}

func init() {
	llmAskCmd.Flags().String("system", "", "System instruction to send with the prompt")
	llmAskCmd.Flags().BoolP("verbose", "v", false, "Print the captured request and response bodies")

	llmCmd.AddCommand(llmAskCmd)
}
