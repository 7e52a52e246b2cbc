package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/eikaiwa/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		pa, err := audio.OpenPortAudio()
		if err != nil {
			return err
		}
		defer pa.Close()

		devs, err := pa.Devices()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, d := range devs {
			var marks []string
			if d.DefaultInput {
				marks = append(marks, "default input")
			}
			if d.DefaultOutput {
				marks = append(marks, "default output")
			}
			line := fmt.Sprintf("%-40s %-12s in:%d out:%d %.0fHz", d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
			if len(marks) > 0 {
				line += " (" + strings.Join(marks, ", ") + ")"
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}
