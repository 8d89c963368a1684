package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mimic/internal/pipeline"
)

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var (
		text      string
		profileID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate processing time for a prospective run",
		RunE: func(cmd *cobra.Command, args []string) error {
			coordinator, err := ctx.coordinator(cmd.Context())
			if err != nil {
				return err
			}
			estimate, err := coordinator.Estimate(text, profileID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, estimate)
			}

			rows := make([][]string, 0, len(estimate.Stages)+2)
			for _, stage := range pipeline.StageNames() {
				rows = append(rows, []string{stage, fmt.Sprintf("%.1fs", estimate.Stages[stage])})
			}
			rows = append(rows, []string{"total", fmt.Sprintf("%.1fs", estimate.ProcessingSeconds)})
			fmt.Fprintf(out, "Estimated audio: %.1fs\n", estimate.AudioDurationSeconds)
			fmt.Fprintln(out, renderTable([]string{"Stage", "Estimate"}, rows, 1))
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to speak")
	cmd.Flags().StringVar(&profileID, "profile", "", "Voice profile id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}
