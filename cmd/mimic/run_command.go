package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"mimic/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		text      string
		profileID string
		avatar    string
		output    string
		keep      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline synchronously",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			coordinator, err := ctx.coordinator(cmd.Context())
			if err != nil {
				return err
			}

			runCfg := coordinator.DefaultRunConfig(cmd.Context())
			if keep {
				runCfg.CleanupIntermediates = false
			}

			out := cmd.OutOrStdout()
			interactive := isTerminal()
			progress := func(stage string, fraction float64) {
				if interactive {
					fmt.Fprintf(out, "\r\033[K%s %3.0f%%", stage, fraction*100)
					return
				}
				fmt.Fprintf(out, "%s %.0f%%\n", stage, fraction*100)
			}

			result := coordinator.Execute(cmd.Context(), pipeline.Request{
				Text:        text,
				ProfileID:   profileID,
				AvatarImage: avatar,
				OutputPath:  output,
				Progress:    progress,
			}, &runCfg)
			if interactive {
				fmt.Fprintln(out)
			}

			if !result.Success {
				return fmt.Errorf("pipeline failed after %d stage(s): %w", len(result.StagesCompleted), result.Err)
			}
			fmt.Fprintf(out, "Wrote %s (%.1fs video, %.1fs processing)\n",
				result.OutputPath, result.DurationSeconds, result.ProcessingSeconds)
			if !runCfg.CleanupIntermediates && len(result.IntermediateArtifacts) > 0 {
				fmt.Fprintf(out, "Kept intermediates under %s/run-%s\n", cfg.Paths.ScratchDir, result.RequestID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to speak")
	cmd.Flags().StringVar(&profileID, "profile", "", "Voice profile id")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar portrait image path")
	cmd.Flags().StringVar(&output, "output", "", "Output video path")
	cmd.Flags().BoolVar(&keep, "keep-intermediates", false, "Retain scratch artifacts for inspection")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("avatar")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
