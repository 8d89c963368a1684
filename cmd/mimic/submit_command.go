package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mimic/internal/jobs"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue work for the daemon",
	}

	submitCmd.AddCommand(newSubmitPipelineCommand(ctx))
	submitCmd.AddCommand(newSubmitSpeechCommand(ctx))
	submitCmd.AddCommand(newSubmitEncodeCommand(ctx))

	return submitCmd
}

func newSubmitPipelineCommand(ctx *commandContext) *cobra.Command {
	var (
		text      string
		profileID string
		avatar    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Queue a full text-to-video run",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := jobs.New(jobs.TypeFullPipeline, jobs.FullPipelineParams{
				Text:        text,
				ProfileID:   profileID,
				AvatarImage: avatar,
				OutputPath:  output,
			})
			if err != nil {
				return err
			}
			return submitJob(ctx, cmd, job)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to speak")
	cmd.Flags().StringVar(&profileID, "profile", "", "Voice profile id")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar portrait image path")
	cmd.Flags().StringVar(&output, "output", "", "Output video path")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("avatar")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func newSubmitSpeechCommand(ctx *commandContext) *cobra.Command {
	var (
		text      string
		profileID string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "speech",
		Short: "Queue an audio-only synthesis run",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := jobs.New(jobs.TypeSynthesis, jobs.SynthesisParams{
				Text:       text,
				ProfileID:  profileID,
				OutputPath: output,
			})
			if err != nil {
				return err
			}
			return submitJob(ctx, cmd, job)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to speak")
	cmd.Flags().StringVar(&profileID, "profile", "", "Voice profile id")
	cmd.Flags().StringVar(&output, "output", "", "Output audio path")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func newSubmitEncodeCommand(ctx *commandContext) *cobra.Command {
	var (
		input  string
		audio  string
		output string
		preset string
		crf    int
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Queue a standalone re-encode",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := jobs.New(jobs.TypeEncode, jobs.EncodeParams{
				InputPath:  input,
				AudioPath:  audio,
				OutputPath: output,
				Preset:     preset,
				CRF:        crf,
			})
			if err != nil {
				return err
			}
			return submitJob(ctx, cmd, job)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Input video path")
	cmd.Flags().StringVar(&audio, "audio", "", "Optional audio track to mux in")
	cmd.Flags().StringVar(&output, "output", "", "Output video path")
	cmd.Flags().StringVar(&preset, "preset", "", "x264 preset override")
	cmd.Flags().IntVar(&crf, "crf", 0, "x264 CRF override")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func submitJob(ctx *commandContext, cmd *cobra.Command, job *jobs.Job) error {
	return ctx.withStore(func(store *jobs.Store) error {
		if err := store.Submit(cmd.Context(), job); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (%s)\n", job.ID, job.Type)
		return nil
	})
}
