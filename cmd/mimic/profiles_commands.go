package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mimic/internal/profiles"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage voice profiles",
	}

	profilesCmd.AddCommand(newProfilesCreateCommand(ctx))
	profilesCmd.AddCommand(newProfilesListCommand(ctx))
	profilesCmd.AddCommand(newProfilesShowCommand(ctx))
	profilesCmd.AddCommand(newProfilesDeleteCommand(ctx))

	return profilesCmd
}

func newProfilesCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		name      string
		language  string
		reference string
		embedding string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a voice profile from reference audio",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.profileStore()
			if err != nil {
				return err
			}
			profile, err := store.Create(profiles.CreateRequest{
				Name:           name,
				Language:       language,
				ReferenceAudio: reference,
				EmbeddingPath:  embedding,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s, %s)\n", profile.ID, profile.Name, profile.Language)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Profile display name")
	cmd.Flags().StringVar(&language, "language", "en", "BCP 47 language tag")
	cmd.Flags().StringVar(&reference, "reference", "", "Reference audio file")
	cmd.Flags().StringVar(&embedding, "embedding", "", "Optional precomputed speaker embedding")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("reference")

	return cmd
}

func newProfilesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List voice profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.profileStore()
			if err != nil {
				return err
			}
			list, err := store.List()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No voice profiles yet")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, profile := range list {
				rows = append(rows, []string{
					profile.ID,
					profile.Name,
					profile.Language,
					yesNo(profile.EmbeddingPath != ""),
					profile.CreatedAt.Local().Format(time.DateTime),
				})
			}
			table := renderTable(
				[]string{"ID", "Name", "Language", "Embedding", "Created"},
				rows,
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newProfilesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <profile-id>",
		Short: "Show one profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.profileStore()
			if err != nil {
				return err
			}
			profile, err := store.Load(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), profile)
		},
	}
}

func newProfilesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <profile-id>",
		Short: "Delete a voice profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.profileStore()
			if err != nil {
				return err
			}
			removed, err := store.Delete(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("profile %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
