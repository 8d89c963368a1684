package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mimic/internal/vram"
)

func newVRAMCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "vram",
		Short: "Show accelerator memory state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manager, err := ctx.vramManager(cmd.Context())
			if err != nil {
				return err
			}

			status := manager.Status(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, status.String())
			if !status.Available {
				return nil
			}

			tier := vram.TierFor(status, cfg.VRAM.HighTierMB, cfg.VRAM.LowTierMB)
			rows := [][]string{
				{"Device", fmt.Sprintf("%d", manager.DeviceID())},
				{"Total", fmt.Sprintf("%dMB", status.TotalMB)},
				{"Used", fmt.Sprintf("%dMB", status.UsedMB)},
				{"Free", fmt.Sprintf("%dMB", status.FreeMB)},
				{"Safety margin", fmt.Sprintf("%dMB", manager.DefaultMarginMB())},
				{"Quality tier", string(tier)},
				{"TTS admission", yesNo(manager.CanLoad(cmd.Context(), cfg.TTS.PeakMemoryMB))},
				{"Lip-sync admission", yesNo(manager.CanLoad(cmd.Context(), cfg.LipSync.PeakMemoryMB))},
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, 1))
			return nil
		},
	}
}
