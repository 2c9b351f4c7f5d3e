package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List channels with spend and last-run status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Channels()
				if err != nil {
					return err
				}
				if len(resp.Channels) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No channels configured")
					return nil
				}

				headers := []string{"ID", "Username", "Platform", "Status", "Cadence", "Daily", "Limit", "Total", "Last Upload", "Last Run", "Stage"}
				aligns := []columnAlignment{
					alignRight, alignLeft, alignLeft, alignLeft, alignLeft,
					alignRight, alignRight, alignRight, alignLeft, alignLeft, alignLeft,
				}

				rows := make([][]string, 0, len(resp.Channels))
				for _, ch := range resp.Channels {
					lastRun := ch.LastRunOutcome
					if lastRun == "" {
						lastRun = "-"
					}
					stage := ch.CurrentStage
					if stage == "" {
						stage = "-"
					}
					rows = append(rows, []string{
						strconv.FormatInt(ch.ID, 10),
						ch.Username,
						ch.Platform,
						ch.Status,
						formatCadence(ch.VideosPerDay, ch.Frequency),
						formatCents(ch.DailyCostCents),
						formatCents(ch.DailyLimitCents),
						formatCents(ch.TotalCostCents),
						formatTime(ch.LastUploadTime),
						lastRun,
						stage,
					})
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
}
