package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var channelID int64
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent production runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Runs(channelID, limit)
				if err != nil {
					return err
				}
				if len(resp.Runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}

				headers := []string{"ID", "Channel", "Job", "Outcome", "Stage", "Cost", "Finished", "Error"}
				aligns := []columnAlignment{
					alignRight, alignRight, alignLeft, alignLeft, alignLeft,
					alignRight, alignLeft, alignLeft,
				}

				rows := make([][]string, 0, len(resp.Runs))
				for _, run := range resp.Runs {
					errMsg := run.ErrorMessage
					if errMsg == "" {
						errMsg = "-"
					}
					finished := run.FinishedAt
					rows = append(rows, []string{
						strconv.FormatInt(run.ID, 10),
						strconv.FormatInt(run.ChannelID, 10),
						run.JobID,
						run.Outcome,
						run.Stage,
						formatCents(run.CostCents),
						formatTime(&finished),
						errMsg,
					})
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&channelID, "channel", 0, "Only show runs for this channel id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	return cmd
}
