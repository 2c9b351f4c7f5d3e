package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
)

func newTickCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler pass immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Tick()
				if err != nil {
					return err
				}
				if resp.Completed {
					fmt.Fprintln(cmd.OutOrStdout(), "Tick completed")
				} else if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Tick did not complete")
				}
				return nil
			})
		},
	}
}
