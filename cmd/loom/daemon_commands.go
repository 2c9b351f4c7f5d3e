package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/daemonctl"
	"loom/internal/ipc"
)

const daemonStartTimeout = 10 * time.Second

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newStatusCommand(ctx),
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the loom daemon, launching it if necessary",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonctl.DaemonExecutable()
			if err != nil {
				return err
			}
			opts := daemonctl.LaunchOptions{}
			if ctx.configFlag != nil {
				opts.ConfigPath = strings.TrimSpace(*ctx.configFlag)
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, opts, daemonStartTimeout)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is already running")
			default:
				if result.Launched {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon launched and started")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon started")
				}
			}
			if result.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			}
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running loom daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := daemonctl.Stop(ctx.socketPath())
			if err != nil {
				if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
					return nil
				}
				return err
			}
			if result.StopAcknowledged {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon stopped (pid %d)\n", result.PID)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon did not acknowledge the stop request")
			}
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and in-flight production jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Running:   %s\n", yesNo(status.Running))
				fmt.Fprintf(out, "PID:       %d\n", status.PID)
				fmt.Fprintf(out, "Database:  %s\n", status.DBPath)
				fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)
				if len(status.Inflight) == 0 {
					fmt.Fprintln(out, "In flight: none")
					return nil
				}
				jobs := append([]ipc.InflightJob(nil), status.Inflight...)
				sort.Slice(jobs, func(i, j int) bool { return jobs[i].ChannelID < jobs[j].ChannelID })
				fmt.Fprintln(out, "In flight:")
				for _, job := range jobs {
					fmt.Fprintf(out, "  channel %d: %s\n", job.ChannelID, job.Stage)
				}
				return nil
			})
		},
	}
}
