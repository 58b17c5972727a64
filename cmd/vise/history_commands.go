package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vise/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished compression runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryList(limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"runs": resp.Runs})
				}
				if len(resp.Runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "History is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Outcome", "Saved", "Elapsed", "Finished"},
					buildHistoryRows(resp.Runs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")

	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate history statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryStats()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("empty response from daemon")
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total runs: %d\n", resp.Total)
				fmt.Fprintf(out, "Completed: %d\n", resp.Completed)
				fmt.Fprintf(out, "Failed: %d\n", resp.Failed)
				fmt.Fprintf(out, "Space saved: %s\n", formatBytes(resp.BytesSaved))
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryClear()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("empty response from daemon")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d history entries\n", resp.Removed)
				return nil
			})
		},
	}
}
