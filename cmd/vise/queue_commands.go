package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vise/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the compression queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueDescribeCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if status.QueueStats["total"] == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, buildQueueStatusRows(status.QueueStats), []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(listStatuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"jobs": resp.Jobs})
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Progress", "Size", "Saved", "Created"},
					buildQueueListRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueDescribeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "describe <job>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				job, err := resolveJob(client, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				table := renderTable(
					[]string{"Field", "Value"},
					buildJobDetailRows(job),
					[]columnAlignment{alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job>...",
		Short: "Cancel jobs, returning them to pending",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				for _, ref := range args {
					job, err := resolveJob(client, ref)
					if err != nil {
						fmt.Fprintln(out, err)
						continue
					}
					if _, err := client.QueueCancel(job.ID); err != nil {
						fmt.Fprintf(out, "Job %s not cancelled: %v\n", shortID(job.ID), err)
						continue
					}
					fmt.Fprintf(out, "Job %s cancellation requested\n", shortID(job.ID))
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job]...",
		Short: "Retry failed jobs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					resp, err := client.QueueRetry("")
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Retried %d failed job(s)\n", resp.Updated)
					return nil
				}

				for _, ref := range args {
					job, err := resolveJob(client, ref)
					if err != nil {
						fmt.Fprintln(out, err)
						continue
					}
					if job.Status != "failed" {
						fmt.Fprintf(out, "Job %s is not in a failed state\n", shortID(job.ID))
						continue
					}
					if _, err := client.QueueRetry(job.ID); err != nil {
						fmt.Fprintf(out, "Job %s not retried: %v\n", shortID(job.ID), err)
						continue
					}
					fmt.Fprintf(out, "Job %s reset for retry\n", shortID(job.ID))
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job>...",
		Short: "Remove jobs from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				for _, ref := range args {
					job, err := resolveJob(client, ref)
					if err != nil {
						fmt.Fprintln(out, err)
						continue
					}
					if _, err := client.QueueRemove(job.ID); err != nil {
						fmt.Fprintf(out, "Job %s not removed: %v\n", shortID(job.ID), err)
						continue
					}
					fmt.Fprintf(out, "Job %s removed\n", shortID(job.ID))
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every job that is not compressing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClear()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("empty response from daemon")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queue job(s)\n", resp.Removed)
				return nil
			})
		},
	}
}
