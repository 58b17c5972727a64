package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"vise/internal/ipc"
)

func newCompressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compress [file]...",
		Short: "Compress queued files, adding any given files first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				path, err := resolveSourceFile(cfg, arg)
				if err != nil {
					return err
				}
				paths = append(paths, path)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				for _, path := range paths {
					resp, err := client.QueueAdd(path)
					if err != nil {
						return fmt.Errorf("queue %s: %w", filepath.Base(path), err)
					}
					if resp == nil {
						return errors.New("empty response from daemon")
					}
					fmt.Fprintf(out, "Queued %q as job %s\n", resp.Job.DisplayTitle, shortID(resp.Job.ID))
				}

				resp, err := client.CompressAll()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("empty response from daemon")
				}
				if resp.Queued == 0 {
					fmt.Fprintln(out, "No pending jobs to compress")
					return nil
				}
				fmt.Fprintf(out, "Compression started for %d job(s)\n", resp.Queued)
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active job and return queued work to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.CancelAll(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cancellation requested; jobs return to pending")
				return nil
			})
		},
	}
}
