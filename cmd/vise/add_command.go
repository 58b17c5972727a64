package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vise/internal/config"
	"vise/internal/fileutil"
	"vise/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Queue video files for compression",
		Args:  cobra.MinimumNArgs(1),
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
				return nil
			})
		},
	}
}

// resolveSourceFile normalizes a CLI path argument and rejects inputs the
// daemon would refuse anyway, so mistakes surface before dialing the socket.
func resolveSourceFile(cfg *config.Config, arg string) (string, error) {
	absPath, err := resolveExistingFile(arg)
	if err != nil {
		return "", err
	}
	if cfg != nil && !fileutil.HasAllowedExtension(absPath, cfg.FFmpeg.Extensions) {
		ext := strings.ToLower(filepath.Ext(absPath))
		return "", fmt.Errorf("unsupported file extension %q (accepted: %s)", ext, strings.Join(cfg.FFmpeg.Extensions, ", "))
	}
	return absPath, nil
}

func resolveExistingFile(arg string) (string, error) {
	expanded, err := config.ExpandPath(arg)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file does not exist: %s", absPath)
		}
		return "", fmt.Errorf("inspect file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", absPath)
	}
	return absPath, nil
}
