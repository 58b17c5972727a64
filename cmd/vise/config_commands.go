package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vise/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigPathCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var flagPath string
			if ctx.configFlag != nil {
				flagPath = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, path, exists, err := config.Load(flagPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file not found; showing defaults")
			}
			table := renderTable([]string{"Setting", "Value"}, buildConfigRows(cfg), []columnAlignment{alignLeft, alignLeft})
			fmt.Fprintln(out, table)
			return nil
		},
	}
}

func buildConfigRows(cfg *config.Config) [][]string {
	orEmpty := func(value, fallback string) string {
		if strings.TrimSpace(value) == "" {
			return fallback
		}
		return value
	}

	watchDirs := "(none)"
	if len(cfg.Paths.WatchDirs) > 0 {
		watchDirs = strings.Join(cfg.Paths.WatchDirs, ", ")
	}

	return [][]string{
		{"paths.log_dir", cfg.Paths.LogDir},
		{"paths.state_dir", cfg.Paths.StateDir},
		{"paths.output_dir", orEmpty(cfg.Paths.OutputDir, "(beside source)")},
		{"paths.watch_dirs", watchDirs},
		{"compression.codec", cfg.Compression.Codec},
		{"compression.quality", strconv.Itoa(cfg.Compression.Quality)},
		{"compression.preset", orEmpty(cfg.Compression.Preset, "(encoder default)")},
		{"compression.hardware_accel", yesNo(cfg.Compression.HardwareAccel)},
		{"compression.audio_passthrough", yesNo(cfg.Compression.AudioPassthrough)},
		{"compression.output_suffix", cfg.Compression.OutputSuffix},
		{"compression.min_free_space_mib", strconv.FormatInt(cfg.Compression.MinFreeSpaceMiB, 10)},
		{"ffmpeg.binary", orEmpty(cfg.FFmpeg.Binary, "(from PATH)")},
		{"ffmpeg.ffprobe_binary", orEmpty(cfg.FFmpeg.FFprobeBinary, "(from PATH)")},
		{"ffmpeg.probe_timeout", strconv.Itoa(cfg.FFmpeg.ProbeTimeout)},
		{"ffmpeg.extensions", strings.Join(cfg.FFmpeg.Extensions, ", ")},
		{"queue.auto_compress", yesNo(cfg.Queue.AutoCompress)},
		{"queue.settle_seconds", strconv.Itoa(cfg.Queue.SettleSeconds)},
		{"history.enabled", yesNo(cfg.History.Enabled)},
		{"history.max_runs", strconv.Itoa(cfg.History.MaxRuns)},
		{"notifications.ntfy_topic", orEmpty(cfg.Notifications.NtfyTopic, "(disabled)")},
		{"logging.format", orEmpty(cfg.Logging.Format, "auto")},
		{"logging.level", cfg.Logging.Level},
		{"logging.retention_days", strconv.Itoa(cfg.Logging.RetentionDays)},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to adjust paths, codec, and quality before starting the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file path",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.configFlag != nil {
				if flagPath := strings.TrimSpace(*ctx.configFlag); flagPath != "" {
					expanded, err := config.ExpandPath(flagPath)
					if err != nil {
						return fmt.Errorf("resolve config path: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), expanded)
					return nil
				}
			}
			defaultPath, err := config.DefaultConfigPath()
			if err != nil {
				return fmt.Errorf("determine default config path: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), defaultPath)
			return nil
		},
	}
}
