package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vise/internal/logging"
	"vise/internal/media/probe"
)

type probeView struct {
	Path            string  `json:"path"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FrameRate       float64 `json:"frame_rate"`
	BitRate         int64   `json:"bit_rate"`
	VideoCodec      string  `json:"video_codec"`
	AudioCodec      string  `json:"audio_codec,omitempty"`
	HasAudio        bool    `json:"has_audio"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect a video file with ffprobe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := resolveExistingFile(args[0])
			if err != nil {
				return err
			}

			prober := probe.New(cfg, logging.NewNop())
			info, err := prober.Probe(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("probe %s: %w", path, err)
			}

			if asJSON {
				return writeJSON(cmd, probeView{
					Path:            info.Path,
					SizeBytes:       info.SizeBytes,
					DurationSeconds: info.DurationSeconds(),
					Width:           info.Width,
					Height:          info.Height,
					FrameRate:       info.FrameRate,
					BitRate:         info.BitRate,
					VideoCodec:      info.VideoCodec,
					AudioCodec:      info.AudioCodec,
					HasAudio:        info.HasAudio,
				})
			}

			audio := "none"
			if info.HasAudio {
				audio = info.AudioCodec
				if audio == "" {
					audio = "unknown"
				}
			}
			video := info.VideoCodec
			if video == "" {
				video = "unknown"
			}

			rows := [][]string{
				{"Source", info.Path},
				{"Size", formatBytes(info.SizeBytes)},
				{"Duration", formatProbeDuration(info.Duration)},
				{"Resolution", info.Resolution()},
				{"Frame rate", formatFrameRate(info.FrameRate)},
				{"Video codec", video},
				{"Audio codec", audio},
				{"Bit rate", formatBitRate(info.BitRate)},
			}
			table := renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func formatProbeDuration(d time.Duration) string {
	if d <= 0 {
		return "unknown"
	}
	return d.Round(time.Second).String()
}

func formatFrameRate(rate float64) string {
	if rate <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.2f fps", rate)
}

func formatBitRate(rate int64) string {
	if rate <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d kb/s", rate/1000)
}
