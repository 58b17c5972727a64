package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"vise/internal/config"
	"vise/internal/services"
)

const versionCheckTimeout = 5 * time.Second

// Tools holds resolved encoder binary locations after a successful discovery.
type Tools struct {
	FFmpeg  string
	FFprobe string
	Version string
}

// Discover resolves the ffmpeg and ffprobe binaries from configuration (or
// PATH) and verifies the encoder actually answers -version. Every failure is
// tagged services.ErrEncoderNotFound so callers fail jobs with a consistent
// classification instead of discovering the problem mid-run.
func Discover(ctx context.Context, cfg *config.Config) (Tools, error) {
	ffmpegPath, err := exec.LookPath(cfg.FFmpegBinary())
	if err != nil {
		return Tools{}, services.Wrap(services.ErrEncoderNotFound, "deps", "locate ffmpeg",
			"install ffmpeg or set ffmpeg.binary", err)
	}
	ffprobePath, err := exec.LookPath(cfg.FFprobeBinary())
	if err != nil {
		return Tools{}, services.Wrap(services.ErrEncoderNotFound, "deps", "locate ffprobe",
			"install ffmpeg or set ffmpeg.ffprobe_binary", err)
	}
	version, err := queryVersion(ctx, ffmpegPath)
	if err != nil {
		return Tools{}, services.Wrap(services.ErrEncoderNotFound, "deps", "verify ffmpeg",
			"binary did not answer -version", err)
	}
	return Tools{FFmpeg: ffmpegPath, FFprobe: ffprobePath, Version: version}, nil
}

// Snapshot reports the availability of the configured external tools for
// status output without running them.
func Snapshot(cfg *config.Config) []Status {
	return CheckBinaries([]Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Video encoder"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Media inspector"},
	})
}

func queryVersion(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionCheckTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", err
	}
	return parseVersionLine(string(output)), nil
}

// parseVersionLine extracts the release token from ffmpeg's banner, e.g.
// "ffmpeg version 7.0.2 Copyright ..." yields "7.0.2".
func parseVersionLine(output string) string {
	line := output
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(line)
}
