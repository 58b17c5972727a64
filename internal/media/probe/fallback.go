package probe

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vise/internal/services"
)

// Patterns matched against ffmpeg's human-readable input dump, e.g.
//
//	Duration: 01:29:56.12, start: 0.000000, bitrate: 3266 kb/s
//	Stream #0:0: Video: h264 (High), yuv420p, 1920x1080 [SAR 1:1], 23.98 fps, ...
//	Stream #0:1: Audio: aac (LC), 48000 Hz, 5.1, fltp
var (
	durationPattern   = regexp.MustCompile(`Duration: (\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
	resolutionPattern = regexp.MustCompile(`Video:.*?(\d{2,5})x(\d{2,5})`)
	frameRatePattern  = regexp.MustCompile(`(\d+(?:\.\d+)?) fps`)
	videoCodecPattern = regexp.MustCompile(`Video: (\w+)`)
	audioCodecPattern = regexp.MustCompile(`Audio: (\w+)`)
)

// fallbackProbe extracts metadata from the encoder's own diagnostics when
// ffprobe is missing. The encoder analyzes the input and discards all
// output; its stderr dump carries the fields we need. Less precise than
// the structured path: bitrate is not reliably reported.
func (p *Prober) fallbackProbe(ctx context.Context, path string) (VideoInfo, error) {
	args := []string{"-hide_banner", "-i", path, "-t", "0", "-f", "null", "-"}
	cmd := exec.CommandContext(ctx, p.cfg.FFmpegBinary(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	// The encoder exits non-zero for unreadable inputs but still dumps
	// whatever it could parse, so the exit status alone decides nothing.
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return VideoInfo{}, services.Wrap(services.ErrInvalidInput, "probe", "fallback inspect",
			"analysis timed out", ctx.Err())
	}

	info, err := parseDiagnostics(stderr.String())
	if err != nil {
		if runErr != nil {
			return VideoInfo{}, services.Wrap(services.ErrInvalidInput, "probe", "fallback inspect",
				firstLine(stderr.String()), runErr)
		}
		return VideoInfo{}, err
	}
	return info, nil
}

// parseDiagnostics builds a VideoInfo from ffmpeg's input dump.
func parseDiagnostics(text string) (VideoInfo, error) {
	if !strings.Contains(text, "Video:") {
		return VideoInfo{}, services.Wrap(services.ErrInvalidInput, "probe", "fallback inspect",
			"no video stream found", nil)
	}

	info := VideoInfo{FrameRate: defaultFrameRate}

	if m := durationPattern.FindStringSubmatch(text); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])
		centis, _ := strconv.Atoi(m[4])
		info.Duration = time.Duration(hours)*time.Hour +
			time.Duration(minutes)*time.Minute +
			time.Duration(seconds)*time.Second +
			time.Duration(centis)*10*time.Millisecond
	}
	if m := resolutionPattern.FindStringSubmatch(text); m != nil {
		info.Width, _ = strconv.Atoi(m[1])
		info.Height, _ = strconv.Atoi(m[2])
	}
	if m := frameRatePattern.FindStringSubmatch(text); m != nil {
		if fps, err := strconv.ParseFloat(m[1], 64); err == nil && fps > 0 {
			info.FrameRate = fps
		}
	}
	if m := videoCodecPattern.FindStringSubmatch(text); m != nil {
		info.VideoCodec = m[1]
	}
	if m := audioCodecPattern.FindStringSubmatch(text); m != nil {
		info.HasAudio = true
		info.AudioCodec = m[1]
	}
	return info, nil
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return text
}
