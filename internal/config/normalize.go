package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCompression()
	c.normalizeFFmpeg()
	c.normalizeQueue()
	c.normalizeHistory()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
			return fmt.Errorf("paths.output_dir: %w", err)
		}
	} else {
		c.Paths.OutputDir = ""
	}

	dirs := make([]string, 0, len(c.Paths.WatchDirs))
	seen := make(map[string]struct{}, len(c.Paths.WatchDirs))
	for _, dir := range c.Paths.WatchDirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("paths.watch_dirs: %w", err)
		}
		if _, exists := seen[expanded]; exists {
			continue
		}
		seen[expanded] = struct{}{}
		dirs = append(dirs, expanded)
	}
	c.Paths.WatchDirs = dirs
	return nil
}

func (c *Config) normalizeCompression() {
	c.Compression.Codec = strings.ToLower(strings.TrimSpace(c.Compression.Codec))
	if c.Compression.Codec == "" {
		c.Compression.Codec = defaultCodec
	}
	c.Compression.Preset = strings.ToLower(strings.TrimSpace(c.Compression.Preset))
	if c.Compression.Preset == "" {
		c.Compression.Preset = defaultPreset
	}
	c.Compression.OutputSuffix = strings.Trim(strings.TrimSpace(c.Compression.OutputSuffix), ".")
	if c.Compression.OutputSuffix == "" {
		c.Compression.OutputSuffix = defaultOutputSuffix
	}
	if c.Compression.MinFreeSpaceMiB < 0 {
		c.Compression.MinFreeSpaceMiB = 0
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.ProbeTimeout <= 0 {
		c.FFmpeg.ProbeTimeout = defaultProbeTimeout
	}
	if c.FFmpeg.AnalyzeDurationSeconds <= 0 {
		c.FFmpeg.AnalyzeDurationSeconds = defaultAnalyzeDuration
	}
	if c.FFmpeg.ProbeSizeMiB <= 0 {
		c.FFmpeg.ProbeSizeMiB = defaultProbeSizeMiB
	}

	if len(c.FFmpeg.Extensions) == 0 {
		c.FFmpeg.Extensions = defaultExtensions()
		return
	}
	exts := make([]string, 0, len(c.FFmpeg.Extensions))
	seen := make(map[string]struct{}, len(c.FFmpeg.Extensions))
	for _, ext := range c.FFmpeg.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if normalized == "." || strings.Contains(normalized[1:], ".") {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = defaultExtensions()
	}
	c.FFmpeg.Extensions = exts
}

func (c *Config) normalizeQueue() {
	if c.Queue.SettleSeconds < 0 {
		c.Queue.SettleSeconds = 0
	}
}

func (c *Config) normalizeHistory() {
	if c.History.MaxRuns <= 0 {
		c.History.MaxRuns = defaultHistoryMaxRuns
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.DedupWindowSeconds < 0 {
		c.Notifications.DedupWindowSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.ComponentLevels) > 0 {
		levels := make(map[string]string, len(c.Logging.ComponentLevels))
		for component, level := range c.Logging.ComponentLevels {
			component = strings.ToLower(strings.TrimSpace(component))
			level = strings.ToLower(strings.TrimSpace(level))
			if component == "" || level == "" {
				continue
			}
			levels[component] = level
		}
		c.Logging.ComponentLevels = levels
	}
}
