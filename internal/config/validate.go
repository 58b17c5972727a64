package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCompression(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCompression() error {
	switch c.Compression.Codec {
	case "h264", "hevc":
	default:
		return fmt.Errorf("compression.codec must be h264 or hevc, got %q", c.Compression.Codec)
	}
	if c.Compression.Quality < 0 || c.Compression.Quality > 51 {
		return fmt.Errorf("compression.quality must be between 0 and 51, got %d", c.Compression.Quality)
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if err := ensurePositiveMap(map[string]int{
		"ffmpeg.probe_timeout":            c.FFmpeg.ProbeTimeout,
		"ffmpeg.analyze_duration_seconds": c.FFmpeg.AnalyzeDurationSeconds,
		"ffmpeg.probe_size_mib":           c.FFmpeg.ProbeSizeMiB,
	}); err != nil {
		return err
	}
	if len(c.FFmpeg.Extensions) == 0 {
		return errors.New("ffmpeg.extensions must include at least one extension")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.SettleSeconds < 0 {
		return errors.New("queue.settle_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	for component, level := range c.Logging.ComponentLevels {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.component_levels[%s] must be debug, info, warn, or error, got %q", component, level)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	if strings.TrimSpace(c.Notifications.NtfyTopic) != "" && strings.ContainsAny(c.Notifications.NtfyTopic, " \t") {
		return errors.New("notifications.ntfy_topic must not contain whitespace")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
