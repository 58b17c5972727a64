package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir    string   `toml:"log_dir"`
	StateDir  string   `toml:"state_dir"`
	OutputDir string   `toml:"output_dir"`
	WatchDirs []string `toml:"watch_dirs"`
}

// Compression contains the encoder settings applied to every job.
type Compression struct {
	Codec            string `toml:"codec"`
	Quality          int    `toml:"quality"`
	Preset           string `toml:"preset"`
	HardwareAccel    bool   `toml:"hardware_accel"`
	AudioPassthrough bool   `toml:"audio_passthrough"`
	OutputSuffix     string `toml:"output_suffix"`
	MinFreeSpaceMiB  int64  `toml:"min_free_space_mib"`
}

// FFmpeg contains binary locations and probe limits for the external tools.
type FFmpeg struct {
	Binary                 string   `toml:"binary"`
	FFprobeBinary          string   `toml:"ffprobe_binary"`
	ProbeTimeout           int      `toml:"probe_timeout"`
	AnalyzeDurationSeconds int      `toml:"analyze_duration_seconds"`
	ProbeSizeMiB           int      `toml:"probe_size_mib"`
	Extensions             []string `toml:"extensions"`
}

// Queue contains intake and scheduling behavior.
type Queue struct {
	AutoCompress  bool `toml:"auto_compress"`
	SettleSeconds int  `toml:"settle_seconds"`
}

// History contains configuration for the finished-run ledger.
type History struct {
	Enabled bool `toml:"enabled"`
	MaxRuns int  `toml:"max_runs"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Completed          bool   `toml:"completed"`
	Failed             bool   `toml:"failed"`
	Queue              bool   `toml:"queue"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format          string            `toml:"format"`
	Level           string            `toml:"level"`
	RetentionDays   int               `toml:"retention_days"`
	ComponentLevels map[string]string `toml:"component_levels"`
}

// Config encapsulates all configuration values for vise.
//
// Configuration sections by subsystem:
//   - Paths: log, state, and output directories plus watch folders
//   - Compression: codec, quality, and output naming for every job
//   - FFmpeg: binary discovery overrides and probe limits
//   - Queue: watch-folder intake and scheduling behavior
//   - History: finished-run ledger retention
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, retention, and per-component overrides
type Config struct {
	Paths         Paths         `toml:"paths"`
	Compression   Compression   `toml:"compression"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Queue         Queue         `toml:"queue"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vise/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/vise/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vise.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir and watch folders are created on a best-effort basis so the daemon
// can run when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	for _, dir := range c.Paths.WatchDirs {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable to launch, falling back to PATH lookup.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.FFmpeg.Binary); v != "" {
		return v
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.FFmpeg.FFprobeBinary); v != "" {
		return v
	}
	return "ffprobe"
}

// SocketPath returns the unix socket the daemon listens on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "vise.sock")
}

// PIDPath returns the file holding the running daemon's process ID.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "vise.pid")
}

// LockPath returns the flock target preventing concurrent daemons.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "vised.lock")
}

// HistoryDBPath returns the sqlite database backing the finished-run ledger.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
