package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"vise/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "vise", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "vise") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.OutputDir != "" {
		t.Fatalf("expected empty output dir by default, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Compression.Codec != "hevc" {
		t.Fatalf("unexpected default codec: %q", cfg.Compression.Codec)
	}
	if cfg.Compression.Quality != 23 {
		t.Fatalf("unexpected default quality: %d", cfg.Compression.Quality)
	}
	if !cfg.Compression.AudioPassthrough {
		t.Fatal("expected audio passthrough enabled by default")
	}
	if cfg.Compression.HardwareAccel {
		t.Fatal("expected hardware acceleration disabled by default")
	}
	if !cfg.Queue.AutoCompress {
		t.Fatal("expected auto compress enabled by default")
	}
	if len(cfg.FFmpeg.Extensions) == 0 || cfg.FFmpeg.Extensions[0] != ".mp4" {
		t.Fatalf("unexpected default extensions: %v", cfg.FFmpeg.Extensions)
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Fatalf("expected empty ntfy topic by default, got %q", cfg.Notifications.NtfyTopic)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "vise.toml")

	type payload struct {
		Compression struct {
			Codec   string `toml:"codec"`
			Quality int    `toml:"quality"`
		} `toml:"compression"`
		Queue struct {
			SettleSeconds int `toml:"settle_seconds"`
		} `toml:"queue"`
		FFmpeg struct {
			Extensions []string `toml:"extensions"`
		} `toml:"ffmpeg"`
	}
	custom := payload{}
	custom.Compression.Codec = "H264"
	custom.Compression.Quality = 28
	custom.Queue.SettleSeconds = 10
	custom.FFmpeg.Extensions = []string{"MKV", ".mp4", "mkv"}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Compression.Codec != "h264" {
		t.Fatalf("expected codec lowercased, got %q", cfg.Compression.Codec)
	}
	if cfg.Compression.Quality != 28 {
		t.Fatalf("expected quality 28, got %d", cfg.Compression.Quality)
	}
	if cfg.Queue.SettleSeconds != 10 {
		t.Fatalf("expected settle 10, got %d", cfg.Queue.SettleSeconds)
	}
	want := []string{".mkv", ".mp4"}
	if len(cfg.FFmpeg.Extensions) != len(want) {
		t.Fatalf("expected deduped extensions %v, got %v", want, cfg.FFmpeg.Extensions)
	}
	for i, ext := range want {
		if cfg.FFmpeg.Extensions[i] != ext {
			t.Fatalf("expected extension %q at %d, got %v", ext, i, cfg.FFmpeg.Extensions)
		}
	}
}

func TestLoadMissingCustomPathUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists to be false for missing file")
	}
	if resolved != missing {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Compression.Codec != "hevc" {
		t.Fatalf("expected defaults, got codec %q", cfg.Compression.Codec)
	}
}

func TestWatchDirsDeduplicated(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "vise.toml")
	inbox := filepath.Join(tempDir, "inbox")

	content := "[paths]\nwatch_dirs = [" +
		"\"" + inbox + "\", \"" + inbox + "\", \"  \"]\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Paths.WatchDirs) != 1 {
		t.Fatalf("expected 1 watch dir, got %v", cfg.Paths.WatchDirs)
	}
	if cfg.Paths.WatchDirs[0] != inbox {
		t.Fatalf("unexpected watch dir: %q", cfg.Paths.WatchDirs[0])
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[compression]") {
		t.Fatalf("sample config missing compression section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Compression.Codec != "hevc" {
		t.Fatalf("sample should carry default codec, got %q", cfg.Compression.Codec)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Compression.Codec = "av1"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported codec")
	}

	cfg = config.Default()
	cfg.Compression.Quality = 52
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range quality")
	}

	cfg = config.Default()
	cfg.FFmpeg.ProbeTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive probe timeout")
	}

	cfg = config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}

	cfg = config.Default()
	cfg.Notifications.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive notification timeout")
	}

	cfg = config.Default()
	cfg.Logging.ComponentLevels = map[string]string{"encoding": "loud"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid component level")
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = "/var/log/vise"
	cfg.Paths.StateDir = "/var/lib/vise"

	if got := cfg.SocketPath(); got != "/var/log/vise/vise.sock" {
		t.Fatalf("SocketPath = %q", got)
	}
	if got := cfg.PIDPath(); got != "/var/log/vise/vise.pid" {
		t.Fatalf("PIDPath = %q", got)
	}
	if got := cfg.LockPath(); got != "/var/log/vise/vised.lock" {
		t.Fatalf("LockPath = %q", got)
	}
	if got := cfg.HistoryDBPath(); got != "/var/lib/vise/history.db" {
		t.Fatalf("HistoryDBPath = %q", got)
	}
}

func TestBinaryAccessorsDefaultToPathLookup(t *testing.T) {
	cfg := config.Default()
	if got := cfg.FFmpegBinary(); got != "ffmpeg" {
		t.Fatalf("FFmpegBinary = %q, want ffmpeg", got)
	}
	if got := cfg.FFprobeBinary(); got != "ffprobe" {
		t.Fatalf("FFprobeBinary = %q, want ffprobe", got)
	}

	cfg.FFmpeg.Binary = "/opt/ffmpeg/bin/ffmpeg"
	cfg.FFmpeg.FFprobeBinary = "/opt/ffmpeg/bin/ffprobe"
	if got := cfg.FFmpegBinary(); got != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("FFmpegBinary override = %q", got)
	}
	if got := cfg.FFprobeBinary(); got != "/opt/ffmpeg/bin/ffprobe" {
		t.Fatalf("FFprobeBinary override = %q", got)
	}
}
