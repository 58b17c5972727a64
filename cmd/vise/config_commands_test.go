package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigShowResolvedValues(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	if strings.Contains(out, "showing defaults") {
		t.Fatalf("expected existing config file to be loaded:\n%s", out)
	}
	requireContains(t, out, "compression.codec")
	requireContains(t, out, "hevc")
	requireContains(t, out, "paths.log_dir")
	requireContains(t, out, env.cfg.Paths.LogDir)
	requireContains(t, out, "(disabled)")
}

func TestConfigShowMissingFileShowsDefaults(t *testing.T) {
	env := setupCLITestEnv(t)

	missing := filepath.Join(env.baseDir, "absent.toml")
	out, _, err := runCLI(t, []string{"config", "show"}, env.socketPath, missing)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "Config file not found; showing defaults")
	requireContains(t, out, "ffmpeg.extensions")
	requireContains(t, out, ".mkv")
}

func TestConfigInitCreatesSample(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing-file refusal, got %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	out, _, err = runCLI(t, []string{"config", "show"}, env.socketPath, target)
	if err != nil {
		t.Fatalf("config show on sample: %v", err)
	}
	requireContains(t, out, "hevc")
}

func TestConfigPathPrefersFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "path"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != env.configPath {
		t.Fatalf("expected %q, got %q", env.configPath, strings.TrimSpace(out))
	}

	out, _, err = runCLI(t, []string{"config", "path"}, env.socketPath, "")
	if err != nil {
		t.Fatalf("config path default: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), filepath.Join(".config", "vise", "config.toml")) {
		t.Fatalf("expected default config path, got %q", strings.TrimSpace(out))
	}
}
