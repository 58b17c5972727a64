package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vise/internal/config"
	"vise/internal/daemon"
	"vise/internal/encoding"
	"vise/internal/ipc"
	"vise/internal/logging"
	"vise/internal/queue"
	"vise/internal/testsupport"
)

// scriptedCompressor finishes instantly, failing any input whose name
// contains "fail" so tests can drive both batch outcomes.
type scriptedCompressor struct{}

func (scriptedCompressor) Compress(_ context.Context, req encoding.Request) (encoding.Result, error) {
	if strings.Contains(filepath.Base(req.InputPath), "fail") {
		return encoding.Result{}, fmt.Errorf("scripted failure for %s", filepath.Base(req.InputPath))
	}
	return encoding.Result{
		InputPath:        req.InputPath,
		OutputPath:       req.InputPath + ".compressed.mkv",
		InputBytes:       4096,
		OutputBytes:      1024,
		ReductionPercent: 75,
	}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	baseDir    string
	logPath    string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Queue.AutoCompress = false

	hist := testsupport.MustOpenHistory(t, cfg)
	logger := logging.NewNop()
	mgr := queue.NewManager(cfg, scriptedCompressor{}, nil, hist, logger)

	d, err := daemon.New(cfg, mgr, hist, nil, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	logPath := d.LogPath()
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatalf("create log file: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg, "")

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		baseDir:    base,
		logPath:    logPath,
		cancel:     cancel,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, ffprobeBinary string) {
	t.Helper()
	var sb strings.Builder
	fmt.Fprintf(&sb, "[paths]\nlog_dir = %q\nstate_dir = %q\n", cfg.Paths.LogDir, cfg.Paths.StateDir)
	fmt.Fprintf(&sb, "\n[queue]\nsettle_seconds = 0\n")
	if ffprobeBinary != "" {
		fmt.Fprintf(&sb, "\n[ffmpeg]\nffprobe_binary = %q\n", ffprobeBinary)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func seedSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Repeat([]byte("v"), 4096), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return path
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func (env *cliTestEnv) waitForStatusCounts(t *testing.T, want map[queue.Status]int) {
	t.Helper()
	waitFor(t, 5*time.Second, func() bool {
		counts := make(map[queue.Status]int)
		for _, job := range env.daemon.ListQueue() {
			counts[job.Status]++
		}
		for status, count := range want {
			if counts[status] != count {
				return false
			}
		}
		return true
	})
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
