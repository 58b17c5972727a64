// Package daemonrun assembles and runs the daemon process: logging, pid file,
// queue manager, watcher, and the IPC server, torn down in order on SIGINT or
// SIGTERM.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vise/internal/config"
	"vise/internal/daemon"
	"vise/internal/deps"
	"vise/internal/encoding"
	"vise/internal/history"
	"vise/internal/ipc"
	"vise/internal/logging"
	"vise/internal/media/probe"
	"vise/internal/notifications"
	"vise/internal/queue"
	"vise/internal/watch"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	SocketPath  string
	Development bool
}

// Run starts the vise daemon runtime loop and blocks until shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("vise-%s.log", runID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            logging.LevelName(logging.MostVerboseLevel(level, cfg.Logging.ComponentLevels)),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logging.WithComponentLevels(logger, cfg.Logging.ComponentLevels, level)

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update vise.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "vise-*.log", Exclude: []string{logPath}},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var hist *history.Store
	if cfg.History.Enabled {
		opened, histErr := history.Open(cfg)
		if histErr != nil {
			logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
				logging.Error(histErr),
				logging.String(logging.FieldErrorHint, "check state_dir permissions or disable history in config"),
				logging.String(logging.FieldImpact, "finished runs will not be recorded"))
		} else {
			hist = opened
			defer hist.Close()
		}
	}

	notifier := notifications.NewService(cfg)
	prober := probe.New(cfg, logger)
	engine := encoding.New(cfg, prober, logger)
	manager := queue.NewManager(cfg, engine, notifier, hist, logger)
	watcher := watch.New(cfg, manager, logger)

	d, err := daemon.New(cfg, manager, hist, watcher, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running daemon and directory permissions"),
			logging.String(logging.FieldImpact, "queued files will not be compressed"),
		)
	}

	<-signalCtx.Done()
	logger.Info("vise daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "vise.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Int("watch_dirs", len(cfg.Paths.WatchDirs)),
	}
	for _, status := range deps.Snapshot(cfg) {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
