package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"vise/internal/config"
	"vise/internal/deps"
	"vise/internal/fileutil"
	"vise/internal/history"
	"vise/internal/logging"
	"vise/internal/notifications"
	"vise/internal/queue"
	"vise/internal/services"
	"vise/internal/watch"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *queue.Manager
	hist    *history.Store
	watcher *watch.Watcher
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Queue         queue.Stats
	LastDrain     *queue.DrainSummary
	WatchDirs     []string
	Dependencies  []deps.Status
	HistoryDBPath string
	LockFilePath  string
	SocketPath    string
}

// New constructs a daemon. The history store and watcher may be nil when
// those features are disabled or unconfigured.
func New(cfg *config.Config, manager *queue.Manager, hist *history.Store, watcher *watch.Watcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || manager == nil || logger == nil {
		return nil, errors.New("daemon requires config, queue manager, and logger")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		manager:  manager,
		hist:     hist,
		watcher:  watcher,
		logPath:  filepath.Join(cfg.Paths.LogDir, "vise.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the queue manager and watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vise daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.manager.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start queue: %w", err)
	}
	if d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			logging.WarnWithContext(d.logger, "watch startup failed", "watch_start_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.watch_dirs; files can still be queued with vise add"),
				logging.String(logging.FieldImpact, "watch directories are not being ingested"))
		}
	}

	d.running.Store(true)
	d.logger.Info("vise daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("vise daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.hist != nil {
		return d.hist.Close()
	}
	return nil
}

// AddFile queues one file for compression after checking its extension
// against the configured allow-list.
func (d *Daemon) AddFile(ctx context.Context, sourcePath string) (queue.Job, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return queue.Job{}, services.Wrap(services.ErrInvalidInput, "daemon", "add file", "source path is required", nil)
	}
	if !fileutil.HasAllowedExtension(trimmed, d.cfg.FFmpeg.Extensions) {
		return queue.Job{}, services.Wrap(services.ErrInvalidInput, "daemon", "add file",
			fmt.Sprintf("unsupported file extension %q", filepath.Ext(trimmed)), nil)
	}
	return d.manager.Add(ctx, trimmed)
}

// CompressAll queues every pending job and reports how many were queued.
func (d *Daemon) CompressAll() int {
	return d.manager.EnqueueAll()
}

// CancelAll clears the waiting queue and interrupts the active job.
func (d *Daemon) CancelAll() {
	d.manager.CancelAll()
}

// CancelJob interrupts or unqueues one job.
func (d *Daemon) CancelJob(id string) error {
	return d.manager.Cancel(id)
}

// ListQueue returns job snapshots in insertion order.
func (d *Daemon) ListQueue() []queue.Job {
	return d.manager.List()
}

// DescribeJob returns a snapshot of one job.
func (d *Daemon) DescribeJob(id string) (queue.Job, error) {
	return d.manager.Describe(id)
}

// RetryJob re-queues one failed job.
func (d *Daemon) RetryJob(id string) (queue.Job, error) {
	return d.manager.Retry(id)
}

// RetryAllFailed re-queues every failed job.
func (d *Daemon) RetryAllFailed() int {
	return d.manager.RetryAllFailed()
}

// RemoveJob deletes one job from the queue table.
func (d *Daemon) RemoveJob(id string) error {
	return d.manager.Remove(id)
}

// ClearQueue removes finished jobs and reports how many were dropped.
func (d *Daemon) ClearQueue() int {
	return d.manager.Clear()
}

// QueueStats counts jobs per status.
func (d *Daemon) QueueStats() queue.Stats {
	return d.manager.Stats()
}

// History lists finished runs, newest first. Fails when history is disabled.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Run, error) {
	if d.hist == nil {
		return nil, errors.New("history is disabled")
	}
	return d.hist.List(ctx, limit)
}

// HistoryStats aggregates the finished-run ledger.
func (d *Daemon) HistoryStats(ctx context.Context) (history.Stats, error) {
	if d.hist == nil {
		return history.Stats{}, errors.New("history is disabled")
	}
	return d.hist.Stats(ctx)
}

// ClearHistory empties the finished-run ledger.
func (d *Daemon) ClearHistory(ctx context.Context) (int64, error) {
	if d.hist == nil {
		return 0, errors.New("history is disabled")
	}
	return d.hist.Clear(ctx)
}

// TestNotification sends a test push using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the stable pointer to the current daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Queue:        d.manager.Stats(),
		Dependencies: deps.Snapshot(d.cfg),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
	}
	if drain, ok := d.manager.LastDrain(); ok {
		status.LastDrain = &drain
	}
	if d.watcher != nil {
		status.WatchDirs = append(status.WatchDirs, d.cfg.Paths.WatchDirs...)
	}
	if d.hist != nil {
		status.HistoryDBPath = d.hist.Path()
	}
	return status
}
