package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"vise/internal/config"
	"vise/internal/fileutil"
	"vise/internal/logging"
	"vise/internal/queue"
	"vise/internal/services"
)

// Adder is the slice of the queue manager the watcher needs.
type Adder interface {
	Add(ctx context.Context, path string) (queue.Job, error)
}

// Watcher ingests video files from the configured watch directories.
type Watcher struct {
	cfg    *config.Config
	adder  Adder
	logger *slog.Logger
	settle time.Duration

	mu      sync.Mutex
	running bool
	pending map[string]struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New returns a watcher, or nil when no watch directories are configured.
func New(cfg *config.Config, adder Adder, logger *slog.Logger) *Watcher {
	if cfg == nil || adder == nil || len(cfg.Paths.WatchDirs) == 0 {
		return nil
	}
	settle := time.Duration(cfg.Queue.SettleSeconds) * time.Second
	if settle < 0 {
		settle = 0
	}
	return &Watcher{
		cfg:     cfg,
		adder:   adder,
		logger:  logging.NewComponentLogger(logger, "watch"),
		settle:  settle,
		pending: make(map[string]struct{}),
	}
}

// Start begins watching. Directories that cannot be watched are logged and
// skipped; Start fails only when none of them are usable.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("watcher unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	usable := 0
	for _, dir := range w.cfg.Paths.WatchDirs {
		if err := fsw.Add(dir); err != nil {
			logging.WarnWithContext(w.logger, "watch directory unavailable", "watch_dir_failed",
				logging.String("dir", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "create the directory or remove it from paths.watch_dirs"))
			continue
		}
		usable++
		w.logger.Info("watching directory", logging.String("dir", dir))
	}
	if usable == 0 {
		_ = fsw.Close()
		return errors.New("no usable watch directories")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.loop(runCtx, fsw)
	return nil
}

// Stop terminates the watcher and waits for in-flight settle checks.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer func() {
		_ = fsw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.observe(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_error"))
		}
	}
}

// observe claims the path and hands it to a settle goroutine. Repeat events
// for a file that is still settling are absorbed here.
func (w *Watcher) observe(ctx context.Context, path string) {
	if !w.candidate(path) {
		return
	}
	w.mu.Lock()
	if _, busy := w.pending[path]; busy {
		w.mu.Unlock()
		return
	}
	w.pending[path] = struct{}{}
	w.wg.Add(1)
	w.mu.Unlock()

	go w.settleAndAdd(ctx, path)
}

// candidate filters to recognized video extensions, skipping dotfiles and
// names carrying the output suffix.
func (w *Watcher) candidate(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if !fileutil.HasAllowedExtension(path, w.cfg.FFmpeg.Extensions) {
		return false
	}
	if suffix := w.cfg.Compression.OutputSuffix; suffix != "" {
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if strings.HasSuffix(stem, "."+suffix) || strings.Contains(stem, "."+suffix+".") {
			return false
		}
	}
	return true
}

func (w *Watcher) settleAndAdd(ctx context.Context, path string) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
	}()

	logger := w.logger.With(logging.String(logging.FieldFile, filepath.Base(path)))
	if err := w.awaitStable(ctx, path); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Debug("watched file disappeared before settling", logging.Error(err))
		return
	}

	job, err := w.adder.Add(ctx, path)
	switch {
	case err == nil:
		logger.Info("watched file queued", logging.String(logging.FieldJobID, job.ID))
	case errors.Is(err, services.ErrInvalidInput):
		// Already queued, or not actually a usable file. Either way the
		// queue said no for a reason that will not change on retry.
		logger.Debug("watched file skipped", logging.Error(err))
	default:
		logging.WarnWithContext(logger, "watched file could not be queued", "watch_add_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check file permissions, then queue it manually with vise add"))
	}
}

// awaitStable returns once two stats separated by the settle window agree on
// size and mtime, so half-copied files are not handed to the encoder.
func (w *Watcher) awaitStable(ctx context.Context, path string) error {
	for {
		before, err := os.Stat(path)
		if err != nil {
			return err
		}
		if w.settle <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.settle):
		}
		after, err := os.Stat(path)
		if err != nil {
			return err
		}
		if after.Size() == before.Size() && after.ModTime().Equal(before.ModTime()) {
			return nil
		}
	}
}
