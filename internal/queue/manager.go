package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vise/internal/config"
	"vise/internal/encoding"
	"vise/internal/history"
	"vise/internal/logging"
	"vise/internal/notifications"
)

// Compressor runs one compression job to completion. *encoding.Engine is the
// production implementation; tests substitute fakes.
type Compressor interface {
	Compress(ctx context.Context, req encoding.Request) (encoding.Result, error)
}

// BatchError is one failed job inside a drain, as surfaced once the queue
// empties. Cancelled jobs never appear here.
type BatchError struct {
	JobID        string
	SourcePath   string
	DisplayTitle string
	Kind         string
	Message      string
}

// DrainSummary describes the most recently finished drain of the queue.
type DrainSummary struct {
	Started   time.Time
	Finished  time.Time
	Processed int
	Errors    []BatchError
}

// Manager owns the job table and its drain loop.
type Manager struct {
	cfg        *config.Config
	compressor Compressor
	notifier   notifications.Service
	hist       *history.Store
	logger     *slog.Logger

	mu           sync.Mutex
	jobs         map[string]*Job
	order        []string
	runQueue     []string
	queued       map[string]struct{}
	active       string
	activeCancel context.CancelFunc

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	wake    chan struct{}

	drainActive    bool
	drainStart     time.Time
	drainProcessed int
	drainErrors    []BatchError
	lastDrain      *DrainSummary
}

// NewManager constructs a queue manager. hist may be nil to skip the
// finished-run ledger.
func NewManager(cfg *config.Config, compressor Compressor, notifier notifications.Service, hist *history.Store, logger *slog.Logger) *Manager {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Manager{
		cfg:        cfg,
		compressor: compressor,
		notifier:   notifier,
		hist:       hist,
		logger:     logging.NewComponentLogger(logger, "queue"),
		jobs:       make(map[string]*Job),
		queued:     make(map[string]struct{}),
		wake:       make(chan struct{}, 1),
	}
}

// wakeLoop nudges the drain goroutine without blocking. The channel holds one
// pending wake; further signals are redundant, not lost.
func (m *Manager) wakeLoop() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) enqueueLocked(id string) bool {
	if _, ok := m.queued[id]; ok {
		return false
	}
	m.queued[id] = struct{}{}
	m.runQueue = append(m.runQueue, id)
	return true
}

func (m *Manager) unqueueLocked(id string) {
	if _, ok := m.queued[id]; !ok {
		return
	}
	delete(m.queued, id)
	filtered := m.runQueue[:0]
	for _, queuedID := range m.runQueue {
		if queuedID != id {
			filtered = append(filtered, queuedID)
		}
	}
	m.runQueue = filtered
}
