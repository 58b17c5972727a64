package queue

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"vise/internal/encoding"
	"vise/internal/fileutil"
	"vise/internal/logging"
	"vise/internal/services"
	"vise/internal/textutil"
)

// Stats summarizes the job table for status displays.
type Stats struct {
	Total       int
	Pending     int
	Compressing int
	Completed   int
	Failed      int
	Queued      int
	ActiveJobID string
	Running     bool
}

// Add registers a new job for the given file using the configured settings.
func (m *Manager) Add(ctx context.Context, path string) (Job, error) {
	return m.AddWithSettings(ctx, path, encoding.SettingsFromConfig(m.cfg))
}

// AddWithSettings registers a new job with an explicit settings snapshot.
// The job is queued for compression immediately when auto-compress is on;
// otherwise it waits for EnqueueAll.
func (m *Manager) AddWithSettings(ctx context.Context, path string, settings encoding.Settings) (Job, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Job{}, services.Wrap(services.ErrInvalidInput, "queue", "add", fmt.Sprintf("resolve %s", path), err)
	}
	info, err := fileutil.CheckSource(abs)
	if err != nil {
		return Job{}, err
	}

	m.mu.Lock()
	for _, existingID := range m.order {
		existing := m.jobs[existingID]
		if existing != nil && existing.SourcePath == abs && !existing.IsTerminal() {
			m.mu.Unlock()
			return Job{}, services.Wrap(services.ErrInvalidInput, "queue", "add",
				fmt.Sprintf("%s is already queued as job %s", abs, existingID), nil)
		}
	}

	job := &Job{
		ID:            uuid.NewString(),
		SourcePath:    abs,
		DisplayTitle:  textutil.DisplayTitle(abs),
		Status:        StatusPending,
		Settings:      settings,
		OriginalBytes: info.Size(),
	}
	job.Touch()
	job.CreatedAt = job.UpdatedAt
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)

	auto := m.cfg.Queue.AutoCompress
	if auto {
		m.enqueueLocked(job.ID)
	}
	snapshot := *job
	m.mu.Unlock()

	if auto {
		m.wakeLoop()
	}
	m.logger.Info("job added",
		logging.String(logging.FieldJobID, snapshot.ID),
		logging.String(logging.FieldFile, filepath.Base(abs)),
		logging.Int64("input_bytes", snapshot.OriginalBytes),
		logging.Bool("auto_compress", auto))
	if err := m.notifier.NotifyJobQueued(ctx, snapshot.DisplayTitle); err != nil {
		m.logger.Debug("queued notification failed", logging.Error(err))
	}
	return snapshot, nil
}

// EnqueueAll queues every Pending job that is not already waiting and starts
// processing if the loop is idle. Returns the number of jobs queued.
func (m *Manager) EnqueueAll() int {
	m.mu.Lock()
	count := 0
	for _, id := range m.order {
		job := m.jobs[id]
		if job == nil || job.Status != StatusPending {
			continue
		}
		if m.enqueueLocked(id) {
			count++
		}
	}
	m.mu.Unlock()

	if count > 0 {
		m.wakeLoop()
		m.logger.Info("queued pending jobs", logging.Int("jobs", count))
	}
	return count
}

// List returns job snapshots in insertion order.
func (m *Manager) List() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, 0, len(m.order))
	for _, id := range m.order {
		if job := m.jobs[id]; job != nil {
			out = append(out, *job)
		}
	}
	return out
}

// Describe returns a snapshot of one job.
func (m *Manager) Describe(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, services.Wrap(services.ErrNotFound, "queue", "describe", fmt.Sprintf("no job with id %s", id), nil)
	}
	return *job, nil
}

// Cancel stops one job: a Compressing job is signalled through its context, a
// Pending job is pulled off the run queue, and a terminal job is left alone.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "queue", "cancel", fmt.Sprintf("no job with id %s", id), nil)
	}
	var cancel context.CancelFunc
	switch job.Status {
	case StatusCompressing:
		if m.active == id {
			cancel = m.activeCancel
		}
	case StatusPending:
		m.unqueueLocked(id)
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.logger.Info("job cancel requested", logging.String(logging.FieldJobID, id))
	return nil
}

// CancelAll clears the run queue and signals the active job. Safe to call
// any number of times from any number of goroutines; repeat signalling is
// absorbed by the per-job context and the process supervisor beneath it.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	cleared := len(m.runQueue)
	m.runQueue = nil
	clear(m.queued)
	cancel := m.activeCancel
	active := m.active
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	attrs := []logging.Attr{logging.Int("cleared", cleared)}
	if active != "" {
		attrs = append(attrs, logging.String(logging.FieldJobID, active))
	}
	m.logger.Info("cancel all requested", logging.Args(attrs...)...)
}

// Retry returns a Failed job to Pending and queues it again.
func (m *Manager) Retry(id string) (Job, error) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return Job{}, services.Wrap(services.ErrNotFound, "queue", "retry", fmt.Sprintf("no job with id %s", id), nil)
	}
	if job.Status != StatusFailed {
		status := job.Status
		m.mu.Unlock()
		return Job{}, services.Wrap(services.ErrInvalidInput, "queue", "retry",
			fmt.Sprintf("job %s is %s, only failed jobs can be retried", id, status), nil)
	}
	job.ResetForRetry()
	m.enqueueLocked(id)
	snapshot := *job
	m.mu.Unlock()

	m.wakeLoop()
	m.logger.Info("job retry queued", logging.String(logging.FieldJobID, id))
	return snapshot, nil
}

// RetryAllFailed re-queues every Failed job and reports how many.
func (m *Manager) RetryAllFailed() int {
	m.mu.Lock()
	count := 0
	for _, id := range m.order {
		job := m.jobs[id]
		if job == nil || job.Status != StatusFailed {
			continue
		}
		job.ResetForRetry()
		m.enqueueLocked(id)
		count++
	}
	m.mu.Unlock()

	if count > 0 {
		m.wakeLoop()
		m.logger.Info("failed jobs retried", logging.Int("jobs", count))
	}
	return count
}

// Remove deletes a job from the table. The active job cannot be removed;
// cancel it first.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "queue", "remove", fmt.Sprintf("no job with id %s", id), nil)
	}
	if job.Status == StatusCompressing {
		m.mu.Unlock()
		return services.Wrap(services.ErrInvalidInput, "queue", "remove",
			fmt.Sprintf("job %s is compressing, cancel it first", id), nil)
	}
	delete(m.jobs, id)
	m.unqueueLocked(id)
	for i, orderedID := range m.order {
		if orderedID == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.logger.Info("job removed", logging.String(logging.FieldJobID, id))
	return nil
}

// Clear removes every terminal job and reports how many were dropped.
func (m *Manager) Clear() int {
	m.mu.Lock()
	kept := m.order[:0]
	count := 0
	for _, id := range m.order {
		job := m.jobs[id]
		if job != nil && job.IsTerminal() {
			delete(m.jobs, id)
			count++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	m.mu.Unlock()

	if count > 0 {
		m.logger.Info("terminal jobs cleared", logging.Int("jobs", count))
	}
	return count
}

// Stats counts jobs per status.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := Stats{
		Total:       len(m.jobs),
		Queued:      len(m.runQueue),
		ActiveJobID: m.active,
		Running:     m.running,
	}
	for _, job := range m.jobs {
		switch job.Status {
		case StatusPending:
			stats.Pending++
		case StatusCompressing:
			stats.Compressing++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// LastDrain returns the summary of the most recently completed drain, if any.
func (m *Manager) LastDrain() (DrainSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastDrain == nil {
		return DrainSummary{}, false
	}
	summary := *m.lastDrain
	summary.Errors = append([]BatchError(nil), m.lastDrain.Errors...)
	return summary, true
}
