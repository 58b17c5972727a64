package queue

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"vise/internal/encoding"
	"vise/internal/history"
	"vise/internal/logging"
	"vise/internal/services"
)

// Start begins the drain goroutine.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("queue already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(runCtx)
	return nil
}

// Stop terminates the drain goroutine and waits for it. The active job, if
// any, is cancelled through its context and lands back in Pending.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		id, startedCount, ok := m.dequeue()
		if !ok {
			m.finishDrain(ctx)
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
			}
			continue
		}

		if startedCount > 0 {
			m.logger.Info("queue processing started", logging.Int("jobs", startedCount))
			if err := m.notifier.NotifyQueueStarted(ctx, startedCount); err != nil {
				m.logger.Debug("queue started notification failed", logging.Error(err))
			}
		}
		m.runJob(ctx, id)
	}
}

// dequeue pops the next runnable id, skipping entries whose job went terminal
// or started elsewhere while queued. startedCount is non-zero when this
// dequeue began a new drain, carrying the queue depth at that moment.
func (m *Manager) dequeue() (id string, startedCount int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.runQueue) > 0 {
		id = m.runQueue[0]
		m.runQueue = m.runQueue[1:]
		delete(m.queued, id)

		job, exists := m.jobs[id]
		if !exists || job.Status != StatusPending {
			continue
		}
		if !m.drainActive {
			m.drainActive = true
			m.drainStart = time.Now()
			m.drainProcessed = 0
			m.drainErrors = nil
			return id, 1 + len(m.runQueue), true
		}
		return id, 0, true
	}
	return "", 0, false
}

// finishDrain closes out drain bookkeeping once the queue empties and
// surfaces the aggregated batch result.
func (m *Manager) finishDrain(ctx context.Context) {
	m.mu.Lock()
	if !m.drainActive {
		m.mu.Unlock()
		return
	}
	summary := DrainSummary{
		Started:   m.drainStart,
		Finished:  time.Now(),
		Processed: m.drainProcessed,
		Errors:    append([]BatchError(nil), m.drainErrors...),
	}
	m.drainActive = false
	m.lastDrain = &summary
	m.mu.Unlock()

	elapsed := summary.Finished.Sub(summary.Started)
	if len(summary.Errors) > 0 {
		logging.WarnWithContext(m.logger, "queue drained with failures", "queue_drain_failed",
			logging.Int("processed", summary.Processed),
			logging.Int("failed", len(summary.Errors)),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldErrorHint, "vise queue retry re-enqueues failed jobs"),
			logging.String(logging.FieldImpact, "some files were not compressed"),
		)
	} else {
		m.logger.Info("queue drained",
			logging.Int("processed", summary.Processed),
			logging.Duration("elapsed", elapsed))
	}

	if summary.Processed > 0 || len(summary.Errors) > 0 {
		if err := m.notifier.NotifyQueueCompleted(ctx, summary.Processed, len(summary.Errors), elapsed); err != nil {
			m.logger.Debug("queue completed notification failed", logging.Error(err))
		}
	}
}

// runJob drives one job through Compressing to its next state.
func (m *Manager) runJob(ctx context.Context, id string) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok || job.Status != StatusPending {
		m.mu.Unlock()
		return
	}
	jobCtx, cancelJob := context.WithCancel(ctx)
	m.active = id
	m.activeCancel = cancelJob
	now := time.Now()
	job.Status = StatusCompressing
	job.ProgressPercent = 0
	job.ErrorKind, job.ErrorMessage = "", ""
	job.StartedAt = now
	job.UpdatedAt = now
	req := encoding.Request{
		JobID:      id,
		InputPath:  job.SourcePath,
		OutputPath: job.OutputPath,
		Settings:   job.Settings,
		OnProgress: func(update encoding.Update) {
			m.recordProgress(id, update)
		},
	}
	m.mu.Unlock()

	logger := m.logger.With(
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldFile, filepath.Base(req.InputPath)))
	logger.Info("job compressing")

	result, err := m.compressor.Compress(jobCtx, req)
	cancelJob()

	finished := time.Now()
	m.mu.Lock()
	m.active = ""
	m.activeCancel = nil
	job, ok = m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		job.Status = StatusCompleted
		job.ProgressPercent = 100
		job.OutputPath = result.OutputPath
		job.CompressedBytes = result.OutputBytes
		job.ReductionPercent = result.ReductionPercent
		job.OutputLarger = result.OutputLarger
		job.HardwareUsed = result.HardwareUsed
		job.FinishedAt = finished
		job.UpdatedAt = finished
		m.drainProcessed++
	case services.IsCancelled(err):
		job.Status = StatusPending
		job.ProgressPercent = 0
		job.UpdatedAt = finished
	default:
		job.SetFailed(services.Kind(err), err.Error())
		m.drainErrors = append(m.drainErrors, BatchError{
			JobID:        id,
			SourcePath:   job.SourcePath,
			DisplayTitle: job.DisplayTitle,
			Kind:         job.ErrorKind,
			Message:      job.ErrorMessage,
		})
	}
	snapshot := *job
	m.mu.Unlock()

	m.reportOutcome(ctx, logger, snapshot, err)
}

// reportOutcome logs, notifies, and records history for a finished run. It
// runs outside the manager lock; everything it needs is in the snapshot.
func (m *Manager) reportOutcome(ctx context.Context, logger *slog.Logger, job Job, err error) {
	switch job.Status {
	case StatusCompleted:
		logger.Info("job completed",
			logging.Int64("input_bytes", job.OriginalBytes),
			logging.Int64("output_bytes", job.CompressedBytes),
			logging.Float64("reduction_percent", job.ReductionPercent),
			logging.Bool("output_larger", job.OutputLarger))
		if notifyErr := m.notifier.NotifyJobCompleted(ctx, job.DisplayTitle, job.ReductionPercent, job.OutputLarger); notifyErr != nil {
			logger.Debug("completion notification failed", logging.Error(notifyErr))
		}
		m.recordRun(ctx, logger, job, history.OutcomeCompleted)
	case StatusFailed:
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.Error(err),
			logging.String("error_kind", job.ErrorKind),
			logging.String(logging.FieldErrorHint, retryHint(err)),
		)
		if notifyErr := m.notifier.NotifyJobFailed(ctx, job.DisplayTitle, job.ErrorMessage); notifyErr != nil {
			logger.Debug("failure notification failed", logging.Error(notifyErr))
		}
		m.recordRun(ctx, logger, job, history.OutcomeFailed)
	case StatusPending:
		logger.Info("job cancelled, returned to pending")
	}
}

func (m *Manager) recordRun(ctx context.Context, logger *slog.Logger, job Job, outcome history.Outcome) {
	if m.hist == nil {
		return
	}
	run := history.Run{
		JobID:            job.ID,
		SourcePath:       job.SourcePath,
		DisplayTitle:     job.DisplayTitle,
		OutputPath:       job.OutputPath,
		Outcome:          outcome,
		ErrorKind:        job.ErrorKind,
		ErrorMessage:     job.ErrorMessage,
		OriginalBytes:    job.OriginalBytes,
		CompressedBytes:  job.CompressedBytes,
		ReductionPercent: job.ReductionPercent,
		OutputLarger:     job.OutputLarger,
		HardwareUsed:     job.HardwareUsed,
		Elapsed:          job.FinishedAt.Sub(job.StartedAt),
		FinishedAt:       job.FinishedAt,
	}
	if _, err := m.hist.Record(ctx, run); err != nil {
		logger.Warn("history record failed", logging.Error(err))
	}
}

// recordProgress mirrors throttled engine updates into the job table.
func (m *Manager) recordProgress(id string, update encoding.Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != StatusCompressing {
		return
	}
	job.ProgressPercent = update.Percent()
	job.Touch()
}

func retryHint(err error) string {
	if services.Retryable(err) {
		return "vise queue retry will re-attempt this job"
	}
	return "fix the underlying condition before retrying"
}
