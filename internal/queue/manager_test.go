package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vise/internal/config"
	"vise/internal/encoding"
	"vise/internal/history"
	"vise/internal/logging"
	"vise/internal/services"
	"vise/internal/testsupport"
)

type compressorFunc func(ctx context.Context, req encoding.Request) (encoding.Result, error)

// fakeCompressor routes each call through a per-file behavior and records
// ordering plus the peak number of concurrent calls.
type fakeCompressor struct {
	mu          sync.Mutex
	calls       []string
	inFlight    int
	maxInFlight int
	behaviors   map[string]compressorFunc
}

func newFakeCompressor() *fakeCompressor {
	return &fakeCompressor{behaviors: make(map[string]compressorFunc)}
}

func (f *fakeCompressor) set(name string, fn compressorFunc) {
	f.mu.Lock()
	f.behaviors[name] = fn
	f.mu.Unlock()
}

func (f *fakeCompressor) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCompressor) Compress(ctx context.Context, req encoding.Request) (encoding.Result, error) {
	name := filepath.Base(req.InputPath)
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	fn := f.behaviors[name]
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()
	if fn != nil {
		return fn(ctx, req)
	}
	return succeedResult(req), nil
}

func succeedResult(req encoding.Request) encoding.Result {
	out := req.OutputPath
	if out == "" {
		out = req.InputPath + ".compressed.mkv"
	}
	return encoding.Result{
		InputPath:        req.InputPath,
		OutputPath:       out,
		InputBytes:       4096,
		OutputBytes:      1024,
		ReductionPercent: 75,
	}
}

func failWith(err error) compressorFunc {
	return func(context.Context, encoding.Request) (encoding.Result, error) {
		return encoding.Result{}, err
	}
}

// gated returns a behavior that blocks until released or cancelled, so tests
// can hold a job in Compressing while they poke at the manager.
func gated() (compressorFunc, chan struct{}) {
	release := make(chan struct{})
	fn := func(ctx context.Context, req encoding.Request) (encoding.Result, error) {
		req.OnProgress(encoding.Update{Fraction: 0.42})
		select {
		case <-release:
			return succeedResult(req), nil
		case <-ctx.Done():
			return encoding.Result{}, services.Wrap(services.ErrCancelled, "encoding", "compress", "interrupted", ctx.Err())
		}
	}
	return fn, release
}

func newTestManager(t *testing.T) (*Manager, *fakeCompressor, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	fake := newFakeCompressor()
	mgr := NewManager(cfg, fake, nil, nil, logging.NewNop())
	t.Cleanup(mgr.Stop)
	return mgr, fake, cfg
}

func addSource(t *testing.T, mgr *Manager, dir, name string) Job {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteFile(t, path, 2048)
	job, err := mgr.Add(context.Background(), path)
	if err != nil {
		t.Fatalf("Add(%s): %v", name, err)
	}
	return job
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForStatus(t *testing.T, mgr *Manager, id string, status Status) Job {
	t.Helper()
	var job Job
	waitFor(t, string(status)+" status for "+id, func() bool {
		snapshot, err := mgr.Describe(id)
		if err != nil {
			return false
		}
		job = snapshot
		return job.Status == status
	})
	return job
}

func waitForDrain(t *testing.T, mgr *Manager) DrainSummary {
	t.Helper()
	var summary DrainSummary
	waitFor(t, "drain to finish", func() bool {
		s, ok := mgr.LastDrain()
		if !ok {
			return false
		}
		summary = s
		return true
	})
	return summary
}

func TestManagerDrainsQueueAndSurfacesFailures(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	first := addSource(t, mgr, dir, "alpha.mkv")
	second := addSource(t, mgr, dir, "bravo.mkv")
	third := addSource(t, mgr, dir, "charlie.mkv")
	fake.set("bravo.mkv", failWith(services.Wrap(services.ErrCompressionFailed, "encoding", "compress", "ffmpeg exited with code 1", nil)))

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	summary := waitForDrain(t, mgr)

	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2", summary.Processed)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("batch errors = %d, want 1", len(summary.Errors))
	}
	batchErr := summary.Errors[0]
	if batchErr.JobID != second.ID || batchErr.Kind != "compression_failed" {
		t.Errorf("batch error = %+v, want job %s kind compression_failed", batchErr, second.ID)
	}
	if summary.Finished.Before(summary.Started) {
		t.Errorf("summary timestamps out of order: %v before %v", summary.Finished, summary.Started)
	}

	for _, id := range []string{first.ID, third.ID} {
		job, err := mgr.Describe(id)
		if err != nil {
			t.Fatalf("Describe(%s): %v", id, err)
		}
		if job.Status != StatusCompleted {
			t.Errorf("job %s status = %s, want %s", id, job.Status, StatusCompleted)
		}
		if job.ProgressPercent != 100 {
			t.Errorf("job %s progress = %v, want 100", id, job.ProgressPercent)
		}
		if job.OutputPath == "" || job.CompressedBytes != 1024 || job.ReductionPercent != 75 {
			t.Errorf("job %s result fields not copied: %+v", id, job)
		}
	}
	failed, err := mgr.Describe(second.ID)
	if err != nil {
		t.Fatalf("Describe(%s): %v", second.ID, err)
	}
	if failed.Status != StatusFailed || failed.ErrorKind != "compression_failed" {
		t.Errorf("failed job = status %s kind %q, want %s compression_failed", failed.Status, failed.ErrorKind, StatusFailed)
	}
	if failed.ProgressPercent != 0 {
		t.Errorf("failed job progress = %v, want 0", failed.ProgressPercent)
	}

	if got := fake.callNames(); len(got) != 3 || got[0] != "alpha.mkv" || got[1] != "bravo.mkv" || got[2] != "charlie.mkv" {
		t.Errorf("call order = %v, want [alpha.mkv bravo.mkv charlie.mkv]", got)
	}
	if fake.maxInFlight != 1 {
		t.Errorf("max concurrent compressions = %d, want 1", fake.maxInFlight)
	}

	stats := mgr.Stats()
	if stats.Completed != 2 || stats.Failed != 1 || stats.Pending != 0 || stats.Compressing != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestManagerCancelReturnsActiveJobToPending(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	fn, release := gated()
	defer close(release)
	fake.set("alpha.mkv", fn)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := addSource(t, mgr, dir, "alpha.mkv")

	waitForStatus(t, mgr, job.ID, StatusCompressing)
	waitFor(t, "progress to advance", func() bool {
		snapshot, err := mgr.Describe(job.ID)
		return err == nil && snapshot.ProgressPercent > 0
	})

	if err := mgr.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	cancelled := waitForStatus(t, mgr, job.ID, StatusPending)
	if cancelled.ProgressPercent != 0 {
		t.Errorf("progress after cancel = %v, want 0", cancelled.ProgressPercent)
	}
	if cancelled.ErrorKind != "" || cancelled.ErrorMessage != "" {
		t.Errorf("cancelled job carries error fields: %+v", cancelled)
	}

	// A second cancel of the now-pending job is a no-op.
	if err := mgr.Cancel(job.ID); err != nil {
		t.Fatalf("repeat Cancel: %v", err)
	}
	if got := len(fake.callNames()); got != 1 {
		t.Errorf("compressor calls = %d, want 1 (cancelled jobs are not rerun automatically)", got)
	}
	if stats := mgr.Stats(); stats.Queued != 0 {
		t.Errorf("queued = %d, want 0", stats.Queued)
	}
}

func TestManagerCancelAllIsConcurrencySafe(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	fn, release := gated()
	defer close(release)
	fake.set("alpha.mkv", fn)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	active := addSource(t, mgr, dir, "alpha.mkv")
	waitForStatus(t, mgr, active.ID, StatusCompressing)
	queuedOne := addSource(t, mgr, dir, "bravo.mkv")
	queuedTwo := addSource(t, mgr, dir, "charlie.mkv")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.CancelAll()
		}()
	}
	wg.Wait()

	waitForStatus(t, mgr, active.ID, StatusPending)
	for _, id := range []string{queuedOne.ID, queuedTwo.ID} {
		job, err := mgr.Describe(id)
		if err != nil {
			t.Fatalf("Describe(%s): %v", id, err)
		}
		if job.Status != StatusPending {
			t.Errorf("job %s status = %s, want %s", id, job.Status, StatusPending)
		}
	}
	if stats := mgr.Stats(); stats.Queued != 0 {
		t.Errorf("queued = %d, want 0 after CancelAll", stats.Queued)
	}
	if got := len(fake.callNames()); got != 1 {
		t.Errorf("compressor calls = %d, want 1", got)
	}
}

func TestManagerCancelledJobSkippedInBatchErrors(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	fn, release := gated()
	defer close(release)
	fake.set("alpha.mkv", fn)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	blocked := addSource(t, mgr, dir, "alpha.mkv")
	waitForStatus(t, mgr, blocked.ID, StatusCompressing)
	follower := addSource(t, mgr, dir, "bravo.mkv")

	if err := mgr.Cancel(blocked.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitForStatus(t, mgr, follower.ID, StatusCompleted)
	summary := waitForDrain(t, mgr)

	if summary.Processed != 1 {
		t.Errorf("processed = %d, want 1", summary.Processed)
	}
	if len(summary.Errors) != 0 {
		t.Errorf("batch errors = %+v, want none for a cancelled job", summary.Errors)
	}
	waitForStatus(t, mgr, blocked.ID, StatusPending)
}

func TestManagerRetryRequiresFailedStatus(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	fake.set("alpha.mkv", failWith(services.Wrap(services.ErrCompressionFailed, "encoding", "compress", "ffmpeg exited with code 1", nil)))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := addSource(t, mgr, dir, "alpha.mkv")
	waitForStatus(t, mgr, job.ID, StatusFailed)

	fake.set("alpha.mkv", nil)
	retried, err := mgr.Retry(job.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.Status != StatusPending || retried.ErrorKind != "" {
		t.Errorf("retried snapshot = %+v, want pending with no error", retried)
	}
	waitForStatus(t, mgr, job.ID, StatusCompleted)

	if _, err := mgr.Retry(job.ID); !errors.Is(err, services.ErrInvalidInput) {
		t.Errorf("Retry on completed job = %v, want ErrInvalidInput", err)
	}
	if _, err := mgr.Retry("no-such-job"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Retry on unknown job = %v, want ErrNotFound", err)
	}
}

func TestManagerRetryAllFailed(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	boom := services.Wrap(services.ErrCompressionFailed, "encoding", "compress", "ffmpeg exited with code 1", nil)
	fake.set("alpha.mkv", failWith(boom))
	fake.set("bravo.mkv", failWith(boom))

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := addSource(t, mgr, dir, "alpha.mkv")
	second := addSource(t, mgr, dir, "bravo.mkv")
	waitForStatus(t, mgr, first.ID, StatusFailed)
	waitForStatus(t, mgr, second.ID, StatusFailed)

	fake.set("alpha.mkv", nil)
	fake.set("bravo.mkv", nil)
	if got := mgr.RetryAllFailed(); got != 2 {
		t.Fatalf("RetryAllFailed = %d, want 2", got)
	}
	waitForStatus(t, mgr, first.ID, StatusCompleted)
	waitForStatus(t, mgr, second.ID, StatusCompleted)
}

func TestManagerRemoveRefusesActiveJob(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	fn, release := gated()
	defer close(release)
	fake.set("alpha.mkv", fn)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := addSource(t, mgr, dir, "alpha.mkv")
	waitForStatus(t, mgr, job.ID, StatusCompressing)

	if err := mgr.Remove(job.ID); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("Remove on compressing job = %v, want ErrInvalidInput", err)
	}

	if err := mgr.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitForStatus(t, mgr, job.ID, StatusPending)
	if err := mgr.Remove(job.ID); err != nil {
		t.Fatalf("Remove after cancel: %v", err)
	}
	if _, err := mgr.Describe(job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Describe after remove = %v, want ErrNotFound", err)
	}
	if err := mgr.Remove("no-such-job"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Remove on unknown job = %v, want ErrNotFound", err)
	}
}

func TestManagerRemovedPendingJobIsSkipped(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	fn, release := gated()
	fake.set("alpha.mkv", fn)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	active := addSource(t, mgr, dir, "alpha.mkv")
	waitForStatus(t, mgr, active.ID, StatusCompressing)
	doomed := addSource(t, mgr, dir, "bravo.mkv")
	survivor := addSource(t, mgr, dir, "charlie.mkv")

	if err := mgr.Remove(doomed.ID); err != nil {
		t.Fatalf("Remove pending job: %v", err)
	}
	close(release)

	waitForStatus(t, mgr, survivor.ID, StatusCompleted)
	got := fake.callNames()
	if len(got) != 2 || got[0] != "alpha.mkv" || got[1] != "charlie.mkv" {
		t.Errorf("call order = %v, want [alpha.mkv charlie.mkv]", got)
	}
}

func TestManagerAddRejectsDuplicatesAndMissingFiles(t *testing.T) {
	mgr, _, cfg := newTestManager(t)
	cfg.Queue.AutoCompress = false
	dir := t.TempDir()

	job := addSource(t, mgr, dir, "alpha.mkv")
	if _, err := mgr.Add(context.Background(), job.SourcePath); !errors.Is(err, services.ErrInvalidInput) {
		t.Errorf("duplicate Add = %v, want ErrInvalidInput", err)
	}
	if _, err := mgr.Add(context.Background(), filepath.Join(dir, "missing.mkv")); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Add missing file = %v, want ErrNotFound", err)
	}

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := mgr.EnqueueAll(); got != 1 {
		t.Fatalf("EnqueueAll = %d, want 1", got)
	}
	waitForStatus(t, mgr, job.ID, StatusCompleted)

	// A finished job no longer blocks re-adding the same file.
	again, err := mgr.Add(context.Background(), job.SourcePath)
	if err != nil {
		t.Fatalf("Add after completion: %v", err)
	}
	if again.ID == job.ID {
		t.Error("re-added job should get a fresh id")
	}
	if len(mgr.List()) != 2 {
		t.Errorf("jobs = %d, want 2", len(mgr.List()))
	}
}

func TestManagerAutoCompressOffWaitsForEnqueue(t *testing.T) {
	mgr, _, cfg := newTestManager(t)
	cfg.Queue.AutoCompress = false
	dir := t.TempDir()

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := addSource(t, mgr, dir, "alpha.mkv")
	second := addSource(t, mgr, dir, "bravo.mkv")

	time.Sleep(100 * time.Millisecond)
	stats := mgr.Stats()
	if stats.Queued != 0 || stats.Compressing != 0 || stats.Completed != 0 {
		t.Fatalf("jobs ran before EnqueueAll: %+v", stats)
	}

	if got := mgr.EnqueueAll(); got != 2 {
		t.Fatalf("EnqueueAll = %d, want 2", got)
	}
	waitForStatus(t, mgr, first.ID, StatusCompleted)
	waitForStatus(t, mgr, second.ID, StatusCompleted)
}

func TestManagerStopReturnsActiveJobToPending(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	fn, release := gated()
	defer close(release)
	fake.set("alpha.mkv", fn)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}

	job := addSource(t, mgr, dir, "alpha.mkv")
	waitForStatus(t, mgr, job.ID, StatusCompressing)

	mgr.Stop()

	snapshot, err := mgr.Describe(job.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if snapshot.Status != StatusPending || snapshot.ProgressPercent != 0 {
		t.Errorf("job after Stop = status %s progress %v, want pending at 0", snapshot.Status, snapshot.ProgressPercent)
	}
	if stats := mgr.Stats(); stats.Running {
		t.Error("stats still report running after Stop")
	}
}

func TestManagerClearDropsTerminalJobs(t *testing.T) {
	mgr, fake, _ := newTestManager(t)
	dir := t.TempDir()

	fake.set("bravo.mkv", failWith(services.Wrap(services.ErrCompressionFailed, "encoding", "compress", "ffmpeg exited with code 1", nil)))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := addSource(t, mgr, dir, "alpha.mkv")
	failed := addSource(t, mgr, dir, "bravo.mkv")
	waitForStatus(t, mgr, done.ID, StatusCompleted)
	waitForStatus(t, mgr, failed.ID, StatusFailed)

	mgr.Stop()
	kept := addSource(t, mgr, dir, "charlie.mkv")

	if got := mgr.Clear(); got != 2 {
		t.Fatalf("Clear = %d, want 2", got)
	}
	jobs := mgr.List()
	if len(jobs) != 1 || jobs[0].ID != kept.ID {
		t.Errorf("jobs after Clear = %+v, want only %s", jobs, kept.ID)
	}
}

func TestManagerRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	fake := newFakeCompressor()
	mgr := NewManager(cfg, fake, nil, store, logging.NewNop())
	t.Cleanup(mgr.Stop)
	dir := t.TempDir()

	fake.set("bravo.mkv", failWith(services.Wrap(services.ErrCompressionFailed, "encoding", "compress", "ffmpeg exited with code 1", nil)))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := addSource(t, mgr, dir, "alpha.mkv")
	failed := addSource(t, mgr, dir, "bravo.mkv")
	waitForStatus(t, mgr, done.ID, StatusCompleted)
	waitForStatus(t, mgr, failed.ID, StatusFailed)

	var runs []history.Run
	waitFor(t, "history to record both runs", func() bool {
		var err error
		runs, err = store.List(context.Background(), 0)
		return err == nil && len(runs) == 2
	})

	byJob := make(map[string]history.Run, len(runs))
	for _, run := range runs {
		byJob[run.JobID] = run
	}
	completed, ok := byJob[done.ID]
	if !ok || completed.Outcome != history.OutcomeCompleted {
		t.Errorf("completed run = %+v", completed)
	}
	if completed.CompressedBytes != 1024 || completed.ReductionPercent != 75 {
		t.Errorf("completed run fields = %+v", completed)
	}
	failedRun, ok := byJob[failed.ID]
	if !ok || failedRun.Outcome != history.OutcomeFailed {
		t.Errorf("failed run = %+v", failedRun)
	}
	if failedRun.ErrorKind != "compression_failed" || failedRun.ErrorMessage == "" {
		t.Errorf("failed run error fields = kind %q message %q", failedRun.ErrorKind, failedRun.ErrorMessage)
	}
}
