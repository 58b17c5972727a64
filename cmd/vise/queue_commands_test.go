package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"vise/internal/queue"
)

func TestAddListAndDescribe(t *testing.T) {
	env := setupCLITestEnv(t)

	alpha := seedSource(t, env.baseDir, "alpha.mkv")
	beta := seedSource(t, env.baseDir, "beta.mp4")

	out, _, err := runCLI(t, []string{"add", alpha, beta}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Queued")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Alpha")
	requireContains(t, out, "Beta")
	requireContains(t, out, "Pending")

	out, _, err = runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "Total")

	jobs := env.daemon.ListQueue()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	short := shortID(jobs[0].ID)

	out, _, err = runCLI(t, []string{"queue", "describe", short}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue describe: %v", err)
	}
	requireContains(t, out, jobs[0].ID)
	requireContains(t, out, "Source")

	out, _, err = runCLI(t, []string{"queue", "describe", short, "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue describe --json: %v", err)
	}
	var decoded struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode describe json: %v", err)
	}
	if decoded.ID != jobs[0].ID || decoded.Status != "pending" {
		t.Fatalf("unexpected describe json: %+v", decoded)
	}

	if _, _, err := runCLI(t, []string{"queue", "describe", "zzzz"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for unknown job reference")
	} else if !strings.Contains(err.Error(), "no queue job matches") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"add", "/does/not/exist.mkv"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "file does not exist") {
		t.Fatalf("expected missing-file error, got %v", err)
	}

	text := seedSource(t, env.baseDir, "notes.txt")
	_, _, err = runCLI(t, []string{"add", text}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unsupported file extension") {
		t.Fatalf("expected extension error, got %v", err)
	}

	good := seedSource(t, env.baseDir, "movie.mkv")
	if _, _, err := runCLI(t, []string{"add", good}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, _, err = runCLI(t, []string{"add", good}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected duplicate add to fail")
	}
}

func TestCompressRetryAndHistoryFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	good := seedSource(t, env.baseDir, "good.mkv")
	bad := seedSource(t, env.baseDir, "fail-this.mkv")

	out, _, err := runCLI(t, []string{"compress", good, bad}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	requireContains(t, out, "Compression started for 2 job(s)")

	env.waitForStatusCounts(t, map[queue.Status]int{
		queue.StatusCompleted: 1,
		queue.StatusFailed:    1,
	})

	out, _, err = runCLI(t, []string{"queue", "list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	requireContains(t, out, "Fail This")

	waitFor(t, 5*time.Second, func() bool {
		runs, err := env.daemon.History(context.Background(), 0)
		return err == nil && len(runs) == 2
	})

	out, _, err = runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Completed")
	requireContains(t, out, "Failed")

	out, _, err = runCLI(t, []string{"history", "stats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history stats: %v", err)
	}
	requireContains(t, out, "Total runs: 2")
	requireContains(t, out, "Completed: 1")
	requireContains(t, out, "Failed: 1")

	out, _, err = runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed job(s)")

	env.waitForStatusCounts(t, map[queue.Status]int{queue.StatusFailed: 1})

	waitFor(t, 5*time.Second, func() bool {
		runs, err := env.daemon.History(context.Background(), 0)
		return err == nil && len(runs) == 3
	})

	out, _, err = runCLI(t, []string{"history", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Cleared")

	out, _, err = runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history after clear: %v", err)
	}
	requireContains(t, out, "History is empty")
}

func TestQueueRetrySpecificJob(t *testing.T) {
	env := setupCLITestEnv(t)

	bad := seedSource(t, env.baseDir, "fail-again.mkv")
	if _, _, err := runCLI(t, []string{"compress", bad}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("compress: %v", err)
	}
	env.waitForStatusCounts(t, map[queue.Status]int{queue.StatusFailed: 1})

	jobs := env.daemon.ListQueue()
	short := shortID(jobs[0].ID)

	out, _, err := runCLI(t, []string{"queue", "retry", short}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry %s: %v", short, err)
	}
	requireContains(t, out, "reset for retry")

	env.waitForStatusCounts(t, map[queue.Status]int{queue.StatusFailed: 1})

	good := seedSource(t, env.baseDir, "steady.mkv")
	if _, _, err := runCLI(t, []string{"add", good}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("add: %v", err)
	}
	pending := findJobBySource(t, env, good)

	out, _, err = runCLI(t, []string{"queue", "retry", shortID(pending.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry pending: %v", err)
	}
	requireContains(t, out, "is not in a failed state")
}

func TestQueueRemoveCancelAndClear(t *testing.T) {
	env := setupCLITestEnv(t)

	first := seedSource(t, env.baseDir, "first.mkv")
	second := seedSource(t, env.baseDir, "second.mkv")
	if _, _, err := runCLI(t, []string{"add", first, second}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("add: %v", err)
	}

	target := findJobBySource(t, env, first)
	out, _, err := runCLI(t, []string{"queue", "remove", shortID(target.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "removed")

	remaining := findJobBySource(t, env, second)
	out, _, err = runCLI(t, []string{"queue", "cancel", shortID(remaining.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue cancel: %v", err)
	}
	requireContains(t, out, "cancellation requested")

	out, _, err = runCLI(t, []string{"cancel"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Cancellation requested")

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 queue job(s)")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func findJobBySource(t *testing.T, env *cliTestEnv, source string) queue.Job {
	t.Helper()
	for _, job := range env.daemon.ListQueue() {
		if job.SourcePath == source {
			return job
		}
	}
	t.Fatalf("no job found for %s", source)
	return queue.Job{}
}
