package proc

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vise/internal/logging"
	"vise/internal/services"
)

func startScript(t *testing.T, script string, onLine func(string)) *Handle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	handle, err := Start(Command{Binary: path}, onLine, logging.NewNop())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return handle
}

func TestSuccessfulRunStreamsLines(t *testing.T) {
	var lines []string
	handle := startScript(t, "#!/bin/sh\necho 'line one'\nprintf 'status\\r'\necho 'line two'\n",
		func(line string) { lines = append(lines, line) })

	result := handle.Wait()
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want success (err: %v)", result.Outcome, result.Err)
	}
	if result.Err != nil {
		t.Errorf("unexpected error: %v", result.Err)
	}
	want := []string{"line one", "status", "line two"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
	if handle.Running() {
		t.Error("handle still reports running after resolution")
	}
}

func TestFailureCapturesDiagnostics(t *testing.T) {
	handle := startScript(t, "#!/bin/sh\necho 'Error opening input: no such codec' >&2\nexit 3\n", nil)

	result := handle.Wait()
	if result.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", result.Outcome)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
	if !errors.Is(result.Err, services.ErrCompressionFailed) {
		t.Errorf("err = %v, want ErrCompressionFailed", result.Err)
	}
	if !services.Retryable(result.Err) {
		t.Error("compression failure should be retryable")
	}
	if !strings.Contains(result.Err.Error(), "Error opening input") {
		t.Errorf("err %q missing diagnostic tail", result.Err)
	}
}

func TestCancelTerminatesPromptly(t *testing.T) {
	handle := startScript(t, "#!/bin/sh\nexec sleep 30\n", nil)
	if !handle.Running() {
		t.Fatal("handle not running after start")
	}

	start := time.Now()
	handle.Cancel()
	result := handle.Wait()
	elapsed := time.Since(start)

	if result.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", result.Outcome)
	}
	if !errors.Is(result.Err, services.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", result.Err)
	}
	if services.Retryable(result.Err) {
		t.Error("cancellation must not count as retryable failure")
	}
	if elapsed > 10*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
}

func TestCancelEscalatesToKill(t *testing.T) {
	// Cancel only after the script reports its traps installed; a signal
	// sent during interpreter startup would kill it with default handling.
	ready := make(chan struct{})
	var readyOnce sync.Once
	handle := startScript(t, "#!/bin/sh\ntrap '' TERM INT\necho ready\nwhile :; do :; done\n",
		func(line string) {
			if line == "ready" {
				readyOnce.Do(func() { close(ready) })
			}
		})
	select {
	case <-ready:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the script to install its traps")
	}

	start := time.Now()
	handle.Cancel()
	result := handle.Wait()
	elapsed := time.Since(start)

	if result.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", result.Outcome)
	}
	// The process ignores the first two signals, so resolution requires
	// walking both grace periods before the kill.
	if elapsed < termGrace+intGrace {
		t.Errorf("resolved after %v, before escalation could have killed", elapsed)
	}
	if elapsed > 15*time.Second {
		t.Errorf("escalation took %v", elapsed)
	}
}

func TestCancelIsIdempotentUnderConcurrency(t *testing.T) {
	handle := startScript(t, "#!/bin/sh\nexec sleep 30\n", nil)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle.Cancel()
		}()
	}
	wg.Wait()

	result := handle.Wait()
	if result.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled", result.Outcome)
	}

	// Cancelling a resolved handle must not disturb the outcome.
	handle.Cancel()
	again, resolved := handle.Result()
	if !resolved || again.Outcome != OutcomeCancelled {
		t.Fatalf("post-resolution cancel changed result: %+v resolved=%v", again, resolved)
	}
}

func TestCleanExitAfterCancelResolvesCancelled(t *testing.T) {
	// The tool swallows the termination request and exits 0. The run was
	// still cancelled, so a success report would be spurious.
	handle := startScript(t, "#!/bin/sh\ntrap 'exit 0' TERM\nwhile :; do :; done\n", nil)

	handle.Cancel()
	result := handle.Wait()
	if result.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %v, want cancelled despite exit 0", result.Outcome)
	}
}

func TestCancelAfterSuccessKeepsOutcome(t *testing.T) {
	handle := startScript(t, "#!/bin/sh\nexit 0\n", nil)
	result := handle.Wait()
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", result.Outcome)
	}

	handle.Cancel()
	time.Sleep(50 * time.Millisecond)
	again, _ := handle.Result()
	if again.Outcome != OutcomeSuccess {
		t.Fatalf("cancel after completion rewrote outcome to %v", again.Outcome)
	}
}

func TestSpawnFailure(t *testing.T) {
	_, err := Start(Command{Binary: filepath.Join(t.TempDir(), "missing-encoder")}, nil, logging.NewNop())
	if !errors.Is(err, services.ErrCompressionFailed) {
		t.Fatalf("err = %v, want ErrCompressionFailed", err)
	}
}

func TestScanLinesHandlesCarriageReturns(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("alpha\rbeta\ngamma\r\ndelta"))
	scanner.Split(scanLines)

	var tokens []string
	for scanner.Scan() {
		if text := scanner.Text(); text != "" {
			tokens = append(tokens, text)
		}
	}
	want := []string{"alpha", "beta", "gamma", "delta"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %q, want %q", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, tokens[i], want[i])
		}
	}
}
