package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vise/internal/logs"
)

func writeLog(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vise.log")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, lines string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString(lines); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()
}

func TestTailSeedsFromEnd(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\nfour\nfive\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 3})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 3 || result.Lines[0] != "three" || result.Lines[2] != "five" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset == 0 {
		t.Fatal("expected offset to advance")
	}

	appendLog(t, path, "six\n")
	next, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: result.Offset})
	if err != nil {
		t.Fatalf("resume tail: %v", err)
	}
	if len(next.Lines) != 1 || next.Lines[0] != "six" {
		t.Fatalf("expected only the appended line, got %#v", next.Lines)
	}
}

func TestTailLimitLargerThanFile(t *testing.T) {
	path := writeLog(t, "alpha\nbeta\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "alpha" || result.Lines[1] != "beta" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
}

func TestTailMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.log")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result at offset zero, got %#v", result)
	}
}

func TestTailOffsetBeyondEndClamps(t *testing.T) {
	path := writeLog(t, "only\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 1 << 20})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("expected no lines past end of file, got %#v", result.Lines)
	}
	if result.Offset != int64(len("only\n")) {
		t.Fatalf("expected offset clamped to file size, got %d", result.Offset)
	}
}

func TestTailRejectsDirectory(t *testing.T) {
	if _, err := logs.Tail(context.Background(), t.TempDir(), logs.TailOptions{}); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestTailFollowDeliversAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")

	seed, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("seed tail: %v", err)
	}

	done := make(chan struct{})
	go func(offset int64) {
		res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Errorf("unexpected follow lines: %#v", res.Lines)
		}
		close(done)
	}(seed.Offset)

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, "later\n")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestTailFollowHonorsContext(t *testing.T) {
	path := writeLog(t, "start\n")

	seed, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("seed tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	started := time.Now()
	_, err = logs.Tail(ctx, path, logs.TailOptions{Offset: seed.Offset, Follow: true, Wait: time.Minute})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("follow did not stop promptly after cancel: %v", elapsed)
	}
}
