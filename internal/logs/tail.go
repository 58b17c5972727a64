package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// pollInterval is how often follow mode re-checks the file for new lines.
const pollInterval = 250 * time.Millisecond

// TailOptions controls a single Tail call. A negative Offset selects the last
// Limit lines; Follow keeps polling for up to Wait when the read comes back
// empty.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads log lines from path according to opts. A missing file is not an
// error; callers get an empty result at offset zero so a log that appears
// later is picked up from the start.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	empty := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		empty.Offset = 0
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return empty, fmt.Errorf("log path %q is a directory", path)
	}

	wait := opts.Wait
	if wait < 0 {
		wait = 0
	}

	var result TailResult
	if opts.Offset < 0 {
		result, err = lastLines(path, opts.Limit)
	} else {
		result, err = scanFrom(path, min(opts.Offset, info.Size()))
	}
	if err != nil {
		return empty, err
	}
	if opts.Follow && wait > 0 && len(result.Lines) == 0 {
		return pollLines(ctx, path, result.Offset, wait)
	}
	return result, nil
}

// lastLines scans the whole file through a fixed-size ring so only the final
// limit lines stay in memory.
func lastLines(path string, limit int) (TailResult, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: offset}, nil
	}

	ring := make([]string, limit)
	total := 0
	scanner := newLineScanner(file)
	for scanner.Scan() {
		ring[total%limit] = scanner.Text()
		total++
	}
	if err := scanner.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	count := min(total, limit)
	lines := make([]string, 0, count)
	for i := total - count; i < total; i++ {
		lines = append(lines, ring[i%limit])
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// scanFrom reads every complete line between offset and the current end of
// file, returning the end position as the next resume offset.
func scanFrom(path string, offset int64) (TailResult, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	scanner := newLineScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}
	next, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}
	return TailResult{Lines: lines, Offset: next}, nil
}

// pollLines re-reads from offset until lines arrive, the deadline passes, or
// the context is cancelled. The offset tracks file truncation implicitly: a
// rotated file comes back as offset zero from scanFrom.
func pollLines(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		result, err := scanFrom(path, offset)
		if err != nil {
			return TailResult{Offset: offset}, err
		}
		if len(result.Lines) > 0 || time.Now().After(deadline) {
			return result, nil
		}
		offset = result.Offset

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}
