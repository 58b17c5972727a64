// Package probe inspects media files ahead of compression.
//
// A Prober wraps ffprobe with a wall-clock timeout and a fixed-capacity
// FIFO cache keyed by (path, size, mtime), so repeated probes of an
// unchanged file never spawn a second process. When ffprobe itself is
// missing the prober falls back to parsing ffmpeg's human-readable
// diagnostics, trading precision for availability.
package probe
