// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry point:
//   - Inspect: executes ffprobe with bounded analysis limits and returns a
//     parsed Result
//
// Helper methods on Result select the first stream of a kind and parse
// duration, bitrate, and frame rates.
package ffprobe
