// Package encoding drives ffmpeg compression runs for queue jobs.
//
// It derives per-job settings from configuration, builds the encoder
// invocation (VAAPI when hardware acceleration is requested and the render
// device exists, software otherwise), supervises the process through
// internal/proc, and turns ffmpeg's progress stream into throttled,
// monotonic progress callbacks. The engine surfaces structured errors when
// the encoder fails and flags outputs that came out larger than their
// source without treating them as failures.
package encoding
