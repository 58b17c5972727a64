// Package services defines shared utilities consumed by the compression
// engine, the queue manager, and the daemon surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp job identifiers and component names for
//     logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the engine's error taxonomy (retryable vs terminal, cancelled vs
//     failed).
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability, retries) stays uniform across the system.
package services
