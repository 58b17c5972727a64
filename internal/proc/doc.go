// Package proc supervises external encoder processes.
//
// A Handle owns exactly one spawned process in its own process group. The
// supervisor streams the merged stdout/stderr output line by line to a
// callback, reaps the process once the stream closes, and resolves a single
// authoritative outcome. Cancellation escalates SIGTERM, SIGINT, SIGKILL
// against the whole group with short grace periods, is idempotent under
// concurrent callers, and always wins the race against natural completion:
// once cancellation is requested, any exit resolves as cancelled.
package proc
