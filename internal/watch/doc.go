// Package watch feeds the queue from ingest directories. An fsnotify
// watcher picks up files created or written under the configured
// directories, waits for them to stop changing, and registers them with
// the queue manager. Files carrying the configured output suffix are
// ignored so the watcher never re-queues its own results.
package watch
