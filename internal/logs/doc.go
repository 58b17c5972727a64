// Package logs reads daemon log files with bounded memory, tracking byte
// offsets so callers can resume where they left off.
//
// A negative offset means "the last N lines", which is how `vise logs` seeds
// its view; follow mode polls the file for new lines until a deadline so the
// CLI can stream without holding a connection open forever.
package logs
