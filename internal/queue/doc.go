// Package queue holds the in-memory job table and the manager that drains it.
//
// Jobs move Pending -> Compressing -> {Completed | Failed}, with cancellation
// returning a Compressing job to Pending at zero progress. At most one job is
// Compressing at any instant; the manager's drain goroutine pulls ids off a
// FIFO, skips entries that went terminal while queued, and keeps going on its
// own until the queue empties. A single mutex serializes every mutation, and
// cancellation of the active job is delegated to the per-job context so the
// process supervisor's idempotency guarantees carry over unchanged.
//
// Job state is deliberately not persisted. A daemon restart starts with an
// empty queue; only finished outcomes are recorded, in internal/history.
package queue
