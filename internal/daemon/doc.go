// Package daemon ties the queue manager, watcher, history ledger, and
// notification service together behind one facade and enforces
// single-instance execution with a lock file. The IPC server calls into
// this facade; it never reaches around it to the components.
package daemon
