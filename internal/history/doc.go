// Package history persists a ledger of finished compression runs in SQLite.
//
// The ledger records outcomes only. Live queue state is in-memory and owned
// by internal/queue; nothing here is read back to resume work after a
// restart. Rows are pruned oldest-first once the configured retention cap is
// exceeded, so the database stays small regardless of uptime.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package history
