// Package store is the SQLite-backed remote store for dayplan.
//
// It holds three kinds of rows:
//   - entries: every user's schedule entries (engine.RemoteStore)
//   - history_snapshots and history_cursor: the undo/redo ledger
//     (engine.LedgerStore)
//   - collections: recurring chores whose next date comes from package cycle
//
// # Time
//
// Instants are stored as Unix nanoseconds so range queries are integer
// comparisons. Rows are returned in the store's display location
// (WithLocation, default time.Local).
//
// # Ordering
//
// Entry queries are ORDER BY start_ns ASC, id ASC so results are identical
// across runs.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
