// Package engine implements the temporal scheduling core.
//
// The engine owns the live entry set (EntryStore) and the only three paths
// allowed to change it:
//
//   - Applier stamps templates onto a date and inserts direct creations.
//   - Rescheduler moves or resizes one entry with optimistic-apply-then-confirm.
//   - History replays a ledger snapshot on undo/redo (full replace).
//
// EntryStore exports only reads and Subscribe. Its mutators are unexported,
// so code outside this package cannot bypass the three paths above. Other
// subsystems (the alarm scheduler, presentation code) consume the EntryView
// interface.
//
// # Concurrency
//
// EntryStore guards its map with a single RWMutex. Every mutation completes
// under the write lock before any subscriber is notified, so a reader such as
// the alarm tick never observes a half-applied optimistic update.
// Subscribers run synchronously on the mutating goroutine, outside the lock.
//
// The only calls that block on I/O are RemoteStore operations made by the
// Applier, the Rescheduler and History.
//
// # Ordering
//
// History stamps every snapshot with a strictly increasing sequence number
// from Clock. Failed persistence never produces a snapshot.
package engine
