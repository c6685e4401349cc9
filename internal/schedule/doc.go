// Package schedule defines the value types shared by the scheduling core:
// entries, templates, timings, date ranges and history snapshots.
//
// Everything here is a plain value. Nothing in this package holds state or
// performs I/O; mutation of the live entry set happens in internal/engine.
//
// # Time model
//
// Entries carry absolute timestamps. Templates carry wall-clock offsets
// (TimeOfDay, minutes after midnight) that become absolute only when combined
// with a calendar date via TimeOfDay.On. A "date" is a time.Time at local
// midnight in its own location; Date and IsDate convert and check.
package schedule
