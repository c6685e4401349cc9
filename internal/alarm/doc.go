// Package alarm fires entry alarms while a scheduling session runs.
//
// A Scheduler scans the entry set on a fixed tick. An entry matches when its
// alarm is enabled, its start lies in [start, start+tolerance) of the current
// time and it has not matched before in this session. Each entry matches at
// most once per session; only Snooze produces a second activation.
//
// All matches are delivered, earliest start first (ties by entry id). One
// activation at a time is active and owns sound playback; the rest wait in a
// queue and are promoted when the active alarm is dismissed or snoozed.
//
// Sound playback is delegated to a Player. A playback failure is logged and
// never suppresses the activation itself.
package alarm
