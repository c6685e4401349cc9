package schedule

import "time"

// Snapshot is an immutable, complete copy of a user's entry set.
//
// Seq orders snapshots by commit; CreatedAt is informational only.
type Snapshot struct {
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	Entries   []Entry   `json:"entries"`
}

// NewSnapshot copies entries into a snapshot sorted by start time.
func NewSnapshot(seq int64, at time.Time, entries []Entry) Snapshot {
	copied := CloneEntries(entries)
	SortEntries(copied)
	return Snapshot{Seq: seq, CreatedAt: at, Entries: copied}
}

// SameEntries reports whether the snapshot holds exactly entries,
// independent of order.
func (s Snapshot) SameEntries(entries []Entry) bool {
	if len(s.Entries) != len(entries) {
		return false
	}
	byID := make(map[string]Entry, len(s.Entries))
	for _, e := range s.Entries {
		byID[e.ID] = e
	}
	for _, e := range entries {
		prev, ok := byID[e.ID]
		if !ok || !prev.Equal(e) {
			return false
		}
	}
	return true
}
