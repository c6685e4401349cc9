package engine

import (
	"sort"

	"github.com/roach88/dayplan/internal/schedule"
)

// DiffResult lists entry ids that differ between two entry sets.
type DiffResult struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Empty reports whether the two sets were identical.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares from and to by entry id. The result is sorted so that it is
// stable across runs.
func Diff(from, to []schedule.Entry) DiffResult {
	before := make(map[string]schedule.Entry, len(from))
	for _, e := range from {
		before[e.ID] = e
	}

	var d DiffResult
	seen := make(map[string]bool, len(to))
	for _, e := range to {
		seen[e.ID] = true
		prev, ok := before[e.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, e.ID)
		case !prev.Equal(e):
			d.Changed = append(d.Changed, e.ID)
		}
	}
	for id := range before {
		if !seen[id] {
			d.Removed = append(d.Removed, id)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}
