package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/dayplan/internal/schedule"
)

// ChangeKind describes a published EntryStore change.
type ChangeKind int

const (
	// ChangeLoaded: the whole set was (re)loaded from the remote store.
	ChangeLoaded ChangeKind = iota + 1
	// ChangePending: an optimistic timing change was applied locally.
	ChangePending
	// ChangeCommitted: a pending timing change was confirmed remotely.
	ChangeCommitted
	// ChangeReverted: a pending timing change failed and was rolled back.
	ChangeReverted
	// ChangeInserted: new entries were persisted and added.
	ChangeInserted
	// ChangeReplaced: the whole set was replaced by an undo/redo step.
	ChangeReplaced
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeLoaded:
		return "loaded"
	case ChangePending:
		return "pending"
	case ChangeCommitted:
		return "committed"
	case ChangeReverted:
		return "reverted"
	case ChangeInserted:
		return "inserted"
	case ChangeReplaced:
		return "replaced"
	default:
		return fmt.Sprintf("change(%d)", int(k))
	}
}

// Change is delivered to subscribers after a mutation completes.
type Change struct {
	Kind     ChangeKind
	EntryIDs []string
	// Diff is set for ChangeReplaced.
	Diff *DiffResult
}

// EntryView is the read-only face of EntryStore handed to subsystems that
// must observe the schedule without changing it.
type EntryView interface {
	UserID() string
	Entries() []schedule.Entry
	Get(id string) (schedule.Entry, bool)
	OnDate(date time.Time) []schedule.Entry
	Subscribe(fn func(Change)) (cancel func())
}

// EntryStore is the in-memory entry set for one user. It is the single
// source of truth for everything above it.
type EntryStore struct {
	user string

	mu      sync.RWMutex
	rng     schedule.Range
	entries map[string]schedule.Entry
	// durable holds the last persisted timing of entries with a change in
	// flight.
	durable map[string]schedule.Timing

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Change)
}

var _ EntryView = (*EntryStore)(nil)

// NewEntryStore returns an empty store for userID.
func NewEntryStore(userID string) *EntryStore {
	return &EntryStore{
		user:    userID,
		entries: make(map[string]schedule.Entry),
		durable: make(map[string]schedule.Timing),
	}
}

// UserID returns the owner of every entry in the store.
func (s *EntryStore) UserID() string {
	return s.user
}

// Range returns the window the store was last loaded with.
func (s *EntryStore) Range() schedule.Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rng
}

// Load replaces the local set with the user's entries in r.
// The zero Range loads everything.
func (s *EntryStore) Load(ctx context.Context, remote RemoteStore, r schedule.Range) error {
	entries, err := remote.QueryByUserAndDateRange(ctx, s.user, r)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	s.mu.Lock()
	s.rng = r
	s.entries = make(map[string]schedule.Entry, len(entries))
	s.durable = make(map[string]schedule.Timing)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		s.entries[e.ID] = e.Clone()
		ids = append(ids, e.ID)
	}
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeLoaded, EntryIDs: ids})
	return nil
}

// Entries returns a sorted copy of every entry.
func (s *EntryStore) Entries() []schedule.Entry {
	s.mu.RLock()
	out := make([]schedule.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	s.mu.RUnlock()

	schedule.SortEntries(out)
	return out
}

// Committed returns a sorted copy of every entry as the remote store last
// accepted it. Entries with a pending timing change carry their previous
// timing.
func (s *EntryStore) Committed() []schedule.Entry {
	s.mu.RLock()
	out := make([]schedule.Entry, 0, len(s.entries))
	for id, e := range s.entries {
		if t, ok := s.durable[id]; ok {
			e = e.WithTiming(t)
		}
		out = append(out, e.Clone())
	}
	s.mu.RUnlock()

	schedule.SortEntries(out)
	return out
}

// Get returns a copy of one entry.
func (s *EntryStore) Get(id string) (schedule.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return schedule.Entry{}, false
	}
	return e.Clone(), true
}

// OnDate returns the entries starting on the calendar day of date, sorted.
func (s *EntryStore) OnDate(date time.Time) []schedule.Entry {
	return s.InRange(schedule.DayRange(date))
}

// InRange returns the entries whose start falls in r, sorted.
func (s *EntryStore) InRange(r schedule.Range) []schedule.Entry {
	s.mu.RLock()
	var out []schedule.Entry
	for _, e := range s.entries {
		if r.Contains(e.Start) {
			out = append(out, e.Clone())
		}
	}
	s.mu.RUnlock()

	schedule.SortEntries(out)
	return out
}

// Len returns the number of entries.
func (s *EntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers fn for every subsequent change. Subscribers are called
// in registration order on the mutating goroutine. The returned func
// unregisters fn.
func (s *EntryStore) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *EntryStore) publish(c Change) {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(c)
	}
}

// insert adds already-persisted entries.
func (s *EntryStore) insert(entries ...schedule.Entry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]string, 0, len(entries))

	s.mu.Lock()
	for _, e := range entries {
		s.entries[e.ID] = e.Clone()
		ids = append(ids, e.ID)
	}
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeInserted, EntryIDs: ids})
}

// setTiming applies t to one entry and returns the timing it replaced.
// kind is ChangePending for an optimistic apply and ChangeReverted for a
// rollback.
func (s *EntryStore) setTiming(id string, t schedule.Timing, kind ChangeKind) (schedule.Timing, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return schedule.Timing{}, false
	}
	prev := e.Timing()
	s.entries[id] = e.WithTiming(t)
	switch kind {
	case ChangePending:
		if _, inFlight := s.durable[id]; !inFlight {
			s.durable[id] = prev
		}
	case ChangeReverted:
		delete(s.durable, id)
	}
	s.mu.Unlock()

	s.publish(Change{Kind: kind, EntryIDs: []string{id}})
	return prev, true
}

// commit announces that a pending change on id is now durable.
func (s *EntryStore) commit(id string) {
	s.mu.Lock()
	delete(s.durable, id)
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeCommitted, EntryIDs: []string{id}})
}

// replaceAll swaps the whole set for entries.
func (s *EntryStore) replaceAll(entries []schedule.Entry, diff DiffResult) {
	s.mu.Lock()
	s.entries = make(map[string]schedule.Entry, len(entries))
	s.durable = make(map[string]schedule.Timing)
	for _, e := range entries {
		s.entries[e.ID] = e.Clone()
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(diff.Added)+len(diff.Removed)+len(diff.Changed))
	ids = append(ids, diff.Added...)
	ids = append(ids, diff.Removed...)
	ids = append(ids, diff.Changed...)
	s.publish(Change{Kind: ChangeReplaced, EntryIDs: ids, Diff: &diff})
}
