package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/dayplan/internal/schedule"
)

// ErrInjected is returned by MemoryRemote when a failure has been armed.
var ErrInjected = errors.New("injected failure")

// MemoryRemote is an in-memory remote entry store. Failures can be armed
// per method to exercise revert and partial-insert paths.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryRemote struct {
	mu      sync.Mutex
	entries map[string]schedule.Entry
	nextID  int

	failUpdate      bool
	failDelete      bool
	failQuery       bool
	failInsertAfter int // -1 disarmed
	block           chan struct{}

	updates int
	inserts int
	deletes int
}

// NewMemoryRemote returns an empty store holding entries.
func NewMemoryRemote(entries ...schedule.Entry) *MemoryRemote {
	r := &MemoryRemote{
		entries:         make(map[string]schedule.Entry),
		failInsertAfter: -1,
	}
	for _, e := range entries {
		r.entries[e.ID] = e.Clone()
	}
	return r
}

// FailUpdate makes every Update fail while on is true.
func (r *MemoryRemote) FailUpdate(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failUpdate = on
}

// FailDeleteAll makes every DeleteAll fail while on is true.
func (r *MemoryRemote) FailDeleteAll(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failDelete = on
}

// FailQuery makes every query fail while on is true.
func (r *MemoryRemote) FailQuery(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failQuery = on
}

// FailInsertAfter lets the next n rows of any Insert succeed and fails the
// rest. A negative n disarms it.
func (r *MemoryRemote) FailInsertAfter(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failInsertAfter = n
}

// BlockUpdates makes Update wait until the returned func is called or the
// update's context is done.
func (r *MemoryRemote) BlockUpdates() (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.block = ch
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.block = nil
			r.mu.Unlock()
			close(ch)
		})
	}
}

// Insert stores entries, keeping any non-empty id and assigning
// "entry-N" otherwise.
func (r *MemoryRemote) Insert(ctx context.Context, entries []schedule.Entry) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(entries))
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		if r.failInsertAfter >= 0 && i >= r.failInsertAfter {
			return ids, fmt.Errorf("insert %q: %w", e.Title, ErrInjected)
		}
		if e.ID == "" {
			r.nextID++
			e.ID = fmt.Sprintf("entry-%d", r.nextID)
		}
		r.entries[e.ID] = e.Clone()
		ids = append(ids, e.ID)
		r.inserts++
	}
	return ids, nil
}

// Update replaces one entry's timing.
func (r *MemoryRemote) Update(ctx context.Context, id string, t schedule.Timing) error {
	r.mu.Lock()
	block := r.block
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failUpdate {
		return fmt.Errorf("update %s: %w", id, ErrInjected)
	}
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("update %s: not found", id)
	}
	r.entries[id] = e.WithTiming(t)
	r.updates++
	return nil
}

// DeleteAll removes every entry owned by userID.
func (r *MemoryRemote) DeleteAll(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failDelete {
		return fmt.Errorf("delete all for %s: %w", userID, ErrInjected)
	}
	for id, e := range r.entries {
		if e.UserID == userID {
			delete(r.entries, id)
		}
	}
	r.deletes++
	return nil
}

// QueryByUserAndDateRange returns userID's entries starting in rng, sorted.
func (r *MemoryRemote) QueryByUserAndDateRange(_ context.Context, userID string, rng schedule.Range) ([]schedule.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failQuery {
		return nil, fmt.Errorf("query %s: %w", userID, ErrInjected)
	}
	var out []schedule.Entry
	for _, e := range r.entries {
		if e.UserID == userID && rng.Contains(e.Start) {
			out = append(out, e.Clone())
		}
	}
	schedule.SortEntries(out)
	return out, nil
}

// Get returns the stored copy of one entry.
func (r *MemoryRemote) Get(id string) (schedule.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e.Clone(), ok
}

// All returns every stored entry, sorted.
func (r *MemoryRemote) All() []schedule.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schedule.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Clone())
	}
	schedule.SortEntries(out)
	return out
}

// Calls returns how many rows were inserted, updates applied and
// delete-alls run.
func (r *MemoryRemote) Calls() (inserts, updates, deletes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inserts, r.updates, r.deletes
}

// MemoryTemplates is an in-memory template store keyed by user and name.
type MemoryTemplates struct {
	mu        sync.Mutex
	templates map[string]schedule.Template
}

// NewMemoryTemplates returns a store holding templates for userID.
func NewMemoryTemplates(userID string, templates ...schedule.Template) *MemoryTemplates {
	m := &MemoryTemplates{templates: make(map[string]schedule.Template)}
	for _, t := range templates {
		m.templates[userID+"/"+t.Name] = t.Clone()
	}
	return m
}

// LoadNamedTemplate returns a copy of the named template.
func (m *MemoryTemplates) LoadNamedTemplate(_ context.Context, userID, name string) (schedule.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[userID+"/"+name]
	if !ok {
		return schedule.Template{}, fmt.Errorf("template %q: not found", name)
	}
	return t.Clone(), nil
}

// SaveNamedTemplate stores a copy of t under name.
func (m *MemoryTemplates) SaveNamedTemplate(_ context.Context, userID, name string, t schedule.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t = t.Clone()
	t.Name = name
	m.templates[userID+"/"+name] = t
	return nil
}
