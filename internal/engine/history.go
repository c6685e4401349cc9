package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/dayplan/internal/schedule"
)

// DefaultHistoryLimit caps the number of snapshots a ledger keeps.
const DefaultHistoryLimit = 100

// Ledger is a linear undo/redo history: an ordered list of snapshots and a
// cursor pointing at the current one.
//
// INVARIANTS:
//   - cursor is -1 when empty, otherwise in [0, Len()-1]
//   - Undo/Redo move the cursor and never create snapshots
//   - Record drops any redo branch before appending
//
// Ledger is not safe for concurrent use; History serializes access.
type Ledger struct {
	snaps  []schedule.Snapshot
	cursor int
	limit  int
}

// NewLedger returns an empty ledger keeping at most limit snapshots.
// A limit <= 0 means unbounded.
func NewLedger(limit int) *Ledger {
	return &Ledger{cursor: -1, limit: limit}
}

// Record truncates everything after the cursor, appends snap and moves the
// cursor to it. When the ledger exceeds its limit the oldest snapshots are
// dropped.
func (l *Ledger) Record(snap schedule.Snapshot) {
	l.snaps = append(l.snaps[:l.cursor+1], snap)
	l.cursor = len(l.snaps) - 1

	for l.limit > 0 && len(l.snaps) > l.limit {
		l.snaps[0] = schedule.Snapshot{}
		l.snaps = l.snaps[1:]
		l.cursor--
	}
}

// Undo moves the cursor back one step and returns the snapshot now current.
// It returns false at the oldest snapshot.
func (l *Ledger) Undo() (schedule.Snapshot, bool) {
	if l.cursor <= 0 {
		return schedule.Snapshot{}, false
	}
	l.cursor--
	return l.snaps[l.cursor], true
}

// Redo moves the cursor forward one step. It returns false at the newest
// snapshot.
func (l *Ledger) Redo() (schedule.Snapshot, bool) {
	if l.cursor < 0 || l.cursor >= len(l.snaps)-1 {
		return schedule.Snapshot{}, false
	}
	l.cursor++
	return l.snaps[l.cursor], true
}

// Current returns the snapshot under the cursor.
func (l *Ledger) Current() (schedule.Snapshot, bool) {
	if l.cursor < 0 {
		return schedule.Snapshot{}, false
	}
	return l.snaps[l.cursor], true
}

// Cursor returns the current index, or -1 when empty.
func (l *Ledger) Cursor() int { return l.cursor }

// Len returns the number of snapshots.
func (l *Ledger) Len() int { return len(l.snaps) }

// CanUndo reports whether Undo would move the cursor.
func (l *Ledger) CanUndo() bool { return l.cursor > 0 }

// CanRedo reports whether Redo would move the cursor.
func (l *Ledger) CanRedo() bool { return l.cursor >= 0 && l.cursor < len(l.snaps)-1 }

// Snapshots returns a copy of the snapshot list.
func (l *Ledger) Snapshots() []schedule.Snapshot {
	out := make([]schedule.Snapshot, len(l.snaps))
	copy(out, l.snaps)
	return out
}

// Restore replaces the ledger contents, e.g. with a persisted copy.
func (l *Ledger) Restore(snaps []schedule.Snapshot, cursor int) error {
	if len(snaps) == 0 {
		l.snaps = nil
		l.cursor = -1
		return nil
	}
	if cursor < 0 || cursor >= len(snaps) {
		return fmt.Errorf("restore ledger: cursor %d outside [0, %d]", cursor, len(snaps)-1)
	}
	l.snaps = make([]schedule.Snapshot, len(snaps))
	copy(l.snaps, snaps)
	l.cursor = cursor
	return nil
}

// StepResult is the outcome of Undo or Redo.
type StepResult struct {
	// NoOp is set at a history boundary; nothing was changed.
	NoOp bool `json:"no_op"`
	// Message explains a no-op ("nothing to undo").
	Message string `json:"message,omitempty"`
	// Snapshot is the state that is now current.
	Snapshot schedule.Snapshot `json:"snapshot"`
	// Diff lists what changed relative to the previous local state.
	Diff DiffResult `json:"diff"`
	// Cursor is the ledger position after the step.
	Cursor int `json:"cursor"`
}

// History keeps a Ledger in step with an EntryStore. It records a snapshot
// of the committed entry set after every committed mutation and replays snapshots on undo/redo by
// replacing the user's whole remote entry set (delete-all then insert-all)
// and the local set.
type History struct {
	mu      sync.Mutex
	ledger  *Ledger
	store   *EntryStore
	remote  RemoteStore
	persist LedgerStore
	clock   *Clock
	now     func() time.Time
	logger  *slog.Logger
	cancel  func()
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithLedgerStore makes the ledger durable across sessions.
func WithLedgerStore(ls LedgerStore) HistoryOption {
	return func(h *History) { h.persist = ls }
}

// WithHistoryLimit caps the ledger length.
//
// Default: DefaultHistoryLimit.
func WithHistoryLimit(n int) HistoryOption {
	return func(h *History) { h.ledger.limit = n }
}

// WithHistoryNow overrides the wall clock used for snapshot timestamps.
func WithHistoryNow(now func() time.Time) HistoryOption {
	return func(h *History) { h.now = now }
}

// NewHistory attaches a history to store. Call Open before use.
func NewHistory(store *EntryStore, remote RemoteStore, opts ...HistoryOption) *History {
	h := &History{
		ledger: NewLedger(DefaultHistoryLimit),
		store:  store,
		remote: remote,
		clock:  NewClock(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.cancel = store.Subscribe(h.onChange)
	return h
}

// Open establishes the baseline. With a LedgerStore the persisted ledger is
// restored first; if its current snapshot no longer matches the store, the
// store's state is recorded on top so the ledger head is always accurate.
func (h *History) Open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.store.Committed()

	if h.persist != nil {
		snaps, cursor, err := h.persist.LoadLedger(ctx, h.store.UserID())
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		if err := h.ledger.Restore(snaps, cursor); err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		var maxSeq int64
		for _, s := range snaps {
			maxSeq = max(maxSeq, s.Seq)
		}
		h.clock = NewClockAt(maxSeq)

		if head, ok := h.ledger.Current(); ok && head.SameEntries(current) {
			return nil
		}
		if h.ledger.Len() > 0 {
			h.logger.Info("history head differs from entry store, recording current state",
				"user", h.store.UserID(), "snapshots", h.ledger.Len())
		}
	}

	h.recordLocked(ctx, current)
	return nil
}

// Close detaches the history from the store.
func (h *History) Close() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Undo steps back one snapshot. At the oldest snapshot it returns a NoOp
// result and changes nothing.
func (h *History) Undo(ctx context.Context) (StepResult, error) {
	return h.step(ctx, "undo", false)
}

// Redo steps forward one snapshot. At the newest snapshot it returns a NoOp
// result and changes nothing.
func (h *History) Redo(ctx context.Context) (StepResult, error) {
	return h.step(ctx, "redo", true)
}

// Cursor returns the ledger position.
func (h *History) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ledger.Cursor()
}

// Len returns the number of recorded snapshots.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ledger.Len()
}

// Snapshots returns a copy of the ledger.
func (h *History) Snapshots() []schedule.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ledger.Snapshots()
}

func (h *History) step(ctx context.Context, op string, forward bool) (StepResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var (
		snap schedule.Snapshot
		ok   bool
	)
	if forward {
		snap, ok = h.ledger.Redo()
	} else {
		snap, ok = h.ledger.Undo()
	}
	if !ok {
		return StepResult{NoOp: true, Message: "nothing to " + op, Cursor: h.ledger.Cursor()}, nil
	}

	previous := h.store.Committed()
	diff := Diff(h.store.Entries(), snap.Entries)

	if err := h.replaceRemote(ctx, snap.Entries); err != nil {
		if forward {
			h.ledger.Undo()
		} else {
			h.ledger.Redo()
		}
		h.restoreRemote(ctx, previous)
		return StepResult{}, persistenceError(op, "", err)
	}

	h.store.replaceAll(snap.Entries, diff)
	h.save(ctx)

	h.logger.Debug("history step",
		"op", op,
		"cursor", h.ledger.Cursor(),
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"changed", len(diff.Changed))

	return StepResult{Snapshot: snap, Diff: diff, Cursor: h.ledger.Cursor()}, nil
}

// replaceRemote deletes every remote entry for the user and inserts entries.
func (h *History) replaceRemote(ctx context.Context, entries []schedule.Entry) error {
	if err := h.remote.DeleteAll(ctx, h.store.UserID()); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	if _, err := h.remote.Insert(ctx, schedule.CloneEntries(entries)); err != nil {
		return fmt.Errorf("insert all: %w", err)
	}
	return nil
}

// restoreRemote puts the pre-step entry set back after a failed replace.
func (h *History) restoreRemote(ctx context.Context, entries []schedule.Entry) {
	if err := h.replaceRemote(context.WithoutCancel(ctx), entries); err != nil {
		h.logger.Error("failed to restore remote entries after failed history step",
			"user", h.store.UserID(), "entries", len(entries), "error", err)
	}
}

func (h *History) onChange(c Change) {
	switch c.Kind {
	case ChangeCommitted, ChangeInserted:
	default:
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(context.Background(), h.store.Committed())
}

func (h *History) recordLocked(ctx context.Context, entries []schedule.Entry) {
	snap := schedule.NewSnapshot(h.clock.Next(), h.now(), entries)
	h.ledger.Record(snap)
	h.save(ctx)
}

func (h *History) save(ctx context.Context) {
	if h.persist == nil {
		return
	}
	err := h.persist.SaveLedger(ctx, h.store.UserID(), h.ledger.Snapshots(), h.ledger.Cursor())
	if err != nil {
		h.logger.Error("failed to persist history ledger", "user", h.store.UserID(), "error", err)
	}
}
