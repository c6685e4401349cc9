package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/dayplan/internal/schedule"
)

// OpState is the lifecycle of one reschedule: pending, then committed or
// reverted. There are no other transitions.
type OpState int

const (
	OpPending OpState = iota + 1
	OpCommitted
	OpReverted
)

func (s OpState) String() string {
	switch s {
	case OpPending:
		return "pending"
	case OpCommitted:
		return "committed"
	case OpReverted:
		return "reverted"
	default:
		return fmt.Sprintf("opstate(%d)", int(s))
	}
}

// Op is a reschedule. State moves from OpPending to OpCommitted or
// OpReverted exactly once, when the remote update settles.
type Op struct {
	ID        string
	EntryID   string
	Prev      schedule.Timing
	Next      schedule.Timing
	State     OpState
	StartedAt time.Time
}

// Ack acknowledges a reschedule. State is OpCommitted on success and
// OpPending when the caller stopped waiting before persistence finished.
type Ack struct {
	OpID    string
	EntryID string
	Timing  schedule.Timing
	State   OpState
}

// DefaultPersistTimeout bounds a single remote update.
const DefaultPersistTimeout = 30 * time.Second

// Rescheduler changes entry timing optimistically: the EntryStore reflects
// the new timing immediately, the remote store is updated, and the change is
// either committed (a history snapshot follows) or reverted.
//
// Concurrent reschedules of the same entry are not deduplicated; callers
// serialize them.
type Rescheduler struct {
	store   *EntryStore
	remote  RemoteStore
	ids     IDGenerator
	now     func() time.Time
	timeout time.Duration
	logger  *slog.Logger

	mu  sync.Mutex
	ops map[string]*Op
	wg  sync.WaitGroup
}

// RescheduleOption configures a Rescheduler.
type RescheduleOption func(*Rescheduler)

// WithIDGenerator sets the op id source.
//
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) RescheduleOption {
	return func(r *Rescheduler) { r.ids = g }
}

// WithPersistTimeout bounds each remote update.
//
// Default: DefaultPersistTimeout.
func WithPersistTimeout(d time.Duration) RescheduleOption {
	return func(r *Rescheduler) { r.timeout = d }
}

// WithRescheduleNow overrides the wall clock stamped on ops.
func WithRescheduleNow(now func() time.Time) RescheduleOption {
	return func(r *Rescheduler) { r.now = now }
}

// NewRescheduler returns a Rescheduler over store and remote.
func NewRescheduler(store *EntryStore, remote RemoteStore, opts ...RescheduleOption) *Rescheduler {
	r := &Rescheduler{
		store:   store,
		remote:  remote,
		ids:     UUIDv7Generator{},
		now:     time.Now,
		timeout: DefaultPersistTimeout,
		logger:  slog.Default(),
		ops:     make(map[string]*Op),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reschedule moves entryID to [start, end]. end may be nil.
//
// Validation happens before any mutation. The new timing is visible in the
// EntryStore before the remote update starts. If the update fails the entry
// snaps back to its previous timing and a persistence *Error is returned.
//
// If ctx is cancelled while the update is in flight, the update is allowed
// to finish in the background; Reschedule returns the pending Ack together
// with ctx.Err(), and a later failure is reverted and logged.
func (r *Rescheduler) Reschedule(ctx context.Context, entryID string, start time.Time, end *time.Time) (Ack, error) {
	next := schedule.Timing{Start: start}
	if end != nil {
		e := *end
		next.End = &e
	}
	if err := next.Validate(); err != nil {
		verr := validationError("reschedule", err)
		verr.EntryID = entryID
		return Ack{}, verr
	}

	prev, ok := r.store.setTiming(entryID, next, ChangePending)
	if !ok {
		return Ack{}, notFoundError("reschedule", entryID)
	}

	op := &Op{
		ID:        r.ids.Generate(),
		EntryID:   entryID,
		Prev:      prev,
		Next:      next,
		State:     OpPending,
		StartedAt: r.now(),
	}
	r.mu.Lock()
	r.ops[op.ID] = op
	r.mu.Unlock()

	r.logger.Debug("reschedule pending", "op", op.ID, "entry_id", entryID)

	type outcome struct {
		ack Ack
		err error
	}
	done := make(chan outcome, 1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		ack, err := r.settle(op, r.remote.Update(pctx, entryID, next))
		done <- outcome{ack, err}
	}()

	select {
	case res := <-done:
		return res.ack, res.err
	case <-ctx.Done():
		r.mu.Lock()
		ack := op.ack()
		r.mu.Unlock()
		return ack, ctx.Err()
	}
}

// Pending returns the operations still awaiting the remote store, oldest
// first.
func (r *Rescheduler) Pending() []Op {
	r.mu.Lock()
	out := make([]Op, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, *op)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Wait blocks until every background persistence call has settled.
func (r *Rescheduler) Wait() {
	r.wg.Wait()
}

func (r *Rescheduler) settle(op *Op, err error) (Ack, error) {
	state := OpCommitted
	if err != nil {
		state = OpReverted
	}

	r.mu.Lock()
	op.State = state
	ack := op.ack()
	delete(r.ops, op.ID)
	r.mu.Unlock()

	if err != nil {
		r.store.setTiming(op.EntryID, op.Prev, ChangeReverted)
		r.logger.Warn("reschedule reverted", "op", op.ID, "entry_id", op.EntryID, "error", err)
		return ack, persistenceError("reschedule", op.EntryID, err)
	}

	r.store.commit(op.EntryID)
	r.logger.Debug("reschedule committed", "op", op.ID, "entry_id", op.EntryID)
	return ack, nil
}

// ack reports op in its current state. Callers hold r.mu.
func (op *Op) ack() Ack {
	t := op.Next
	if op.State == OpReverted {
		t = op.Prev
	}
	return Ack{OpID: op.ID, EntryID: op.EntryID, Timing: t, State: op.State}
}
