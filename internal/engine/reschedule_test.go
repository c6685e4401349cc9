package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dayplan/internal/schedule"
)

func TestReschedule_Commits(t *testing.T) {
	f := newFixture(t, entry("a", "Standup", at(9, 0), ptr(at(9, 15))))
	rec := &recorder{}
	f.store.Subscribe(rec.record)

	ack, err := f.resched.Reschedule(context.Background(), "a", at(10, 0), ptr(at(10, 15)))
	require.NoError(t, err)
	assert.Equal(t, OpCommitted, ack.State)
	assert.NotEmpty(t, ack.OpID)

	got, _ := f.store.Get("a")
	assert.True(t, got.Start.Equal(at(10, 0)))
	remote, _ := f.remote.Get("a")
	assert.True(t, remote.Start.Equal(at(10, 0)))

	assert.Equal(t, []ChangeKind{ChangePending, ChangeCommitted}, rec.seen())
	assert.Equal(t, 2, f.history.Len(), "baseline plus one committed snapshot")
	assert.Empty(t, f.resched.Pending())
}

func TestReschedule_RevertsOnFailure(t *testing.T) {
	f := newFixture(t, entry("a", "Standup", at(9, 0), ptr(at(9, 15))))
	before, _ := f.store.Get("a")
	rec := &recorder{}
	f.store.Subscribe(rec.record)

	f.remote.FailUpdate(true)
	ack, err := f.resched.Reschedule(context.Background(), "a", at(11, 0), nil)
	require.Error(t, err)
	assert.True(t, IsPersistence(err))
	assert.Equal(t, OpReverted, ack.State)
	assert.True(t, ack.Timing.Equal(before.Timing()))

	after, _ := f.store.Get("a")
	assert.True(t, after.Timing().Equal(before.Timing()))
	assert.Equal(t, []ChangeKind{ChangePending, ChangeReverted}, rec.seen())
	assert.Equal(t, 1, f.history.Len(), "no snapshot for a failed reschedule")
}

func TestReschedule_ValidationBeforeMutation(t *testing.T) {
	f := newFixture(t, entry("a", "Standup", at(9, 0), nil))
	rec := &recorder{}
	f.store.Subscribe(rec.record)

	_, err := f.resched.Reschedule(context.Background(), "a", at(10, 0), ptr(at(9, 0)))
	assert.True(t, IsValidation(err))

	_, err = f.resched.Reschedule(context.Background(), "missing", at(10, 0), nil)
	assert.True(t, IsNotFound(err))

	assert.Empty(t, rec.seen())
	_, updates, _ := f.remote.Calls()
	assert.Equal(t, 0, updates)
}

func TestReschedule_CallerGivesUpUpdateCompletesInBackground(t *testing.T) {
	f := newFixture(t, entry("a", "Standup", at(9, 0), nil))
	release := f.remote.BlockUpdates()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack, err := f.resched.Reschedule(ctx, "a", at(13, 0), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OpPending, ack.State)

	got, _ := f.store.Get("a")
	assert.True(t, got.Start.Equal(at(13, 0)), "optimistic timing is visible immediately")

	pending := f.resched.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].EntryID)

	release()
	f.resched.Wait()

	assert.Empty(t, f.resched.Pending())
	remote, _ := f.remote.Get("a")
	assert.True(t, remote.Start.Equal(at(13, 0)))
	assert.Equal(t, 2, f.history.Len())
}

func TestReschedule_BackgroundFailureReverts(t *testing.T) {
	f := newFixture(t, entry("a", "Standup", at(9, 0), nil))
	release := f.remote.BlockUpdates()
	f.remote.FailUpdate(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.resched.Reschedule(ctx, "a", at(13, 0), nil)
	require.ErrorIs(t, err, context.Canceled)

	release()
	f.resched.Wait()

	got, _ := f.store.Get("a")
	assert.True(t, got.Start.Equal(at(9, 0)))
	assert.Equal(t, 1, f.history.Len())
}

func TestReschedule_PersistTimeout(t *testing.T) {
	f := newFixture(t, entry("a", "Standup", at(9, 0), nil))
	release := f.remote.BlockUpdates()
	defer release()

	r := NewRescheduler(f.store, f.remote, WithPersistTimeout(10*time.Millisecond), WithIDGenerator(NewFixedGenerator("op-1")))
	ack, err := r.Reschedule(context.Background(), "a", at(13, 0), nil)
	require.Error(t, err)
	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "op-1", ack.OpID)

	got, _ := f.store.Get("a")
	assert.True(t, got.Start.Equal(at(9, 0)))
}

func TestReschedule_SettleMovesOpState(t *testing.T) {
	f := newFixture(t,
		entry("a", "Standup", at(9, 0), nil),
		entry("b", "Review", at(14, 0), nil),
	)
	release := f.remote.BlockUpdates()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.resched.Reschedule(ctx, "a", at(10, 0), nil)
	require.ErrorIs(t, err, context.Canceled)

	pending := f.resched.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, OpPending, pending[0].State)
	release()
	f.resched.Wait()

	committed := &Op{ID: "op-c", EntryID: "a", Prev: schedule.Timing{Start: at(9, 0)}, Next: schedule.Timing{Start: at(10, 0)}, State: OpPending}
	ack, err := f.resched.settle(committed, nil)
	require.NoError(t, err)
	assert.Equal(t, OpCommitted, committed.State)
	assert.Equal(t, OpCommitted, ack.State)

	reverted := &Op{ID: "op-r", EntryID: "b", Prev: schedule.Timing{Start: at(14, 0)}, Next: schedule.Timing{Start: at(16, 0)}, State: OpPending}
	ack, err = f.resched.settle(reverted, errors.New("remote down"))
	require.Error(t, err)
	assert.Equal(t, OpReverted, reverted.State)
	assert.Equal(t, OpReverted, ack.State)
	assert.True(t, ack.Timing.Start.Equal(at(14, 0)), "reverted ack carries the previous timing")
}

func TestOpState_String(t *testing.T) {
	assert.Equal(t, "pending", OpPending.String())
	assert.Equal(t, "reverted", OpReverted.String())
}
