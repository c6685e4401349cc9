package alarm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dayplan/internal/engine"
	"github.com/roach88/dayplan/internal/schedule"
	"github.com/roach88/dayplan/internal/testutil"
)

func clock(hour, minute, second int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, second, 0, time.UTC)
}

// staticView is a fixed entry set.
type staticView struct {
	mu      sync.Mutex
	entries []schedule.Entry
}

func (v *staticView) UserID() string { return "user-1" }

func (v *staticView) Entries() []schedule.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := schedule.CloneEntries(v.entries)
	schedule.SortEntries(out)
	return out
}

func (v *staticView) Get(id string) (schedule.Entry, bool) {
	for _, e := range v.Entries() {
		if e.ID == id {
			return e, true
		}
	}
	return schedule.Entry{}, false
}

func (v *staticView) OnDate(date time.Time) []schedule.Entry {
	var out []schedule.Entry
	for _, e := range v.Entries() {
		if schedule.SameDay(e.Start, date) {
			out = append(out, e)
		}
	}
	return out
}

func (v *staticView) Subscribe(func(engine.Change)) func() { return func() {} }

var _ engine.EntryView = (*staticView)(nil)

func alarmed(id string, start time.Time) schedule.Entry {
	return schedule.Entry{
		ID:           id,
		UserID:       "user-1",
		Title:        "Title " + id,
		Category:     schedule.CategoryOther,
		Start:        start,
		AlarmEnabled: true,
	}
}

type fakePlayer struct {
	mu      sync.Mutex
	next    Handle
	played  []string
	stopped []Handle
	fail    bool
}

func (p *fakePlayer) Play(ref string, opts PlayOptions) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return 0, errors.New("no audio device")
	}
	p.next++
	p.played = append(p.played, ref)
	return p.next, nil
}

func (p *fakePlayer) Stop(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = append(p.stopped, h)
	return nil
}

type harness struct {
	clock  *testutil.FakeClock
	player *fakePlayer
	sched  *Scheduler

	mu   sync.Mutex
	acts []Activation
}

func newHarness(t *testing.T, now time.Time, entries ...schedule.Entry) *harness {
	t.Helper()
	h := &harness{clock: testutil.NewFakeClock(now), player: &fakePlayer{}}
	h.sched = NewScheduler(&staticView{entries: entries}, h.player,
		WithClock(h.clock),
		WithDefaultSound("chime.wav"),
		WithHandler(func(a Activation) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.acts = append(h.acts, a)
		}),
	)
	h.sched.Start()
	t.Cleanup(h.sched.Close)
	return h
}

func (h *harness) activations() []Activation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Activation(nil), h.acts...)
}

func ids(acts []Activation) []string {
	var out []string
	for _, a := range acts {
		out = append(out, a.EntryID)
	}
	return out
}

func TestScheduler_FiresExactlyOnceAcrossTicks(t *testing.T) {
	h := newHarness(t, clock(9, 59, 30), alarmed("wake", clock(10, 0, 0)))

	assert.Empty(t, h.sched.Tick())

	h.clock.Set(clock(10, 0, 0))
	fired := h.sched.Tick()
	require.Len(t, fired, 1)
	assert.Equal(t, "wake", fired[0].EntryID)
	assert.Equal(t, clock(10, 0, 0), fired[0].Start)

	h.clock.Set(clock(10, 0, 15))
	assert.Empty(t, h.sched.Tick())

	assert.Len(t, h.activations(), 1)
	assert.Equal(t, []string{"wake"}, h.sched.Triggered())
}

func TestScheduler_NoRetroactiveAlarms(t *testing.T) {
	h := newHarness(t, clock(10, 0, 0), alarmed("past", clock(9, 59, 50)))

	assert.Empty(t, h.sched.Tick())
	assert.Equal(t, []string{"past"}, h.sched.Triggered())
}

func TestScheduler_StartingExactlyNowStillFires(t *testing.T) {
	h := newHarness(t, clock(10, 0, 0), alarmed("now", clock(10, 0, 0)))

	assert.Empty(t, h.sched.Triggered())
	fired := h.sched.Tick()
	require.Len(t, fired, 1)
	assert.Equal(t, "now", fired[0].EntryID)
}

func TestScheduler_ToleranceWindow(t *testing.T) {
	h := newHarness(t, clock(9, 0, 0), alarmed("late", clock(10, 0, 0)))

	h.clock.Set(clock(10, 1, 0))
	assert.Empty(t, h.sched.Tick(), "start+tolerance is outside the window")
}

func TestScheduler_IgnoresDisabledAlarms(t *testing.T) {
	quiet := alarmed("quiet", clock(10, 0, 0))
	quiet.AlarmEnabled = false
	h := newHarness(t, clock(9, 0, 0), quiet)

	h.clock.Set(clock(10, 0, 10))
	assert.Empty(t, h.sched.Tick())
}

func TestScheduler_SimultaneousMatchesQueueInStartOrder(t *testing.T) {
	h := newHarness(t, clock(9, 0, 0),
		alarmed("b", clock(10, 0, 0)),
		alarmed("a", clock(10, 0, 0)),
		alarmed("c", clock(9, 59, 45)),
	)

	h.clock.Set(clock(10, 0, 10))
	fired := h.sched.Tick()
	assert.Equal(t, []string{"c", "a", "b"}, ids(fired))

	act, ok := h.sched.Active()
	require.True(t, ok)
	assert.Equal(t, "c", act.EntryID)
	assert.Equal(t, []string{"a", "b"}, ids(h.sched.Queued()))
	assert.Len(t, h.player.played, 1, "only the active alarm plays")

	require.NoError(t, h.sched.Dismiss("c"))
	act, _ = h.sched.Active()
	assert.Equal(t, "a", act.EntryID)
	assert.Len(t, h.player.played, 2)
	assert.Equal(t, []Handle{1}, h.player.stopped)

	require.NoError(t, h.sched.Dismiss("b"))
	assert.Empty(t, h.sched.Queued())

	require.NoError(t, h.sched.Dismiss("a"))
	_, ok = h.sched.Active()
	assert.False(t, ok)

	h.clock.Advance(10 * time.Second)
	assert.Empty(t, h.sched.Tick(), "dismissed alarms never re-fire")
}

func TestScheduler_SnoozeReactivates(t *testing.T) {
	h := newHarness(t, clock(9, 0, 0), alarmed("wake", clock(10, 0, 0)))
	h.clock.Set(clock(10, 0, 0))
	h.sched.Tick()

	require.NoError(t, h.sched.Snooze("wake", 5))
	_, ok := h.sched.Active()
	assert.False(t, ok)
	assert.Equal(t, []Handle{1}, h.player.stopped)

	h.clock.Advance(4 * time.Minute)
	assert.Len(t, h.activations(), 1)

	h.clock.Advance(time.Minute)
	acts := h.activations()
	require.Len(t, acts, 2)
	assert.True(t, acts[1].Snoozed)
	assert.Equal(t, clock(10, 5, 0), acts[1].At)

	act, ok := h.sched.Active()
	require.True(t, ok)
	assert.Equal(t, "wake", act.EntryID)
	assert.Len(t, h.player.played, 2)

	assert.Empty(t, h.sched.Tick(), "a snoozed entry stays triggered")
}

func TestScheduler_SnoozeQueuesBehindActive(t *testing.T) {
	h := newHarness(t, clock(9, 0, 0),
		alarmed("first", clock(10, 0, 0)),
		alarmed("second", clock(10, 0, 0)),
	)
	h.clock.Set(clock(10, 0, 0))
	h.sched.Tick()

	require.NoError(t, h.sched.Snooze("first", 1))
	act, _ := h.sched.Active()
	assert.Equal(t, "second", act.EntryID)

	h.clock.Advance(time.Minute)
	assert.Equal(t, []string{"first"}, ids(h.sched.Queued()))
}

func TestScheduler_SoundFailureStillActivates(t *testing.T) {
	h := newHarness(t, clock(9, 0, 0), alarmed("wake", clock(10, 0, 0)))
	h.player.fail = true

	h.clock.Set(clock(10, 0, 0))
	fired := h.sched.Tick()
	require.Len(t, fired, 1)
	assert.Len(t, h.activations(), 1)

	_, ok := h.sched.Active()
	assert.True(t, ok)
	require.NoError(t, h.sched.Dismiss("wake"))
	assert.Empty(t, h.player.stopped, "nothing was playing")
}

func TestScheduler_SoundFallsBackToDefault(t *testing.T) {
	custom := alarmed("custom", clock(10, 0, 0))
	custom.Sound = "bell.wav"
	h := newHarness(t, clock(9, 0, 0), custom, alarmed("plain", clock(10, 0, 0)))

	h.clock.Set(clock(10, 0, 0))
	fired := h.sched.Tick()
	require.Len(t, fired, 2)
	assert.Equal(t, "bell.wav", fired[0].Sound)
	assert.Equal(t, "chime.wav", fired[1].Sound)
}

func TestScheduler_UnknownAlarm(t *testing.T) {
	h := newHarness(t, clock(9, 0, 0))

	assert.ErrorIs(t, h.sched.Dismiss("nope"), ErrNoAlarm)
	assert.ErrorIs(t, h.sched.Snooze("nope", 5), ErrNoAlarm)
	assert.Error(t, h.sched.Snooze("nope", 0))
}

func TestScheduler_CloseCancelsSnoozes(t *testing.T) {
	h := newHarness(t, clock(9, 0, 0), alarmed("wake", clock(10, 0, 0)))
	h.clock.Set(clock(10, 0, 0))
	h.sched.Tick()
	require.NoError(t, h.sched.Snooze("wake", 5))

	h.sched.Close()
	h.clock.Advance(10 * time.Minute)
	assert.Len(t, h.activations(), 1)
}

func TestScheduler_Run(t *testing.T) {
	fake := testutil.NewFakeClock(clock(9, 0, 0))
	view := &staticView{entries: []schedule.Entry{alarmed("wake", clock(10, 0, 0))}}

	jobRan := make(chan struct{}, 1)
	fired := make(chan Activation, 1)
	s := NewScheduler(view, nil,
		WithClock(fake),
		WithTickInterval(time.Second),
		WithJob("@every 1s", func() {
			select {
			case jobRan <- struct{}{}:
			default:
			}
		}),
		WithHandler(func(a Activation) { fired <- a }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-jobRan:
	case <-time.After(5 * time.Second):
		t.Fatal("cron job never ran")
	}

	fake.Set(clock(10, 0, 5))
	select {
	case a := <-fired:
		assert.Equal(t, "wake", a.EntryID)
	case <-time.After(5 * time.Second):
		t.Fatal("tick never fired the alarm")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_RunRejectsBadJobSpec(t *testing.T) {
	s := NewScheduler(&staticView{}, nil, WithJob("not a spec", func() {}))
	err := s.Run(context.Background())
	assert.Error(t, err)
}
