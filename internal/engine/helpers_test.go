package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dayplan/internal/schedule"
	"github.com/roach88/dayplan/internal/testutil"
)

const testUser = "user-1"

var newYear = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func wakeJog() schedule.Template {
	return schedule.Template{
		Name: "morning",
		Items: []schedule.TemplateItem{
			{Title: "Wake", Category: schedule.CategoryRoutine, Start: schedule.Clock(6, 30), End: schedule.Clock(7, 0), Alarm: true},
			{Title: "Jog", Category: schedule.CategoryExercise, Start: schedule.Clock(7, 0), End: schedule.Clock(8, 0)},
		},
	}
}

func at(hour, minute int) time.Time {
	return newYear.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func ptr(t time.Time) *time.Time { return &t }

func entry(id, title string, start time.Time, end *time.Time) schedule.Entry {
	return schedule.Entry{
		ID:       id,
		UserID:   testUser,
		Title:    title,
		Category: schedule.CategoryOther,
		Start:    start,
		End:      end,
	}
}

type fixture struct {
	remote  *testutil.MemoryRemote
	store   *EntryStore
	history *History
	applier *Applier
	resched *Rescheduler
}

func newFixture(t *testing.T, seed ...schedule.Entry) *fixture {
	t.Helper()
	ctx := context.Background()

	remote := testutil.NewMemoryRemote(seed...)
	store := NewEntryStore(testUser)
	require.NoError(t, store.Load(ctx, remote, schedule.Range{}))

	history := NewHistory(store, remote)
	require.NoError(t, history.Open(ctx))
	t.Cleanup(history.Close)

	return &fixture{
		remote:  remote,
		store:   store,
		history: history,
		applier: NewApplier(store, remote, testutil.NewMemoryTemplates(testUser, wakeJog())),
		resched: NewRescheduler(store, remote),
	}
}

// recorder collects published changes.
type recorder struct {
	mu    sync.Mutex
	kinds []ChangeKind
	last  Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, c.Kind)
	r.last = c
}

func (r *recorder) seen() []ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChangeKind(nil), r.kinds...)
}

func sameEntries(t *testing.T, want, got []schedule.Entry) {
	t.Helper()
	snap := schedule.NewSnapshot(0, time.Time{}, want)
	require.True(t, snap.SameEntries(got), "entry sets differ:\nwant %+v\ngot  %+v", want, got)
}
