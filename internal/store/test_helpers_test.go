package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/dayplan/internal/engine"
	"github.com/roach88/dayplan/internal/schedule"
)

// createTestStore opens a fresh database in a temp dir, reading times back
// in UTC.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithLocation(time.UTC)}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedIDs(ids ...string) Option {
	return WithIDGenerator(engine.NewFixedGenerator(ids...))
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

// createTestEntry builds an entry with the fields the schema requires.
func createTestEntry(id, user, title string, start time.Time, end *time.Time) schedule.Entry {
	return schedule.Entry{
		ID:       id,
		UserID:   user,
		Title:    title,
		Category: schedule.CategoryRoutine,
		Start:    start,
		End:      end,
	}
}
