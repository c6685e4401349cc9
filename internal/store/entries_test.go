package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dayplan/internal/schedule"
)

func TestInsert_AssignsAndKeepsIDs(t *testing.T) {
	s := createTestStore(t, fixedIDs("gen-1"))
	ctx := context.Background()

	end := at(1, 7, 0)
	ids, err := s.Insert(ctx, []schedule.Entry{
		createTestEntry("", "alice", "Wake", at(1, 6, 30), &end),
		createTestEntry("kept", "alice", "Jog", at(1, 7, 0), nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"gen-1", "kept"}, ids)

	got, err := s.Entry(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, "Wake", got.Title)
	assert.Equal(t, schedule.CategoryRoutine, got.Category)
	assert.True(t, got.Start.Equal(at(1, 6, 30)))
	require.NotNil(t, got.End)
	assert.True(t, got.End.Equal(end))

	jog, err := s.Entry(ctx, "kept")
	require.NoError(t, err)
	assert.Nil(t, jog.End)
}

func TestInsert_PartialFailureReturnsPrefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ids, err := s.Insert(ctx, []schedule.Entry{
		createTestEntry("a", "alice", "First", at(1, 8, 0), nil),
		createTestEntry("a", "alice", "Duplicate id", at(1, 9, 0), nil),
		createTestEntry("c", "alice", "Never written", at(1, 10, 0), nil),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate id")
	assert.Equal(t, []string{"a"}, ids)

	all, err := s.QueryByUserAndDateRange(ctx, "alice", schedule.Range{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestQueryByUserAndDateRange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, []schedule.Entry{
		createTestEntry("b", "alice", "Second on day 1", at(1, 9, 0), nil),
		createTestEntry("a", "alice", "First on day 1", at(1, 9, 0), nil),
		createTestEntry("c", "alice", "Day 2", at(2, 0, 0), nil),
		createTestEntry("d", "bob", "Not alice", at(1, 9, 0), nil),
	})
	require.NoError(t, err)

	day1, err := s.QueryByUserAndDateRange(ctx, "alice", schedule.DayRange(at(1, 0, 0)))
	require.NoError(t, err)
	var ids []string
	for _, e := range day1 {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids, "ordered by start then id, day 2 midnight excluded")

	all, err := s.QueryByUserAndDateRange(ctx, "alice", schedule.Range{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.QueryByUserAndDateRange(ctx, "carol", schedule.Range{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestQuery_AppliesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	s := createTestStore(t, WithLocation(tokyo))
	ctx := context.Background()

	_, err = s.Insert(ctx, []schedule.Entry{createTestEntry("a", "alice", "Call", at(1, 23, 0), nil)})
	require.NoError(t, err)

	got, err := s.Entry(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, tokyo, got.Start.Location())
	assert.Equal(t, 8, got.Start.Hour())
	assert.True(t, got.Start.Equal(at(1, 23, 0)))
}

func TestUpdate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.Insert(ctx, []schedule.Entry{createTestEntry("a", "alice", "Standup", at(1, 9, 0), nil)})
	require.NoError(t, err)

	end := at(1, 10, 30)
	require.NoError(t, s.Update(ctx, "a", schedule.Timing{Start: at(1, 10, 0), End: &end}))

	got, err := s.Entry(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(at(1, 10, 0)))
	assert.True(t, got.End.Equal(end))

	err = s.Update(ctx, "missing", schedule.Timing{Start: at(1, 10, 0)})
	assert.ErrorIs(t, err, ErrNotFound)

	bad := at(1, 9, 0)
	err = s.Update(ctx, "a", schedule.Timing{Start: at(1, 10, 0), End: &bad})
	assert.Error(t, err, "CHECK constraint rejects end before start")
}

func TestSetCompleted(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.Insert(ctx, []schedule.Entry{createTestEntry("a", "alice", "Laundry", at(1, 9, 0), nil)})
	require.NoError(t, err)

	require.NoError(t, s.SetCompleted(ctx, "a", true))
	got, err := s.Entry(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Completed)

	assert.ErrorIs(t, s.SetCompleted(ctx, "nope", true), ErrNotFound)
}

func TestDeleteAll_OnlyTouchesOneUser(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.Insert(ctx, []schedule.Entry{
		createTestEntry("a", "alice", "A", at(1, 9, 0), nil),
		createTestEntry("b", "bob", "B", at(1, 9, 0), nil),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAll(ctx, "alice"))

	alice, err := s.QueryByUserAndDateRange(ctx, "alice", schedule.Range{})
	require.NoError(t, err)
	assert.Empty(t, alice)
	bob, err := s.QueryByUserAndDateRange(ctx, "bob", schedule.Range{})
	require.NoError(t, err)
	assert.Len(t, bob, 1)

	_, err = s.Entry(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}
