package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence_StrictlyAfterToday(t *testing.T) {
	// 2024-01-01 is a Monday.
	monday := date(2024, 1, 1)

	assert.Equal(t, date(2024, 1, 8), NextOccurrence(time.Monday, Weekly, nil, monday))
	assert.Equal(t, date(2024, 1, 2), NextOccurrence(time.Tuesday, Weekly, nil, monday))
	assert.Equal(t, date(2024, 1, 7), NextOccurrence(time.Sunday, Weekly, nil, monday))
}

func TestNextOccurrence_IgnoresTimeOfDay(t *testing.T) {
	evening := time.Date(2024, 1, 1, 22, 45, 0, 0, time.UTC)
	assert.Equal(t, date(2024, 1, 3), NextOccurrence(time.Wednesday, Weekly, nil, evening))
}

func TestNextOccurrence_AdvancesAfterRecentLast(t *testing.T) {
	sunday := date(2023, 12, 31)
	last := date(2024, 1, 1)

	tests := []struct {
		freq Frequency
		want time.Time
	}{
		{Weekly, date(2024, 1, 8)},
		{BiWeekly, date(2024, 1, 15)},
		{Monthly, date(2024, 2, 1)},
		{Frequency("daily"), date(2024, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			assert.Equal(t, tt.want, NextOccurrence(time.Monday, tt.freq, &last, sunday))
		})
	}
}

func TestNextOccurrence_LastLongAgoDoesNotAdvance(t *testing.T) {
	last := date(2023, 12, 18)
	got := NextOccurrence(time.Monday, Weekly, &last, date(2023, 12, 31))
	assert.Equal(t, date(2024, 1, 1), got)
}

func TestNextOccurrence_ExactlySevenDaysIsEnough(t *testing.T) {
	last := date(2023, 12, 25)
	got := NextOccurrence(time.Monday, BiWeekly, &last, date(2023, 12, 31))
	assert.Equal(t, date(2024, 1, 1), got)
}

func TestNextOccurrence_KeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	today := time.Date(2024, 3, 8, 9, 0, 0, 0, loc)
	got := NextOccurrence(time.Monday, Weekly, nil, today)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"monday": time.Monday,
		" Tue ":  time.Tuesday,
		"SUNDAY": time.Sunday,
		"sat":    time.Saturday,
	} {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseWeekday("mo")
	assert.Error(t, err)
	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency("Weekly")
	require.NoError(t, err)
	assert.Equal(t, Weekly, f)
	assert.True(t, f.Known())

	f, err = ParseFrequency("biweekly")
	require.NoError(t, err)
	assert.Equal(t, BiWeekly, f)

	f, err = ParseFrequency("quarterly")
	require.NoError(t, err)
	assert.False(t, f.Known())

	_, err = ParseFrequency(" ")
	assert.Error(t, err)
}

func TestNextWeekday_EveryDayAcrossYearEnd(t *testing.T) {
	// 2023-12-28 is a Thursday.
	thursday := date(2023, 12, 28)
	want := map[time.Weekday]time.Time{
		time.Friday:    date(2023, 12, 29),
		time.Saturday:  date(2023, 12, 30),
		time.Sunday:    date(2023, 12, 31),
		time.Monday:    date(2024, 1, 1),
		time.Tuesday:   date(2024, 1, 2),
		time.Wednesday: date(2024, 1, 3),
		time.Thursday:  date(2024, 1, 4),
	}
	for day, expected := range want {
		t.Run(day.String(), func(t *testing.T) {
			got := nextWeekday(day, thursday)
			assert.Equal(t, expected, got)
			assert.Equal(t, day, got.Weekday())
		})
	}
}
