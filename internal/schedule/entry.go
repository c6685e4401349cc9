package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalid is wrapped by every validation failure in this package.
var ErrInvalid = errors.New("invalid")

// Category tags an entry for grouping and coloring. It has no effect on
// scheduling behavior.
type Category string

const (
	CategoryRoutine  Category = "routine"
	CategoryWork     Category = "work"
	CategoryExercise Category = "exercise"
	CategoryMeal     Category = "meal"
	CategoryFamily   Category = "family"
	CategoryRest     Category = "rest"
	CategoryOther    Category = "other"
)

// Categories lists the closed set of categories in display order.
var Categories = []Category{
	CategoryRoutine,
	CategoryWork,
	CategoryExercise,
	CategoryMeal,
	CategoryFamily,
	CategoryRest,
	CategoryOther,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory parses a category name. The empty string maps to
// CategoryOther.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryOther, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalid, s)
	}
	return c, nil
}

// Entry is a scheduled activity owned by a single user.
type Entry struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Category     Category   `json:"category"`
	Start        time.Time  `json:"start"`
	End          *time.Time `json:"end,omitempty"`
	AlarmEnabled bool       `json:"alarm_enabled"`
	Sound        string     `json:"sound,omitempty"`
	Completed    bool       `json:"completed"`
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	if e.End != nil {
		end := *e.End
		e.End = &end
	}
	return e
}

// Timing returns the entry's current start and end.
func (e Entry) Timing() Timing {
	return Timing{Start: e.Start, End: cloneTime(e.End)}
}

// WithTiming returns a copy of e carrying t.
func (e Entry) WithTiming(t Timing) Entry {
	e = e.Clone()
	e.Start = t.Start
	e.End = cloneTime(t.End)
	return e
}

// Validate checks the entry invariants: a non-empty title, a known category,
// a start time and an end that is not before the start.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: entry title is empty", ErrInvalid)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, e.Category)
	}
	return e.Timing().Validate()
}

// Equal reports whether e and o describe the same entry. Timestamps are
// compared with time.Time.Equal so location differences do not matter.
func (e Entry) Equal(o Entry) bool {
	return e.ID == o.ID &&
		e.UserID == o.UserID &&
		e.Title == o.Title &&
		e.Category == o.Category &&
		e.AlarmEnabled == o.AlarmEnabled &&
		e.Sound == o.Sound &&
		e.Completed == o.Completed &&
		e.Timing().Equal(o.Timing())
}

// Timing is the mutable time span of an entry.
type Timing struct {
	Start time.Time
	End   *time.Time
}

// Validate rejects a zero start and an end earlier than the start.
func (t Timing) Validate() error {
	if t.Start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalid)
	}
	if t.End != nil && t.End.Before(t.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalid,
			t.End.Format(time.RFC3339), t.Start.Format(time.RFC3339))
	}
	return nil
}

// Equal compares two timings instant by instant.
func (t Timing) Equal(o Timing) bool {
	if !t.Start.Equal(o.Start) {
		return false
	}
	if t.End == nil || o.End == nil {
		return t.End == nil && o.End == nil
	}
	return t.End.Equal(*o.End)
}

// Range is a half-open interval [From, To). A zero bound is unbounded on
// that side, so the zero Range matches every instant.
type Range struct {
	From time.Time
	To   time.Time
}

// DayRange returns the range covering the calendar day of date.
func DayRange(date time.Time) Range {
	d := Date(date)
	return Range{From: d, To: d.AddDate(0, 0, 1)}
}

// Contains reports whether t falls inside r.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// Date truncates t to midnight in t's own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsDate reports whether t has no time-of-day component.
func IsDate(t time.Time) bool {
	return !t.IsZero() && t.Equal(Date(t))
}

// SameDay reports whether a and b fall on the same calendar day in a's
// location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SortEntries orders entries by start time, breaking ties by id.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Start.Equal(entries[j].Start) {
			return entries[i].Start.Before(entries[j].Start)
		}
		return entries[i].ID < entries[j].ID
	})
}

// CloneEntries deep-copies a slice of entries.
func CloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// NormalizeName trims s and converts it to Unicode NFC so that visually
// identical template names and titles compare equal.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
