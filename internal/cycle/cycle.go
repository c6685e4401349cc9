// Package cycle computes the next date of a recurring weekly chore, such as a
// garbage or recycling collection day.
package cycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency is how often a cycle repeats. Only Weekly, BiWeekly and Monthly
// change the result of NextOccurrence; any other value is accepted and
// behaves like a plain next-weekday lookup.
type Frequency string

const (
	Weekly   Frequency = "weekly"
	BiWeekly Frequency = "bi-weekly"
	Monthly  Frequency = "monthly"
)

// minGapDays is the shortest allowed distance between a recorded occurrence
// and the next one.
const minGapDays = 7

// ParseFrequency normalizes s. "biweekly" is accepted for BiWeekly.
func ParseFrequency(s string) (Frequency, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return "", fmt.Errorf("frequency is empty")
	case "biweekly":
		return BiWeekly, nil
	}
	return Frequency(s), nil
}

// Known reports whether f is one of the frequencies with its own advance
// rule.
func (f Frequency) Known() bool {
	switch f {
	case Weekly, BiWeekly, Monthly:
		return true
	}
	return false
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// NextOccurrence returns the first date falling on day strictly after today.
// If last is set and that date is less than seven days after *last, it is
// pushed out by one cycle of freq so that marking a chore done does not make
// it immediately due again.
//
// Dates are midnight in today's location.
func NextOccurrence(day time.Weekday, freq Frequency, last *time.Time, today time.Time) time.Time {
	next := nextWeekday(day, today)
	if last == nil {
		return next
	}

	lastDay := midnight(last.In(today.Location()))
	if !next.Before(lastDay.AddDate(0, 0, minGapDays)) {
		return next
	}

	switch freq {
	case Weekly:
		return next.AddDate(0, 0, 7)
	case BiWeekly:
		return next.AddDate(0, 0, 14)
	case Monthly:
		return next.AddDate(0, 1, 0)
	default:
		return next
	}
}

func nextWeekday(day time.Weekday, today time.Time) time.Time {
	from := midnight(today).AddDate(0, 0, 1)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   from,
		Byweekday: []rrule.Weekday{toRRule(day)},
		Count:     1,
	})
	if err != nil {
		panic(fmt.Sprintf("cycle: weekly rule for %s: %v", day, err))
	}
	all := r.All()
	if len(all) != 1 {
		panic(fmt.Sprintf("cycle: weekly rule for %s yielded %d dates", day, len(all)))
	}
	return midnight(all[0].In(today.Location()))
}

func toRRule(d time.Weekday) rrule.Weekday {
	switch d {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
