package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxTimeOfDay allows template items to run past midnight after reordering
// pushes them forward; On normalizes the overflow into the next day.
const maxTimeOfDay = 48 * 60

// TimeOfDay is a wall-clock offset in minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM". Hours up to 47 are accepted so that a
// template may spill into the following day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("%w: time of day %q is not HH:MM", ErrInvalid, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("%w: time of day %q: bad hour", ErrInvalid, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 {
		return 0, fmt.Errorf("%w: time of day %q: bad minute", ErrInvalid, s)
	}
	if hour < 0 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: time of day %q out of range", ErrInvalid, s)
	}
	t := TimeOfDay(hour*60 + minute)
	if t >= maxTimeOfDay {
		return 0, fmt.Errorf("%w: time of day %q out of range", ErrInvalid, s)
	}
	return t, nil
}

// TimeOfDayOf extracts the wall-clock offset of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Clock builds a TimeOfDay from hour and minute.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// On combines t with the calendar day of date.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, int(t), 0, 0, date.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TemplateItem is one relative block of a template.
type TemplateItem struct {
	Title    string    `json:"title" yaml:"title"`
	Category Category  `json:"category" yaml:"category"`
	Start    TimeOfDay `json:"start" yaml:"start"`
	End      TimeOfDay `json:"end" yaml:"end"`
	Alarm    bool      `json:"alarm,omitempty" yaml:"alarm,omitempty"`
	Sound    string    `json:"sound,omitempty" yaml:"sound,omitempty"`
}

// Duration is the item's length.
func (i TemplateItem) Duration() time.Duration {
	return time.Duration(i.End-i.Start) * time.Minute
}

// EntryOn materializes the item as an entry on date. The returned entry has
// no id; the remote store assigns one on insert.
func (i TemplateItem) EntryOn(date time.Time, userID string) Entry {
	end := i.End.On(date)
	return Entry{
		UserID:       userID,
		Title:        i.Title,
		Category:     i.Category,
		Start:        i.Start.On(date),
		End:          &end,
		AlarmEnabled: i.Alarm,
		Sound:        i.Sound,
	}
}

// Template is a named, ordered list of items that can be stamped onto any
// calendar date.
type Template struct {
	Name  string         `json:"name" yaml:"name"`
	Items []TemplateItem `json:"items" yaml:"items"`
}

// Validate requires at least one item, a title on every item, known
// categories, end >= start per item and times below 48:00.
func (t Template) Validate() error {
	if len(t.Items) == 0 {
		return fmt.Errorf("%w: template %q has no items", ErrInvalid, t.Name)
	}
	for idx, item := range t.Items {
		if strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("%w: template %q item %d has no title", ErrInvalid, t.Name, idx)
		}
		if !item.Category.Valid() {
			return fmt.Errorf("%w: template %q item %d: unknown category %q", ErrInvalid, t.Name, idx, item.Category)
		}
		if item.Start < 0 || item.End >= maxTimeOfDay {
			return fmt.Errorf("%w: template %q item %d (%s) runs to %s, past the last representable time",
				ErrInvalid, t.Name, idx, item.Title, item.End)
		}
		if item.End < item.Start {
			return fmt.Errorf("%w: template %q item %d (%s) ends at %s before it starts at %s",
				ErrInvalid, t.Name, idx, item.Title, item.End, item.Start)
		}
	}
	return nil
}

// TotalDuration sums the durations of all items.
func (t Template) TotalDuration() time.Duration {
	var total time.Duration
	for _, item := range t.Items {
		total += item.Duration()
	}
	return total
}

// Clone deep-copies the template.
func (t Template) Clone() Template {
	items := make([]TemplateItem, len(t.Items))
	copy(items, t.Items)
	return Template{Name: t.Name, Items: items}
}

// Move returns a copy of t with the item at from relocated to to.
//
// Items before the first affected position keep their offsets. From that
// position on, items are laid end to end starting at an anchor: the end of
// the item immediately before the affected block, or the first item's
// original start when the block begins at index 0. Each item keeps its own
// duration, so TotalDuration is unchanged.
func (t Template) Move(from, to int) (Template, error) {
	n := len(t.Items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return Template{}, fmt.Errorf("%w: move %d -> %d outside template of %d items", ErrInvalid, from, to, n)
	}
	out := t.Clone()
	if from == to {
		return out, nil
	}

	moved := out.Items[from]
	rest := append(out.Items[:from:from], out.Items[from+1:]...)
	reordered := make([]TemplateItem, 0, n)
	reordered = append(reordered, rest[:to]...)
	reordered = append(reordered, moved)
	reordered = append(reordered, rest[to:]...)

	first := min(from, to)
	var cursor TimeOfDay
	if first == 0 {
		cursor = t.Items[0].Start
	} else {
		cursor = reordered[first-1].End
	}
	for i := first; i < n; i++ {
		length := reordered[i].End - reordered[i].Start
		reordered[i].Start = cursor
		reordered[i].End = cursor + length
		cursor = reordered[i].End
	}

	out.Items = reordered
	return out, nil
}
