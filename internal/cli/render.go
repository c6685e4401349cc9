package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gosuri/uitable"

	"github.com/roach88/dayplan/internal/schedule"
)

// categoryColors assigns an ANSI 256 color to each category.
var categoryColors = map[schedule.Category]string{
	schedule.CategoryRoutine:  "111",
	schedule.CategoryWork:     "214",
	schedule.CategoryExercise: "42",
	schedule.CategoryMeal:     "180",
	schedule.CategoryFamily:   "212",
	schedule.CategoryRest:     "147",
	schedule.CategoryOther:    "245",
}

// theme holds the styles for one output writer. The renderer detects
// whether w is a terminal, so piped output stays free of escape codes.
type theme struct {
	header   lipgloss.Style
	done     lipgloss.Style
	category map[schedule.Category]lipgloss.Style
}

func newTheme(w io.Writer) theme {
	r := lipgloss.NewRenderer(w)
	t := theme{
		header:   r.NewStyle().Bold(true),
		done:     r.NewStyle().Faint(true).Strikethrough(true),
		category: make(map[schedule.Category]lipgloss.Style, len(categoryColors)),
	}
	for c, color := range categoryColors {
		t.category[c] = r.NewStyle().Foreground(lipgloss.Color(color))
	}
	return t
}

// renderEntries prints one day's entries as a table.
func renderEntries(w io.Writer, date time.Time, entries []schedule.Entry) error {
	th := newTheme(w)
	if _, err := fmt.Fprintln(w, th.header.Render(date.Format("Monday, 2006-01-02"))); err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "  no entries")
		return err
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(th.header.Render("TIME"), th.header.Render("TITLE"), th.header.Render("CATEGORY"), th.header.Render("ALARM"), th.header.Render("ID"))
	for _, e := range entries {
		title := e.Title
		if e.Completed {
			title = th.done.Render(title)
		}
		tbl.AddRow(span(e), title, th.category[e.Category].Render(string(e.Category)), alarmLabel(e.AlarmEnabled, e.Sound), e.ID)
	}
	_, err := fmt.Fprintln(w, tbl)
	return err
}

func span(e schedule.Entry) string {
	start := e.Start.Format("15:04")
	if e.End == nil {
		return start
	}
	end := e.End.Format("15:04")
	if !schedule.SameDay(e.Start, *e.End) {
		end += "+1"
	}
	return start + "-" + end
}

func alarmLabel(enabled bool, sound string) string {
	switch {
	case !enabled:
		return ""
	case sound == "":
		return "on"
	default:
		return sound
	}
}

// renderTemplate prints a template in a fixed-width layout.
func renderTemplate(w io.Writer, t schedule.Template, isDefault bool) error {
	var b strings.Builder
	b.WriteString(t.Name)
	if isDefault {
		b.WriteString(" (default)")
	}
	fmt.Fprintf(&b, ": %d items, %s\n", len(t.Items), hoursMinutes(t.TotalDuration()))

	width := 0
	for _, item := range t.Items {
		width = max(width, len([]rune(item.Title)))
	}
	for i, item := range t.Items {
		line := fmt.Sprintf("%2d. %s-%s  %-*s  %s", i+1, item.Start, item.End, width, item.Title, item.Category)
		if item.Alarm {
			line += "  alarm " + alarmLabel(true, item.Sound)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func hoursMinutes(d time.Duration) string {
	m := int(d / time.Minute)
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}
