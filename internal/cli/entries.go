package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dayplan/internal/schedule"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Date string
	Days int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the entries for a day",
		Long: `Show the entries scheduled on a day, in start order.

Example:
  dayplan list
  dayplan list --date 2024-01-01 --days 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "first day to show (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&opts.Days, "days", 1, "number of days to show")

	return cmd
}

type dayListing struct {
	Date    string           `json:"date"`
	Entries []schedule.Entry `json:"entries"`
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	s, err := openSession(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	first, err := s.parseDate(opts.Date)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --date", err)
	}
	if opts.Days < 1 {
		return NewExitError(ExitCommandError, "--days must be at least 1")
	}

	days := make([]dayListing, 0, opts.Days)
	for i := 0; i < opts.Days; i++ {
		date := first.AddDate(0, 0, i)
		entries := s.entries.OnDate(date)
		if entries == nil {
			entries = []schedule.Entry{}
		}
		days = append(days, dayListing{Date: date.Format(time.DateOnly), Entries: entries})
	}

	return opts.formatter(cmd).Success(days, func(w io.Writer) error {
		for i, day := range days {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := renderEntries(w, first.AddDate(0, 0, i), day.Entries); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Title    string
	Date     string
	Start    string
	End      string
	Category string
	Alarm    bool
	Sound    string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a single entry",
		Long: `Add one entry outside any template.

Example:
  dayplan add --title "Dentist" --start 14:00 --end 15:00 --category family --alarm
  dayplan add --title "Call mum" --date 2024-01-02 --start 18:30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "entry title (required)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "day for HH:MM times (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start time (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end time (optional)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category (default other)")
	cmd.Flags().BoolVar(&opts.Alarm, "alarm", false, "ring an alarm at the start")
	cmd.Flags().StringVar(&opts.Sound, "sound", "", "alarm sound file")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func runAdd(cmd *cobra.Command, opts *AddOptions) error {
	s, err := openSession(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	day, err := s.parseDate(opts.Date)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --date", err)
	}
	start, end, err := s.parseSpan(opts.Start, opts.End, day)
	if err != nil {
		return err
	}
	category, err := schedule.ParseCategory(opts.Category)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --category", err)
	}

	added, err := s.applier.Add(cmd.Context(), schedule.Entry{
		Title:        opts.Title,
		Category:     category,
		Start:        start,
		End:          end,
		AlarmEnabled: opts.Alarm,
		Sound:        opts.Sound,
	})
	if err != nil {
		return wrapEngineError("add failed", err)
	}

	return opts.formatter(cmd).Success(added[0], func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Added %s %s (%s)\n", span(added[0]), added[0].Title, added[0].ID)
		return err
	})
}

// RescheduleOptions holds flags for the reschedule command.
type RescheduleOptions struct {
	*RootOptions
	Start string
	End   string
}

// NewRescheduleCommand creates the reschedule command.
func NewRescheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RescheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reschedule <entry-id>",
		Short: "Move an entry to a new time",
		Long: `Move an entry to a new start (and optionally end) time.

HH:MM times are taken on the entry's current day.

Example:
  dayplan reschedule 0191d4... --start 09:30 --end 10:15
  dayplan reschedule 0191d4... --start "2024-01-02 08:00"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReschedule(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", "", "new start time (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "new end time (optional)")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func runReschedule(cmd *cobra.Command, opts *RescheduleOptions, entryID string) error {
	s, err := openSession(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	current, ok := s.entries.Get(entryID)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("entry %s not found", entryID))
	}
	start, end, err := s.parseSpan(opts.Start, opts.End, schedule.Date(current.Start))
	if err != nil {
		return err
	}

	ack, err := s.resched.Reschedule(cmd.Context(), entryID, start, end)
	if err != nil {
		return wrapEngineError("reschedule failed", err)
	}
	moved, _ := s.entries.Get(entryID)

	return opts.formatter(cmd).Success(map[string]any{
		"op":    ack.OpID,
		"state": ack.State.String(),
		"entry": moved,
	}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Moved %s to %s\n", moved.Title, span(moved))
		return err
	})
}

func (s *session) parseSpan(startValue, endValue string, day time.Time) (time.Time, *time.Time, error) {
	start, err := s.parseWhen(startValue, day)
	if err != nil {
		return time.Time{}, nil, WrapExitError(ExitCommandError, "invalid --start", err)
	}
	if endValue == "" {
		return start, nil, nil
	}
	end, err := s.parseWhen(endValue, schedule.Date(start))
	if err != nil {
		return time.Time{}, nil, WrapExitError(ExitCommandError, "invalid --end", err)
	}
	return start, &end, nil
}
