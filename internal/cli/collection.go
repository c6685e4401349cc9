package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/roach88/dayplan/internal/cycle"
	"github.com/roach88/dayplan/internal/store"
)

// NewCollectionCommand creates the collection command group. A collection
// is a recurring chore on a fixed weekday, such as bins or recycling.
func NewCollectionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Track recurring weekday chores",
	}

	cmd.AddCommand(newCollectionAddCommand(rootOpts))
	cmd.AddCommand(newCollectionListCommand(rootOpts))
	cmd.AddCommand(newCollectionDoneCommand(rootOpts))
	cmd.AddCommand(newCollectionNextCommand(rootOpts))

	return cmd
}

// collectionView is a collection with its next date resolved.
type collectionView struct {
	store.Collection
	Next string `json:"next"`
}

func viewCollection(c store.Collection, today time.Time) collectionView {
	return collectionView{Collection: c, Next: c.Next(today).Format(time.DateOnly)}
}

func collectionError(message string, err error) *ExitError {
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

func newCollectionAddCommand(opts *RootOptions) *cobra.Command {
	var (
		day       string
		frequency string
	)
	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Add a collection",
		Long: `Add a recurring chore.

Example:
  dayplan collection add recycling --day monday --frequency bi-weekly`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weekday, err := cycle.ParseWeekday(day)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --day", err)
			}
			freq, err := cycle.ParseFrequency(frequency)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --frequency", err)
			}

			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := s.db.AddCollection(cmd.Context(), store.Collection{
				UserID:    s.cfg.User,
				Label:     args[0],
				Weekday:   weekday,
				Frequency: freq,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "failed to add collection", err)
			}
			v := viewCollection(c, s.today())
			return opts.formatter(cmd).Success(v, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Added %s (%s, %s), next %s\n", v.Label, v.Weekday, v.Frequency, v.Next)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "weekday (required)")
	cmd.Flags().StringVar(&frequency, "frequency", string(cycle.Weekly), "weekly, bi-weekly or monthly")
	_ = cmd.MarkFlagRequired("day")
	return cmd
}

func newCollectionListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections with their next date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			all, err := s.db.Collections(cmd.Context(), s.cfg.User)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list collections", err)
			}
			views := make([]collectionView, 0, len(all))
			for _, c := range all {
				views = append(views, viewCollection(c, s.today()))
			}
			return opts.formatter(cmd).Success(views, func(w io.Writer) error {
				tbl := uitable.New()
				tbl.Separator = "  "
				tbl.AddRow("LABEL", "DAY", "FREQUENCY", "LAST DONE", "NEXT")
				for _, v := range views {
					last := "-"
					if v.LastDone != nil {
						last = v.LastDone.Format(time.DateOnly)
					}
					tbl.AddRow(v.Label, v.Weekday, v.Frequency, last, v.Next)
				}
				_, err := fmt.Fprintln(w, tbl)
				return err
			})
		},
	}
}

func newCollectionDoneCommand(opts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "done <label>",
		Short: "Record a collection as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			at, err := s.parseDate(date)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --date", err)
			}
			c, err := s.db.CollectionByLabel(cmd.Context(), s.cfg.User, args[0])
			if err != nil {
				return collectionError("failed to find collection", err)
			}
			if err := s.db.MarkCollectionDone(cmd.Context(), c.ID, at); err != nil {
				return collectionError("failed to record collection", err)
			}
			c.LastDone = &at
			v := viewCollection(c, s.today())
			return opts.formatter(cmd).Success(v, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s done on %s, next %s\n", v.Label, at.Format(time.DateOnly), v.Next)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day it was done (YYYY-MM-DD, default today)")
	return cmd
}

func newCollectionNextCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next <label>",
		Short: "Show the next date of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := s.db.CollectionByLabel(cmd.Context(), s.cfg.User, args[0])
			if err != nil {
				return collectionError("failed to find collection", err)
			}
			v := viewCollection(c, s.today())
			return opts.formatter(cmd).Success(v, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, v.Next)
				return err
			})
		},
	}
}
