package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dayplan/internal/engine"
)

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return newStepCommand(rootOpts, "undo", "Revert the last change", (*engine.History).Undo)
}

// NewRedoCommand creates the redo command.
func NewRedoCommand(rootOpts *RootOptions) *cobra.Command {
	return newStepCommand(rootOpts, "redo", "Reapply the last undone change", (*engine.History).Redo)
}

type stepFunc func(*engine.History, context.Context) (engine.StepResult, error)

func newStepCommand(opts *RootOptions, use, short string, step stepFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := step(s.history, cmd.Context())
			if err != nil {
				return wrapEngineError(use+" failed", err)
			}
			return opts.formatter(cmd).Success(res, func(w io.Writer) error {
				if res.NoOp {
					_, err := fmt.Fprintln(w, res.Message)
					return err
				}
				_, err := fmt.Fprintf(w, "%s: %d added, %d removed, %d changed (position %d of %d)\n",
					use, len(res.Diff.Added), len(res.Diff.Removed), len(res.Diff.Changed),
					res.Cursor+1, s.history.Len())
				return err
			})
		},
	}
}
