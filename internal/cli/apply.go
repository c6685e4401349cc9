package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dayplan/internal/templates"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Date string
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply [template]",
		Short: "Stamp a template onto a day",
		Long: `Create entries on a day from a template. Items whose start time is
already taken on that day are skipped, so applying twice is harmless.

Without a template name the default template is used.

Example:
  dayplan apply --date 2024-01-01
  dayplan apply weekend --date 2024-01-06`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runApply(cmd, opts, name)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "day to fill (YYYY-MM-DD, default today)")

	return cmd
}

func runApply(cmd *cobra.Command, opts *ApplyOptions, name string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	date, err := s.parseDate(opts.Date)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --date", err)
	}
	if name == "" {
		name, err = s.templates.DefaultName(ctx, s.cfg.User)
		if err != nil {
			return WrapExitError(ExitCommandError, "no template given and no default set", err)
		}
	}

	result, err := s.applier.ApplyNamed(ctx, name, date)
	if err != nil {
		if errors.Is(err, templates.ErrNotFound) {
			return WrapExitError(ExitCommandError, "apply failed", err)
		}
		if result != nil && len(result.Inserted) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d entries were created before the failure\n", len(result.Inserted))
		}
		return wrapEngineError("apply failed", err)
	}

	return opts.formatter(cmd).Success(result, func(w io.Writer) error {
		day := result.Date.Format("2006-01-02")
		if result.NoOp {
			_, err := fmt.Fprintf(w, "%s already applied to %s, nothing to do\n", name, day)
			return err
		}
		fmt.Fprintf(w, "Applied %s to %s: %d added", name, day, len(result.Inserted))
		if len(result.Skipped) > 0 {
			fmt.Fprintf(w, ", skipped %s", strings.Join(result.Skipped, ", "))
		}
		_, err := fmt.Fprintln(w)
		return err
	})
}
