package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/dayplan/internal/config"
	"github.com/roach88/dayplan/internal/schedule"
	"github.com/roach88/dayplan/internal/templates"
)

// NewTemplateCommand creates the template command group.
func NewTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage day templates",
	}

	cmd.AddCommand(newTemplateImportCommand(rootOpts))
	cmd.AddCommand(newTemplateListCommand(rootOpts))
	cmd.AddCommand(newTemplateShowCommand(rootOpts))
	cmd.AddCommand(newTemplateMoveCommand(rootOpts))
	cmd.AddCommand(newTemplateDefaultCommand(rootOpts))
	cmd.AddCommand(newTemplateDeleteCommand(rootOpts))

	return cmd
}

// templateEnv is the part of a session the template commands need. It
// skips the database so templates can be edited without one.
type templateEnv struct {
	cfg   config.Config
	store *templates.Store
}

func openTemplates(opts *RootOptions) (*templateEnv, error) {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return &templateEnv{cfg: cfg, store: templates.Open(cfg.TemplatesDir)}, nil
}

func (e *templateEnv) isDefault(ctx context.Context, name string) bool {
	def, err := e.store.DefaultName(ctx, e.cfg.User)
	return err == nil && def == name
}

func templateError(message string, err error) *ExitError {
	if errors.Is(err, templates.ErrNotFound) || errors.Is(err, schedule.ErrInvalid) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

func newTemplateImportCommand(opts *RootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a template from a YAML or CUE file",
		Long: `Import a template from a YAML or CUE file, replacing any template with
the same name. The file must match this shape:

  name: weekday
  items:
    - title: Wake
      category: routine
      start: "06:30"
      end: "07:00"
      alarm: true
      sound: bell.wav

Example:
  dayplan template import weekday.yaml
  dayplan template import --name holiday weekday.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openTemplates(opts)
			if err != nil {
				return err
			}
			tmpl, err := LoadTemplateFile(args[0])
			if err != nil {
				var loadErr *LoadError
				if errors.As(err, &loadErr) {
					_ = opts.formatter(cmd).Error(loadErr.Code, loadErr.Error(), nil)
				}
				return WrapExitError(ExitCommandError, "failed to load template", err)
			}
			if name != "" {
				tmpl.Name = schedule.NormalizeName(name)
			}
			if err := env.store.SaveNamedTemplate(cmd.Context(), env.cfg.User, tmpl.Name, tmpl); err != nil {
				return templateError("failed to save template", err)
			}
			return opts.formatter(cmd).Success(tmpl, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Imported %s (%d items)\n", tmpl.Name, len(tmpl.Items))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "store under this name instead of the one in the file")
	return cmd
}

func newTemplateListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List template names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openTemplates(opts)
			if err != nil {
				return err
			}
			names, err := env.store.Names(cmd.Context(), env.cfg.User)
			if err != nil {
				return templateError("failed to list templates", err)
			}
			return opts.formatter(cmd).Success(names, func(w io.Writer) error {
				for _, n := range names {
					marker := "  "
					if env.isDefault(cmd.Context(), n) {
						marker = "* "
					}
					if _, err := fmt.Fprintln(w, marker+n); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newTemplateShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openTemplates(opts)
			if err != nil {
				return err
			}
			tmpl, err := env.store.LoadNamedTemplate(cmd.Context(), env.cfg.User, args[0])
			if err != nil {
				return templateError("failed to load template", err)
			}
			isDefault := env.isDefault(cmd.Context(), tmpl.Name)
			return opts.formatter(cmd).Success(tmpl, func(w io.Writer) error {
				return renderTemplate(w, tmpl, isDefault)
			})
		},
	}
}

func newTemplateMoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <name> <from> <to>",
		Short: "Move a template item to another position",
		Long: `Move the item at position FROM to position TO (both 1-based). Items from
the first affected position onward are laid out back to back, each keeping
its own duration.

Example:
  dayplan template move weekday 3 1`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid FROM position", err)
			}
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid TO position", err)
			}

			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			moved, err := s.applier.MoveItem(cmd.Context(), args[0], from-1, to-1)
			if err != nil {
				if errors.Is(err, templates.ErrNotFound) {
					return WrapExitError(ExitCommandError, "move failed", err)
				}
				return wrapEngineError("move failed", err)
			}
			env := &templateEnv{cfg: s.cfg, store: s.templates}
			isDefault := env.isDefault(cmd.Context(), moved.Name)
			return opts.formatter(cmd).Success(moved, func(w io.Writer) error {
				return renderTemplate(w, moved, isDefault)
			})
		},
	}
}

func newTemplateDefaultCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "default [name]",
		Short: "Show or set the default template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openTemplates(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if len(args) == 1 {
				if err := env.store.SetDefault(ctx, env.cfg.User, args[0]); err != nil {
					return templateError("failed to set default", err)
				}
			}
			name, err := env.store.DefaultName(ctx, env.cfg.User)
			if err != nil {
				return WrapExitError(ExitCommandError, "no default template", err)
			}
			return opts.formatter(cmd).Success(map[string]string{"default": name}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, name)
				return err
			})
		},
	}
}

func newTemplateDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openTemplates(opts)
			if err != nil {
				return err
			}
			if err := env.store.Delete(cmd.Context(), env.cfg.User, args[0]); err != nil {
				return templateError("failed to delete template", err)
			}
			return opts.formatter(cmd).Success(map[string]string{"deleted": args[0]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted %s\n", args[0])
				return err
			})
		},
	}
}
