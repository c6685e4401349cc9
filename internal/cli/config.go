package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/roach88/dayplan/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize configuration",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func configPath(opts *RootOptions) string {
	if opts.ConfigPath != "" {
		return opts.ConfigPath
	}
	return config.DefaultPath
}

func newConfigInitCommand(opts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := homedir.Expand(configPath(opts))
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config path", err)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
			}
			cfg := config.Default()
			if err := config.Save(path, cfg); err != nil {
				return WrapExitError(ExitFailure, "failed to write config", err)
			}
			return opts.formatter(cmd).Success(map[string]string{"path": path}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Wrote %s\n", path)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return opts.formatter(cmd).Success(cfg, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "user: %s\ndatabase: %s\ntemplates_dir: %s\nsounds_dir: %s\ntimezone: %s\ntick_interval: %s\ntolerance: %s\nsnooze_minutes: %d\nhistory_limit: %d\nrefresh: %s\n",
					cfg.User, cfg.Database, cfg.TemplatesDir, cfg.SoundsDir, cfg.Timezone,
					cfg.TickInterval, cfg.Tolerance, cfg.SnoozeMinutes, cfg.HistoryLimit, cfg.Refresh)
				return err
			})
		},
	}
}
