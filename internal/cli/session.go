package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/dayplan/internal/config"
	"github.com/roach88/dayplan/internal/engine"
	"github.com/roach88/dayplan/internal/schedule"
	"github.com/roach88/dayplan/internal/store"
	"github.com/roach88/dayplan/internal/templates"
)

// session wires one user's engine components for a single command.
type session struct {
	cfg       config.Config
	loc       *time.Location
	db        *store.Store
	templates *templates.Store
	entries   *engine.EntryStore
	history   *engine.History
	applier   *engine.Applier
	resched   *engine.Rescheduler
	now       func() time.Time
}

func loadConfig(opts *RootOptions) (config.Config, *time.Location, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	cfg, err = cfg.Expanded()
	if err != nil {
		return config.Config{}, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return config.Config{}, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, loc, nil
}

// openSession loads config, opens the database and template store, loads
// the user's entries and restores the undo history.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg, loc, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o700); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create data directory", err)
	}
	slog.Debug("opening database", "path", cfg.Database)

	storeOpts := []store.Option{store.WithLocation(loc)}
	if opts.IDs != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDs))
	}
	db, err := store.Open(cfg.Database, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	s := &session{
		cfg:       cfg,
		loc:       loc,
		db:        db,
		templates: templates.Open(cfg.TemplatesDir),
		entries:   engine.NewEntryStore(cfg.User),
		now:       func() time.Time { return opts.now().In(loc) },
	}

	// The ledger replays the full entry set, so the whole set is loaded.
	if err := s.entries.Load(ctx, db, schedule.Range{}); err != nil {
		s.Close()
		return nil, WrapExitError(ExitFailure, "failed to load entries", err)
	}

	s.history = engine.NewHistory(s.entries, db,
		engine.WithLedgerStore(db),
		engine.WithHistoryLimit(cfg.HistoryLimit),
		engine.WithHistoryNow(s.now))
	if err := s.history.Open(ctx); err != nil {
		s.Close()
		return nil, WrapExitError(ExitFailure, "failed to open history", err)
	}

	s.applier = engine.NewApplier(s.entries, db, s.templates)

	reschedOpts := []engine.RescheduleOption{engine.WithRescheduleNow(s.now)}
	if opts.IDs != nil {
		reschedOpts = append(reschedOpts, engine.WithIDGenerator(opts.IDs))
	}
	s.resched = engine.NewRescheduler(s.entries, db, reschedOpts...)

	return s, nil
}

// Close waits for in-flight reschedules and releases the database.
func (s *session) Close() {
	if s.resched != nil {
		s.resched.Wait()
	}
	if s.history != nil {
		s.history.Close()
	}
	if err := s.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func (s *session) today() time.Time {
	return schedule.Date(s.now())
}

// parseDate parses YYYY-MM-DD in the session location. The empty string
// means today.
func (s *session) parseDate(value string) (time.Time, error) {
	return parseDate(value, s.loc, s.today())
}

// parseWhen accepts "YYYY-MM-DD HH:MM", "YYYY-MM-DDTHH:MM" or "HH:MM" (on
// day).
func (s *session) parseWhen(value string, day time.Time) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, value, s.loc); err == nil {
			return t, nil
		}
	}
	tod, err := schedule.ParseTimeOfDay(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: want HH:MM or YYYY-MM-DD HH:MM", value)
	}
	return tod.On(day), nil
}

func parseDate(value string, loc *time.Location, today time.Time) (time.Time, error) {
	if value == "" {
		return today, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", value)
	}
	return t, nil
}
