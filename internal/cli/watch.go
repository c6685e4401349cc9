package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dayplan/internal/alarm"
	"github.com/roach88/dayplan/internal/schedule"
	"github.com/roach88/dayplan/internal/sound"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ring alarms as entries start",
		Long: `Run in the foreground and ring the alarm of each entry when it starts.

Alarms that are already past when watch starts never ring. While an alarm
is ringing, type one of these lines on stdin:

  dismiss <entry-id>
  snooze <entry-id> [minutes]

Example:
  dayplan watch
  dayplan watch --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts)
		},
	}

	return cmd
}

func runWatch(cmd *cobra.Command, opts *RootOptions) error {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	player := opts.Player
	if player == nil {
		player = sound.NewPlayer(s.cfg.SoundsDir)
	}

	out := &lockedWriter{w: cmd.OutOrStdout()}
	sched := alarm.NewScheduler(s.entries, player,
		alarm.WithClock(sessionClock{now: s.now}),
		alarm.WithTickInterval(s.cfg.TickInterval),
		alarm.WithTolerance(s.cfg.Tolerance),
		alarm.WithDefaultSound(s.cfg.DefaultSound),
		alarm.WithHandler(func(a alarm.Activation) {
			label := "ALARM"
			if a.Snoozed {
				label = "ALARM (snoozed)"
			}
			fmt.Fprintf(out, "%s %s %s  %s  [%s]\n", label, a.At.Format("15:04:05"), a.Start.Format("15:04"), a.Title, a.EntryID)
		}),
		alarm.WithJob(s.cfg.Refresh, func() {
			if err := s.entries.Load(ctx, s.db, schedule.Range{}); err != nil {
				slog.Warn("failed to refresh entries", "error", err)
			}
		}),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	go readAlarmCommands(ctx, cmd.InOrStdin(), sched, s.cfg.SnoozeMinutes, out)

	fmt.Fprintf(out, "Watching %d entries. Press Ctrl-C to stop.\n", s.entries.Len())
	if err := sched.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "alarm scheduler failed", err)
	}
	slog.Info("alarm scheduler stopped")
	return nil
}

// readAlarmCommands handles "dismiss" and "snooze" lines until in is
// exhausted or ctx is done.
func readAlarmCommands(ctx context.Context, in io.Reader, sched *alarm.Scheduler, snoozeMinutes int, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := handleAlarmCommand(sched, fields, snoozeMinutes); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "ok: %s\n", strings.Join(fields, " "))
	}
}

func handleAlarmCommand(sched *alarm.Scheduler, fields []string, snoozeMinutes int) error {
	switch fields[0] {
	case "dismiss":
		if len(fields) != 2 {
			return fmt.Errorf("usage: dismiss <entry-id>")
		}
		return sched.Dismiss(fields[1])
	case "snooze":
		if len(fields) < 2 || len(fields) > 3 {
			return fmt.Errorf("usage: snooze <entry-id> [minutes]")
		}
		minutes := snoozeMinutes
		if len(fields) == 3 {
			m, err := strconv.Atoi(fields[2])
			if err != nil {
				return fmt.Errorf("snooze minutes %q: %w", fields[2], err)
			}
			minutes = m
		}
		return sched.Snooze(fields[1], minutes)
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

// sessionClock reads the session's (possibly overridden) wall clock and
// uses real timers for snoozes.
type sessionClock struct {
	now func() time.Time
}

func (c sessionClock) Now() time.Time { return c.now() }

func (sessionClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
