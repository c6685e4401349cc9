package alarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/dayplan/internal/engine"
	"github.com/roach88/dayplan/internal/schedule"
)

const (
	// DefaultTickInterval is how often the entry set is scanned.
	DefaultTickInterval = 30 * time.Second
	// DefaultTolerance is how long after its start an entry can still match.
	DefaultTolerance = 60 * time.Second
)

// ErrNoAlarm is returned by Dismiss and Snooze for an entry that is neither
// active nor queued.
var ErrNoAlarm = errors.New("no alarm for entry")

// Handle identifies one playback started by a Player.
type Handle uint64

// PlayOptions controls playback.
type PlayOptions struct {
	Loop bool
}

// Player plays sounds. Play must not block for the length of the sound.
type Player interface {
	Play(ref string, opts PlayOptions) (Handle, error)
	Stop(h Handle) error
}

// Clock is the time source. AfterFunc returns a func that cancels the timer.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Activation is one alarm going off.
type Activation struct {
	EntryID string
	Title   string
	Start   time.Time
	// Sound is the entry's sound, or the configured default.
	Sound string
	// Snoozed marks a re-activation scheduled by Snooze.
	Snoozed bool
	// At is when the activation fired.
	At time.Time
}

type active struct {
	act     Activation
	handle  Handle
	playing bool
}

type job struct {
	spec string
	fn   func()
}

// Scheduler watches an entry view and raises activations.
type Scheduler struct {
	view         engine.EntryView
	player       Player
	clock        Clock
	tolerance    time.Duration
	interval     time.Duration
	defaultSound string
	handler      func(Activation)
	jobs         []job
	logger       *slog.Logger

	mu        sync.Mutex
	triggered map[string]bool
	current   *active
	queue     []Activation
	snoozes   map[string]func() bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithTolerance sets the match window after an entry's start.
func WithTolerance(d time.Duration) Option {
	return func(s *Scheduler) { s.tolerance = d }
}

// WithTickInterval sets how often Run scans.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithDefaultSound is used for entries without a sound of their own.
func WithDefaultSound(ref string) Option {
	return func(s *Scheduler) { s.defaultSound = ref }
}

// WithHandler receives every activation, in order, outside the scheduler's
// lock.
func WithHandler(fn func(Activation)) Option {
	return func(s *Scheduler) { s.handler = fn }
}

// WithJob runs fn on the cron spec alongside the tick while Run is active.
func WithJob(spec string, fn func()) Option {
	return func(s *Scheduler) { s.jobs = append(s.jobs, job{spec: spec, fn: fn}) }
}

// NewScheduler returns a scheduler over view. player may be nil for silent
// operation. Call Start before the first Tick.
func NewScheduler(view engine.EntryView, player Player, opts ...Option) *Scheduler {
	s := &Scheduler{
		view:      view,
		player:    player,
		clock:     systemClock{},
		tolerance: DefaultTolerance,
		interval:  DefaultTickInterval,
		logger:    slog.Default(),
		triggered: make(map[string]bool),
		snoozes:   make(map[string]func() bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a session. Alarmed entries whose start is already past are
// marked as triggered so they never fire retroactively. An entry starting
// exactly now still fires on the next tick.
func (s *Scheduler) Start() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.triggered = make(map[string]bool)
	for _, e := range s.view.Entries() {
		if e.AlarmEnabled && e.Start.Before(now) {
			s.triggered[e.ID] = true
		}
	}
	s.logger.Debug("alarm session started", "already_past", len(s.triggered))
}

// Tick scans once and returns the new activations in delivery order.
func (s *Scheduler) Tick() []Activation {
	now := s.clock.Now()

	s.mu.Lock()
	var (
		acts []Activation
		play *active
	)
	for _, e := range s.view.Entries() {
		if !s.matches(e, now) {
			continue
		}
		s.triggered[e.ID] = true
		act := s.activation(e, now, false)
		acts = append(acts, act)
		if p := s.enqueueLocked(act); p != nil {
			play = p
		}
	}
	s.mu.Unlock()

	s.deliver(play, acts...)
	return acts
}

func (s *Scheduler) matches(e schedule.Entry, now time.Time) bool {
	if !e.AlarmEnabled || s.triggered[e.ID] {
		return false
	}
	return !now.Before(e.Start) && now.Before(e.Start.Add(s.tolerance))
}

func (s *Scheduler) activation(e schedule.Entry, now time.Time, snoozed bool) Activation {
	sound := e.Sound
	if sound == "" {
		sound = s.defaultSound
	}
	return Activation{
		EntryID: e.ID,
		Title:   e.Title,
		Start:   e.Start,
		Sound:   sound,
		Snoozed: snoozed,
		At:      now,
	}
}

// enqueueLocked makes act active if nothing is, otherwise queues it. It
// returns the new active alarm when one needs its sound started.
func (s *Scheduler) enqueueLocked(act Activation) *active {
	if s.current == nil {
		s.current = &active{act: act}
		return s.current
	}
	s.queue = append(s.queue, act)
	return nil
}

// promoteLocked moves the queue head into the active slot.
func (s *Scheduler) promoteLocked() *active {
	s.current = nil
	if len(s.queue) == 0 {
		return nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	s.current = &active{act: next}
	return s.current
}

// deliver starts sound for a newly active alarm and hands acts to the
// handler.
func (s *Scheduler) deliver(play *active, acts ...Activation) {
	if play != nil {
		s.startSound(play)
	}
	for _, act := range acts {
		s.logger.Info("alarm",
			"entry_id", act.EntryID,
			"title", act.Title,
			"start", act.Start.Format(time.Kitchen),
			"snoozed", act.Snoozed)
		if s.handler != nil {
			s.handler(act)
		}
	}
}

func (s *Scheduler) startSound(a *active) {
	if s.player == nil || a.act.Sound == "" {
		return
	}
	h, err := s.player.Play(a.act.Sound, PlayOptions{Loop: true})
	if err != nil {
		s.logger.Warn("alarm sound failed", "entry_id", a.act.EntryID, "sound", a.act.Sound, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != a {
		// Dismissed while the player was starting.
		s.stopHandle(h, a.act.EntryID)
		return
	}
	a.handle = h
	a.playing = true
}

func (s *Scheduler) stopLocked(a *active) {
	if a == nil || !a.playing {
		return
	}
	a.playing = false
	s.stopHandle(a.handle, a.act.EntryID)
}

func (s *Scheduler) stopHandle(h Handle, entryID string) {
	if err := s.player.Stop(h); err != nil {
		s.logger.Warn("failed to stop alarm sound", "entry_id", entryID, "error", err)
	}
}

// Dismiss silences the alarm for entryID. A queued alarm is dropped from the
// queue. The entry stays triggered and never fires again this session.
func (s *Scheduler) Dismiss(entryID string) error {
	s.mu.Lock()
	act, play, ok := s.removeLocked(entryID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("dismiss %s: %w", entryID, ErrNoAlarm)
	}

	s.logger.Info("alarm dismissed", "entry_id", act.EntryID)
	s.deliver(play)
	return nil
}

// Snooze silences the alarm for entryID and schedules a fresh activation
// after minutes. The re-activation does not consult the triggered set.
func (s *Scheduler) Snooze(entryID string, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("snooze %s: minutes must be positive, got %d", entryID, minutes)
	}

	s.mu.Lock()
	act, play, ok := s.removeLocked(entryID)
	if ok {
		if stop := s.snoozes[entryID]; stop != nil {
			stop()
		}
		s.snoozes[entryID] = s.clock.AfterFunc(time.Duration(minutes)*time.Minute, func() {
			s.fireSnooze(act)
		})
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("snooze %s: %w", entryID, ErrNoAlarm)
	}

	s.logger.Info("alarm snoozed", "entry_id", entryID, "minutes", minutes)
	s.deliver(play)
	return nil
}

func (s *Scheduler) fireSnooze(prev Activation) {
	now := s.clock.Now()

	s.mu.Lock()
	delete(s.snoozes, prev.EntryID)
	var act Activation
	if e, ok := s.view.Get(prev.EntryID); ok {
		act = s.activation(e, now, true)
	} else {
		act = prev
		act.Snoozed = true
		act.At = now
	}
	play := s.enqueueLocked(act)
	s.mu.Unlock()

	s.deliver(play, act)
}

// removeLocked takes entryID out of the active slot or the queue. When it
// was active, its sound is stopped and the next alarm is promoted.
func (s *Scheduler) removeLocked(entryID string) (Activation, *active, bool) {
	if s.current != nil && s.current.act.EntryID == entryID {
		act := s.current.act
		s.stopLocked(s.current)
		return act, s.promoteLocked(), true
	}
	for i, act := range s.queue {
		if act.EntryID == entryID {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			return act, nil, true
		}
	}
	return Activation{}, nil, false
}

// Active returns the alarm currently owning playback.
func (s *Scheduler) Active() (Activation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Activation{}, false
	}
	return s.current.act, true
}

// Queued returns the alarms waiting behind the active one.
func (s *Scheduler) Queued() []Activation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Activation(nil), s.queue...)
}

// Triggered returns the ids that have matched this session, sorted.
func (s *Scheduler) Triggered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.triggered))
	for id := range s.triggered {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run starts a session and ticks every interval until ctx is done. Extra
// jobs registered with WithJob run on their own cron specs.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	for _, j := range s.jobs {
		if _, err := c.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("schedule job %q: %w", j.spec, err)
		}
	}
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.Tick() }))

	s.Start()
	s.Tick()
	c.Start()
	s.logger.Info("alarm scheduler running", "interval", s.interval, "tolerance", s.tolerance)

	<-ctx.Done()
	<-c.Stop().Done()
	s.Close()
	return nil
}

// Close cancels pending snoozes and silences the active alarm.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, stop := range s.snoozes {
		stop()
		delete(s.snoozes, id)
	}
	s.stopLocked(s.current)
	s.current = nil
	s.queue = nil
}
