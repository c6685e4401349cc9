package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/dayplan/internal/schedule"
)

// ApplyResult reports what a template application did.
type ApplyResult struct {
	Date time.Time `json:"date"`
	// Inserted holds the persisted entries, with their store-assigned ids.
	Inserted []schedule.Entry `json:"inserted"`
	// Skipped holds the titles of items whose slot was already occupied.
	Skipped []string `json:"skipped,omitempty"`
	// NoOp is set when every slot was occupied and nothing was inserted.
	NoOp bool `json:"no_op"`
}

// Applier stamps templates onto calendar dates and inserts user-created
// entries. It is one of the three paths allowed to add to an EntryStore.
type Applier struct {
	store     *EntryStore
	remote    RemoteStore
	templates TemplateStore
	logger    *slog.Logger
}

// NewApplier returns an Applier. templates may be nil when only Apply and
// Add are used.
func NewApplier(store *EntryStore, remote RemoteStore, templates TemplateStore) *Applier {
	return &Applier{
		store:     store,
		remote:    remote,
		templates: templates,
		logger:    slog.Default(),
	}
}

// Apply materializes tmpl on date and inserts every item whose absolute
// start is not already taken by an existing entry. Items past 24:00 land on
// the following day and are checked there.
//
// The collision check is exact start-time equality only. Overlapping ranges
// at other times are not collisions, so applying twice is idempotent per
// slot and nothing more.
//
// On a partial insert failure the returned result lists what was committed
// and the *Error lists the titles that were not.
func (a *Applier) Apply(ctx context.Context, tmpl schedule.Template, date time.Time) (*ApplyResult, error) {
	if !schedule.IsDate(date) {
		return nil, validationError("apply", fmt.Errorf("%w: %s has a time component", schedule.ErrInvalid, date.Format(time.RFC3339)))
	}
	if err := tmpl.Validate(); err != nil {
		return nil, validationError("apply", err)
	}

	// Items may start up to 47:59, so the slots to check span two days.
	occupied := make(map[int64]bool)
	for _, e := range a.store.InRange(schedule.Range{From: date, To: date.AddDate(0, 0, 2)}) {
		occupied[e.Start.UnixNano()] = true
	}

	result := &ApplyResult{Date: date}
	var pending []schedule.Entry
	for _, item := range tmpl.Items {
		e := item.EntryOn(date, a.store.UserID())
		key := e.Start.UnixNano()
		if occupied[key] {
			result.Skipped = append(result.Skipped, item.Title)
			continue
		}
		occupied[key] = true
		pending = append(pending, e)
	}

	if len(pending) == 0 {
		result.NoOp = true
		a.logger.Info("template already applied", "template", tmpl.Name, "date", date.Format(time.DateOnly))
		return result, nil
	}

	inserted, err := a.insert(ctx, "apply", pending)
	result.Inserted = inserted
	if err != nil {
		return result, err
	}

	a.logger.Info("template applied",
		"template", tmpl.Name,
		"date", date.Format(time.DateOnly),
		"inserted", len(inserted),
		"skipped", len(result.Skipped))
	return result, nil
}

// ApplyNamed loads the user's template called name and applies it.
func (a *Applier) ApplyNamed(ctx context.Context, name string, date time.Time) (*ApplyResult, error) {
	tmpl, err := a.loadTemplate(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.Apply(ctx, tmpl, date)
}

// Add persists user-created entries. Entries are validated up front; one
// invalid entry rejects the whole call.
func (a *Applier) Add(ctx context.Context, entries ...schedule.Entry) ([]schedule.Entry, error) {
	if len(entries) == 0 {
		return nil, validationError("add", fmt.Errorf("%w: no entries", schedule.ErrInvalid))
	}
	batch := make([]schedule.Entry, 0, len(entries))
	for _, e := range entries {
		e = e.Clone()
		e.UserID = a.store.UserID()
		e.Title = schedule.NormalizeName(e.Title)
		if e.Category == "" {
			e.Category = schedule.CategoryOther
		}
		if err := e.Validate(); err != nil {
			return nil, validationError("add", err)
		}
		batch = append(batch, e)
	}
	return a.insert(ctx, "add", batch)
}

// MoveItem reorders the user's template called name and saves it back.
// Offsets after the moved block are recomputed so the total duration stays
// the same.
func (a *Applier) MoveItem(ctx context.Context, name string, from, to int) (schedule.Template, error) {
	tmpl, err := a.loadTemplate(ctx, name)
	if err != nil {
		return schedule.Template{}, err
	}
	moved, err := tmpl.Move(from, to)
	if err == nil {
		err = moved.Validate()
	}
	if err != nil {
		return schedule.Template{}, validationError("move", err)
	}
	if err := a.templates.SaveNamedTemplate(ctx, a.store.UserID(), tmpl.Name, moved); err != nil {
		return schedule.Template{}, persistenceError("move", "", err)
	}
	return moved, nil
}

func (a *Applier) loadTemplate(ctx context.Context, name string) (schedule.Template, error) {
	if a.templates == nil {
		return schedule.Template{}, fmt.Errorf("load template %q: no template store configured", name)
	}
	tmpl, err := a.templates.LoadNamedTemplate(ctx, a.store.UserID(), schedule.NormalizeName(name))
	if err != nil {
		return schedule.Template{}, fmt.Errorf("load template %q: %w", name, err)
	}
	return tmpl, nil
}

// insert writes batch to the remote store and adds the committed prefix to
// the EntryStore. Committed rows are never rolled back.
func (a *Applier) insert(ctx context.Context, op string, batch []schedule.Entry) ([]schedule.Entry, error) {
	ids, err := a.remote.Insert(ctx, schedule.CloneEntries(batch))

	n := min(len(ids), len(batch))
	committed := make([]schedule.Entry, 0, n)
	for i := 0; i < n; i++ {
		e := batch[i].Clone()
		e.ID = ids[i]
		committed = append(committed, e)
	}
	a.store.insert(committed...)

	if err != nil {
		failed := make([]string, 0, len(batch)-n)
		for _, e := range batch[n:] {
			failed = append(failed, e.Title)
		}
		a.logger.Warn("batch insert partially failed",
			"op", op,
			"committed", len(committed),
			"failed", len(failed),
			"error", err)
		perr := persistenceError(op, "", err)
		perr.Failed = failed
		if len(committed) > 0 {
			perr.Message = fmt.Sprintf("%d of %d entries persisted", len(committed), len(batch))
		}
		return committed, perr
	}
	return committed, nil
}
