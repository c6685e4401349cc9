package engine

import (
	"context"

	"github.com/roach88/dayplan/internal/schedule"
)

// RemoteStore is the external entry table. All persistence done by the
// engine goes through it.
type RemoteStore interface {
	// Insert stores entries in order and returns their ids. An entry with
	// a non-empty ID keeps it; otherwise the store assigns one. On failure
	// the returned ids cover the prefix that was committed before the
	// error. Committed rows are not rolled back.
	Insert(ctx context.Context, entries []schedule.Entry) ([]string, error)

	// Update replaces the timing of one entry.
	Update(ctx context.Context, id string, timing schedule.Timing) error

	// DeleteAll removes every entry owned by userID.
	DeleteAll(ctx context.Context, userID string) error

	// QueryByUserAndDateRange returns userID's entries whose start falls in r.
	QueryByUserAndDateRange(ctx context.Context, userID string, r schedule.Range) ([]schedule.Entry, error)
}

// TemplateStore persists named templates per user.
type TemplateStore interface {
	LoadNamedTemplate(ctx context.Context, userID, name string) (schedule.Template, error)
	SaveNamedTemplate(ctx context.Context, userID, name string, t schedule.Template) error
}

// LedgerStore persists a user's undo/redo ledger between sessions.
type LedgerStore interface {
	LoadLedger(ctx context.Context, userID string) (snapshots []schedule.Snapshot, cursor int, err error)
	SaveLedger(ctx context.Context, userID string, snapshots []schedule.Snapshot, cursor int) error
}
