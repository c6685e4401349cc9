package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dayplan/internal/schedule"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Insert stores entries one row at a time so that a failure leaves the
// already written prefix in place. An entry with an ID keeps it; others get
// a fresh id from the store's generator. The returned ids cover the rows
// written before any error.
func (s *Store) Insert(ctx context.Context, entries []schedule.Entry) ([]string, error) {
	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO entries
		(id, user_id, title, category, start_ns, end_ns, alarm_enabled, sound, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("insert entries: prepare: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		id := e.ID
		if id == "" {
			id = s.ids.Generate()
		}
		_, err := stmt.ExecContext(ctx,
			id,
			e.UserID,
			e.Title,
			string(e.Category),
			e.Start.UnixNano(),
			nullNanos(e.End),
			e.AlarmEnabled,
			e.Sound,
			e.Completed,
		)
		if err != nil {
			return ids, fmt.Errorf("insert entry %q: %w", e.Title, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Update replaces the start and end of one entry.
func (s *Store) Update(ctx context.Context, id string, t schedule.Timing) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries SET start_ns = ?, end_ns = ? WHERE id = ?
	`, t.Start.UnixNano(), nullNanos(t.End), id)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", id, err)
	}
	return expectOneRow(res, "update entry", id)
}

// SetCompleted marks one entry done or not done.
func (s *Store) SetCompleted(ctx context.Context, id string, done bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE entries SET completed = ? WHERE id = ?`, done, id)
	if err != nil {
		return fmt.Errorf("set completed %s: %w", id, err)
	}
	return expectOneRow(res, "set completed", id)
}

// DeleteAll removes every entry owned by userID.
func (s *Store) DeleteAll(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete entries for %s: %w", userID, err)
	}
	return nil
}

func expectOneRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return nil
}
