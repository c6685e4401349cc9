package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dayplan/internal/schedule"
)

const entryColumns = `id, user_id, title, category, start_ns, end_ns, alarm_enabled, sound, completed`

// QueryByUserAndDateRange returns userID's entries whose start falls in r.
// A zero bound is open on that side. Results are ordered by start, then id.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) QueryByUserAndDateRange(ctx context.Context, userID string, r schedule.Range) ([]schedule.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE user_id = ?`
	args := []any{userID}
	if !r.From.IsZero() {
		query += ` AND start_ns >= ?`
		args = append(args, r.From.UnixNano())
	}
	if !r.To.IsZero() {
		query += ` AND start_ns < ?`
		args = append(args, r.To.UnixNano())
	}
	query += ` ORDER BY start_ns ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []schedule.Entry{}
	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Entry returns one entry by id.
func (s *Store) Entry(ctx context.Context, id string) (schedule.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := s.scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Entry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEntry(sc scanner) (schedule.Entry, error) {
	var (
		e        schedule.Entry
		category string
		startNs  int64
		endNs    sql.NullInt64
	)
	err := sc.Scan(
		&e.ID,
		&e.UserID,
		&e.Title,
		&category,
		&startNs,
		&endNs,
		&e.AlarmEnabled,
		&e.Sound,
		&e.Completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.Entry{}, err
		}
		return schedule.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Category = schedule.Category(category)
	e.Start = s.fromNanos(startNs)
	e.End = s.fromNullNanos(endNs)
	return e, nil
}
