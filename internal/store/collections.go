package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/dayplan/internal/cycle"
)

// Collection is a recurring chore tied to a weekday, such as putting out
// the recycling.
type Collection struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Label     string          `json:"label"`
	Weekday   time.Weekday    `json:"weekday"`
	Frequency cycle.Frequency `json:"frequency"`
	LastDone  *time.Time      `json:"last_done,omitempty"`
}

// Next returns the collection's next date after today.
func (c Collection) Next(today time.Time) time.Time {
	return cycle.NextOccurrence(c.Weekday, c.Frequency, c.LastDone, today)
}

// AddCollection stores c and returns it with its id set. Labels are unique
// per user.
func (s *Store) AddCollection(ctx context.Context, c Collection) (Collection, error) {
	c.Label = strings.TrimSpace(c.Label)
	if c.Label == "" {
		return Collection{}, fmt.Errorf("add collection: label is empty")
	}
	if c.ID == "" {
		c.ID = s.ids.Generate()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, user_id, label, weekday, frequency, last_done_ns)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Label, int(c.Weekday), string(c.Frequency), nullNanos(c.LastDone))
	if err != nil {
		return Collection{}, fmt.Errorf("add collection %q: %w", c.Label, err)
	}
	return c, nil
}

// Collections lists userID's collections ordered by label.
func (s *Store) Collections(ctx context.Context, userID string) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, label, weekday, frequency, last_done_ns
		FROM collections
		WHERE user_id = ?
		ORDER BY label COLLATE NOCASE ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	out := []Collection{}
	for rows.Next() {
		c, err := s.scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return out, nil
}

// CollectionByLabel finds one of userID's collections.
func (s *Store) CollectionByLabel(ctx context.Context, userID, label string) (Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, label, weekday, frequency, last_done_ns
		FROM collections
		WHERE user_id = ? AND label = ?
	`, userID, strings.TrimSpace(label))
	c, err := s.scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, fmt.Errorf("collection %q: %w", label, ErrNotFound)
	}
	return c, err
}

// MarkCollectionDone records at as the last time the chore was done.
func (s *Store) MarkCollectionDone(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE collections SET last_done_ns = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("mark collection %s done: %w", id, err)
	}
	return expectOneRow(res, "mark collection done", id)
}

func (s *Store) scanCollection(sc scanner) (Collection, error) {
	var (
		c         Collection
		weekday   int
		frequency string
		lastNs    sql.NullInt64
	)
	if err := sc.Scan(&c.ID, &c.UserID, &c.Label, &weekday, &frequency, &lastNs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Collection{}, err
		}
		return Collection{}, fmt.Errorf("scan collection: %w", err)
	}
	c.Weekday = time.Weekday(weekday)
	c.Frequency = cycle.Frequency(frequency)
	c.LastDone = s.fromNullNanos(lastNs)
	return c, nil
}
