package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dayplan/internal/schedule"
)

// LoadLedger returns the user's persisted snapshots in ledger order and the
// cursor. An unknown user has an empty ledger and cursor -1.
func (s *Store) LoadLedger(ctx context.Context, userID string) ([]schedule.Snapshot, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, created_at_ns, entries
		FROM history_snapshots
		WHERE user_id = ?
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return nil, -1, fmt.Errorf("load ledger: %w", err)
	}
	defer rows.Close()

	var snaps []schedule.Snapshot
	for rows.Next() {
		var (
			snap      schedule.Snapshot
			createdNs int64
			data      string
		)
		if err := rows.Scan(&snap.Seq, &createdNs, &data); err != nil {
			return nil, -1, fmt.Errorf("load ledger: scan: %w", err)
		}
		snap.CreatedAt = s.fromNanos(createdNs)
		if snap.Entries, err = s.unmarshalEntries(data); err != nil {
			return nil, -1, fmt.Errorf("load ledger: seq %d: %w", snap.Seq, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, -1, fmt.Errorf("load ledger: iterate: %w", err)
	}
	if len(snaps) == 0 {
		return nil, -1, nil
	}

	var cursor int
	err = s.db.QueryRowContext(ctx, `SELECT cursor FROM history_cursor WHERE user_id = ?`, userID).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		cursor = len(snaps) - 1
	} else if err != nil {
		return nil, -1, fmt.Errorf("load ledger: cursor: %w", err)
	}
	return snaps, cursor, nil
}

// SaveLedger replaces the user's persisted ledger in one transaction.
func (s *Store) SaveLedger(ctx context.Context, userID string, snaps []schedule.Snapshot, cursor int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save ledger: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_snapshots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("save ledger: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history_snapshots (user_id, position, seq, created_at_ns, entries)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save ledger: prepare: %w", err)
	}
	defer stmt.Close()

	for i, snap := range snaps {
		data, err := marshalEntries(snap.Entries)
		if err != nil {
			return fmt.Errorf("save ledger: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, userID, i, snap.Seq, snap.CreatedAt.UnixNano(), data); err != nil {
			return fmt.Errorf("save ledger: snapshot %d: %w", snap.Seq, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history_cursor (user_id, cursor) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET cursor = excluded.cursor
	`, userID, cursor)
	if err != nil {
		return fmt.Errorf("save ledger: cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save ledger: commit: %w", err)
	}
	return nil
}
