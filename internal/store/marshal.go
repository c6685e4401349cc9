package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/dayplan/internal/schedule"
)

// marshalEntries converts a snapshot's entries to JSON TEXT for storage.
// HTML escaping is disabled so titles are stored as typed.
func marshalEntries(entries []schedule.Entry) (string, error) {
	if entries == nil {
		entries = []schedule.Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return "", fmt.Errorf("marshal entries: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalEntries parses JSON TEXT back into entries in the store's
// location.
func (s *Store) unmarshalEntries(data string) ([]schedule.Entry, error) {
	var entries []schedule.Entry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, fmt.Errorf("unmarshal entries: %w", err)
	}
	for i := range entries {
		entries[i].Start = entries[i].Start.In(s.loc)
		if entries[i].End != nil {
			end := entries[i].End.In(s.loc)
			entries[i].End = &end
		}
	}
	return entries, nil
}
