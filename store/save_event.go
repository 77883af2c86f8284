package store

import (
	"encoding/hex"
	"fmt"

	"nostrelay.dev/internal/xlog"
	"nostrelay.dev/nostr"
)

// WriteResult is the outcome of WriteEvent.
type WriteResult int

const (
	// Inserted means the event was newly persisted.
	Inserted WriteResult = iota
	// Duplicate means an event with the same id already existed; no
	// change was made.
	Duplicate
)

// WriteEvent persists e atomically: the event row, its tag-reference rows,
// and any replaceable-event hiding updates all commit together or not at
// all. A duplicate event_hash short-circuits before any reference rows are
// written.
func (s *Store) WriteEvent(e *nostr.Event) (WriteResult, error) {
	idBlob, err := hex.DecodeString(e.ID)
	if err != nil {
		return Duplicate, fmt.Errorf("store: event id is not hex: %w", err)
	}
	authorBlob, err := hex.DecodeString(e.Pubkey)
	if err != nil {
		return Duplicate, fmt.Errorf("store: pubkey is not hex: %w", err)
	}
	content, err := marshalEvent(e)
	if err != nil {
		return Duplicate, fmt.Errorf("store: marshaling event: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Duplicate, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO event (event_hash, created_at, kind, author, content, first_seen, hidden)
		 VALUES (?, ?, ?, ?, ?, strftime('%s','now'), 0)`,
		idBlob, e.CreatedAt, e.Kind, authorBlob, content,
	)
	if err != nil {
		return Duplicate, fmt.Errorf("store: insert event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Duplicate, fmt.Errorf("store: rows affected: %w", err)
	}
	if affected == 0 {
		return Duplicate, nil
	}

	evID, err := res.LastInsertId()
	if err != nil {
		return Duplicate, fmt.Errorf("store: last insert id: %w", err)
	}

	eventRefs, pubkeyRefs := e.TagRefs()
	for _, ref := range eventRefs {
		refBlob, decErr := hex.DecodeString(ref)
		if decErr != nil {
			continue
		}
		if _, err = tx.Exec(
			`INSERT OR IGNORE INTO event_ref (event_id, referenced_event) VALUES (?, ?)`,
			evID, refBlob,
		); err != nil {
			return Duplicate, fmt.Errorf("store: insert event_ref: %w", err)
		}
	}
	for _, ref := range pubkeyRefs {
		refBlob, decErr := hex.DecodeString(ref)
		if decErr != nil {
			continue
		}
		if _, err = tx.Exec(
			`INSERT OR IGNORE INTO pubkey_ref (event_id, referenced_pubkey) VALUES (?, ?)`,
			evID, refBlob,
		); err != nil {
			return Duplicate, fmt.Errorf("store: insert pubkey_ref: %w", err)
		}
	}

	if e.Replaceable() {
		res, err = tx.Exec(
			`UPDATE event SET hidden=1 WHERE id!=? AND kind=? AND author=? AND created_at<=? AND hidden!=1`,
			evID, e.Kind, authorBlob, e.CreatedAt,
		)
		if err != nil {
			return Duplicate, fmt.Errorf("store: hide older replaceable events: %w", err)
		}
		if hidden, _ := res.RowsAffected(); hidden > 0 {
			xlog.D.F("store: hid %d older kind=%d events for author %s…", hidden, e.Kind, shortHex(e.Pubkey))
		}
	}

	if err = tx.Commit(); err != nil {
		return Duplicate, fmt.Errorf("store: commit: %w", err)
	}
	return Inserted, nil
}

func shortHex(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
