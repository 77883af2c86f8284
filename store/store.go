// Package store implements the durable, indexed event store: a single
// SQLite file holding accepted events plus their materialized tag
// references, with replaceable-event hiding applied at write time and a
// parameterized query planner that turns a subscription into a safe SELECT.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"nostrelay.dev/internal/chk"
	"nostrelay.dev/internal/xlog"
)

// schemaVersion is the current PRAGMA user_version this codebase expects.
// A store opened with a newer version is refused; one opened at an older
// version is migrated forward.
const schemaVersion = 2

// ErrSchemaTooNew is returned when the store file's user_version is newer
// than this build understands.
var ErrSchemaTooNew = errors.New("store: schema version is newer than supported by this build")

// startupPragmas are applied on every open, after migration.
const startupPragmas = `
PRAGMA synchronous=NORMAL;
PRAGMA foreign_keys=ON;
PRAGMA mmap_size=536870912;
`

const initSQL = `
PRAGMA journal_mode=WAL;
PRAGMA synchronous=NORMAL;
PRAGMA foreign_keys=ON;
PRAGMA user_version=2;

CREATE TABLE IF NOT EXISTS event (
	id INTEGER PRIMARY KEY,
	event_hash BLOB NOT NULL,
	first_seen INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	author BLOB NOT NULL,
	kind INTEGER NOT NULL,
	hidden INTEGER NOT NULL DEFAULT 0,
	content TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS event_hash_index ON event(event_hash);
CREATE INDEX IF NOT EXISTS event_created_at_index ON event(created_at);
CREATE INDEX IF NOT EXISTS event_author_index ON event(author);
CREATE INDEX IF NOT EXISTS event_kind_index ON event(kind);

CREATE TABLE IF NOT EXISTS event_ref (
	id INTEGER PRIMARY KEY,
	event_id INTEGER NOT NULL,
	referenced_event BLOB NOT NULL,
	FOREIGN KEY(event_id) REFERENCES event(id) ON UPDATE CASCADE ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS event_ref_index ON event_ref(referenced_event);

CREATE TABLE IF NOT EXISTS pubkey_ref (
	id INTEGER PRIMARY KEY,
	event_id INTEGER NOT NULL,
	referenced_pubkey BLOB NOT NULL,
	FOREIGN KEY(event_id) REFERENCES event(id) ON UPDATE RESTRICT ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS pubkey_ref_index ON pubkey_ref(referenced_pubkey);
`

// Store is a handle onto the event store. One process holds a single
// writer Store (obtained from Open); historical queries use their own
// read-only *sql.DB connections opened via OpenReadOnly, relying on WAL
// snapshot isolation rather than contending with the writer.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates the data directory if needed, opens (and migrates, if
// necessary) the SQLite file at <dir>/nostr.db, and returns the writer
// handle. Callers should call Close when done.
func Open(dir string) (s *Store, err error) {
	if err = os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("store: creating data directory: %w", err)
	}
	path := filepath.Join(dir, "nostr.db")

	var db *sql.DB
	if db, err = sql.Open("sqlite", path); chk.E(err) {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s = &Store{path: path, db: db}
	if err = s.migrate(); chk.E(err) {
		_ = db.Close()
		return nil, err
	}
	if _, err = db.Exec(startupPragmas); chk.E(err) {
		_ = db.Close()
		return nil, fmt.Errorf("store: applying startup pragmas: %w", err)
	}
	xlog.I.F("store: opened %s at schema v%d", path, schemaVersion)
	return s, nil
}

// OpenReadOnly returns a fresh read-only *sql.DB over the same file,
// suitable for one historical query. Concurrent read handles are
// permitted; WAL mode gives each its own consistent snapshot.
func OpenReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("store: opening read-only handle: %w", err)
	}
	return db, nil
}

// Path returns the backing file path, for callers that need to open their
// own read-only handles (the Query Planner's execution side).
func (s *Store) Path() string { return s.path }

// Close closes the writer handle.
func (s *Store) Close() error {
	err := s.db.Close()
	xlog.I.Ln("store: closed")
	return err
}

func (s *Store) version() (int, error) {
	var v int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("store: reading schema version: %w", err)
	}
	return v, nil
}

// migrate brings a store file from whatever version it was created at up
// to schemaVersion. v0 (file just created, no schema) gets the full
// initSQL; v1 gets the hidden column added; v2 is a no-op; anything newer
// is refused outright rather than risking data loss under an unknown
// schema.
func (s *Store) migrate() error {
	v, err := s.version()
	if err != nil {
		return err
	}
	switch {
	case v == 0:
		if _, err = s.db.Exec(initSQL); err != nil {
			return fmt.Errorf("store: initializing schema: %w", err)
		}
		xlog.I.Ln("store: schema initialized at v2")
	case v == 1:
		const upgradeSQL = `
ALTER TABLE event ADD COLUMN hidden INTEGER NOT NULL DEFAULT 0;
UPDATE event SET hidden=0;
PRAGMA user_version=2;
`
		if _, err = s.db.Exec(upgradeSQL); err != nil {
			return fmt.Errorf("store: upgrading schema v1->v2: %w", err)
		}
		xlog.I.Ln("store: schema upgraded v1 -> v2")
	case v == schemaVersion:
		xlog.D.Ln("store: schema already at current version")
	default:
		return fmt.Errorf("%w: found v%d, understand up to v%d", ErrSchemaTooNew, v, schemaVersion)
	}
	return nil
}
