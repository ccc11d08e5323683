// Package store persists presence events and device state to a local
// SQLite database. The store is optional: with no database path
// configured the monitor runs entirely in memory and history does not
// survive restarts.
package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"lanwatch/internal/device"
	"lanwatch/internal/errors"
	"lanwatch/internal/presence"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id           TEXT PRIMARY KEY,
	mac          TEXT NOT NULL,
	kind         TEXT NOT NULL,
	display_name TEXT NOT NULL,
	hostname     TEXT NOT NULL DEFAULT '',
	occurred_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
CREATE INDEX IF NOT EXISTS idx_events_mac ON events(mac);

CREATE TABLE IF NOT EXISTS devices (
	mac        TEXT PRIMARY KEY,
	first_seen DATETIME NOT NULL,
	last_seen  DATETIME NOT NULL,
	present    INTEGER NOT NULL DEFAULT 0
);
`

// Store wraps the SQLite event database.
type Store struct {
	db *sqlx.DB
}

// StoredEvent is one row of presence history.
type StoredEvent struct {
	ID          string    `db:"id"`
	MAC         string    `db:"mac"`
	Kind        string    `db:"kind"`
	DisplayName string    `db:"display_name"`
	Hostname    string    `db:"hostname"`
	OccurredAt  time.Time `db:"occurred_at"`
}

// DeviceRow is one row of last known device state.
type DeviceRow struct {
	MAC       string    `db:"mac"`
	FirstSeen time.Time `db:"first_seen"`
	LastSeen  time.Time `db:"last_seen"`
	Present   bool      `db:"present"`
}

// Open opens (creating if necessary) the database at path and applies
// the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, errors.WrapStoreError(errors.CodeStoreOpen, "opening "+path, "open", err)
	}
	// modernc's sqlite driver serializes writes itself; one connection
	// avoids SQLITE_BUSY under concurrent readers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.WrapStoreError(errors.CodeStoreOpen, "applying schema", "migrate", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordEvent appends one presence transition to the history.
func (s *Store) RecordEvent(ctx context.Context, ev device.Event) error {
	const query = `
		INSERT INTO events (id, mac, kind, display_name, hostname, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		ev.ID.String(),
		string(ev.MAC),
		string(ev.Kind),
		ev.Policy.DisplayName,
		ev.Hostname,
		ev.OccurredAt.UTC())
	if err != nil {
		return errors.WrapStoreError(errors.CodeStoreQuery, "inserting event", "record_event", err)
	}
	return nil
}

// UpsertDevice writes a device's last known state.
func (s *Store) UpsertDevice(ctx context.Context, rec presence.Record) error {
	const query = `
		INSERT INTO devices (mac, first_seen, last_seen, present)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(mac) DO UPDATE SET
			last_seen = excluded.last_seen,
			present   = excluded.present`

	_, err := s.db.ExecContext(ctx, query,
		string(rec.MAC),
		rec.FirstSeen.UTC(),
		rec.LastSeen.UTC(),
		rec.Present)
	if err != nil {
		return errors.WrapStoreError(errors.CodeStoreQuery, "upserting device", "upsert_device", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	const query = `
		SELECT id, mac, kind, display_name, hostname, occurred_at
		FROM events
		ORDER BY occurred_at DESC
		LIMIT ?`

	var events []StoredEvent
	if err := s.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, errors.WrapStoreError(errors.CodeStoreQuery, "querying events", "recent_events", err)
	}
	return events, nil
}

// EventsForDevice returns a single device's history, newest first.
func (s *Store) EventsForDevice(ctx context.Context, mac device.MAC, limit int) ([]StoredEvent, error) {
	const query = `
		SELECT id, mac, kind, display_name, hostname, occurred_at
		FROM events
		WHERE mac = ?
		ORDER BY occurred_at DESC
		LIMIT ?`

	var events []StoredEvent
	if err := s.db.SelectContext(ctx, &events, query, string(mac), limit); err != nil {
		return nil, errors.WrapStoreError(errors.CodeStoreQuery, "querying device events", "events_for_device", err)
	}
	return events, nil
}

// Devices returns all last known device states.
func (s *Store) Devices(ctx context.Context) ([]DeviceRow, error) {
	const query = `
		SELECT mac, first_seen, last_seen, present
		FROM devices
		ORDER BY mac`

	var rows []DeviceRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.WrapStoreError(errors.CodeStoreQuery, "querying devices", "devices", err)
	}
	return rows, nil
}

// PruneEvents deletes history older than the cutoff and returns how
// many rows went away.
func (s *Store) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE occurred_at < ?`, before.UTC())
	if err != nil {
		return 0, errors.WrapStoreError(errors.CodeStoreQuery, "pruning events", "prune_events", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
