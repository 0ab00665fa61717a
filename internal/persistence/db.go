// Package persistence adapts the kernel's EventSink and
// CheckpointStore interfaces onto a sqlite-backed store, in the
// connection-wrapper style of the teacher's database package.
package persistence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sqlite connection used for event and checkpoint storage.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates (or reuses) the sqlite file at dbPath and runs the
// event-store schema migration.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("persistence: failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("persistence: failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("persistence: failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(1) // single-writer: the kernel is single-threaded by design
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn, path: dbPath}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) Conn() *sql.DB { return db.conn }

func (db *DB) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS events (
	simulation_id TEXT NOT NULL,
	tick INTEGER NOT NULL,
	seq_in_tick INTEGER NOT NULL,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (simulation_id, tick, seq_in_tick)
);
CREATE INDEX IF NOT EXISTS idx_events_tick ON events(simulation_id, tick);

CREATE TABLE IF NOT EXISTS checkpoints (
	checkpoint_id TEXT PRIMARY KEY,
	simulation_id TEXT NOT NULL,
	config_hash TEXT NOT NULL,
	state_hash TEXT NOT NULL,
	tick INTEGER NOT NULL,
	day INTEGER NOT NULL,
	checkpoint_type TEXT NOT NULL,
	description TEXT,
	created_by TEXT,
	state BLOB NOT NULL
);
`
	_, err := db.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("persistence: migration failed: %w", err)
	}
	return nil
}
