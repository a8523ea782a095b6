// Package catalog provides a SQLite-backed queryable view of tracked
// entities and hierarchy edges. The view is derived state: it is wiped
// and rebuilt from indexer events on every start, and the in-memory
// caches remain the source of truth.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
	path        TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	frontmatter TEXT NOT NULL DEFAULT '{}',
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS edges (
	parent     TEXT NOT NULL,
	child      TEXT NOT NULL,
	child_kind TEXT NOT NULL,
	UNIQUE(parent, child)
);

CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_edges_parent ON edges(parent);
CREATE INDEX IF NOT EXISTS idx_edges_child ON edges(child);
`

// DB wraps a sql.DB with catalog-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the catalog database, applies the schema,
// and clears any rows left over from a previous run.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	// Derived state does not survive restarts.
	if _, err := conn.Exec(`DELETE FROM edges; DELETE FROM entities;`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: reset: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
