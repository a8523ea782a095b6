package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityRow represents one tracked entity in the catalog.
type EntityRow struct {
	Path        string
	Kind        string
	Title       string
	Frontmatter map[string]any
	Parents     []string // normalized hierarchy keys this entity references
	UpdatedAt   time.Time
}

// UpsertEntity inserts or replaces an entity and its outgoing edges
// within a transaction.
func (db *DB) UpsertEntity(row EntityRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	fmJSON, _ := json.Marshal(row.Frontmatter)

	_, err = tx.Exec(`
		INSERT INTO entities (path, kind, title, frontmatter, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind        = excluded.kind,
			title       = excluded.title,
			frontmatter = excluded.frontmatter,
			updated_at  = excluded.updated_at
	`, row.Path, row.Kind, row.Title, string(fmJSON), row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert entity: %w", err)
	}

	// Replace edges: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM edges WHERE child = ?`, row.Path)
	if len(row.Parents) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO edges (parent, child, child_kind) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("catalog: prepare edge insert: %w", err)
		}
		defer stmt.Close()
		for _, parent := range row.Parents {
			if _, err := stmt.Exec(parent, row.Path, row.Kind); err != nil {
				return fmt.Errorf("catalog: insert edge: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteEntity removes an entity and every edge touching it.
func (db *DB) DeleteEntity(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM edges WHERE child = ?`, path)
	_, _ = tx.Exec(`DELETE FROM entities WHERE path = ?`, path)

	return tx.Commit()
}

// ListEntities returns entities, optionally filtered by kind, newest
// first, with the total matching count.
func (db *DB) ListEntities(kind string, limit, offset int) ([]EntityRow, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if kind != "" {
		where = "WHERE kind = ?"
		args = append(args, kind)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM entities `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count: %w", err)
	}

	query := `SELECT path, kind, title, frontmatter, updated_at FROM entities ` +
		where + ` ORDER BY updated_at DESC, path ASC LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var out []EntityRow
	for rows.Next() {
		var row EntityRow
		var fmJSON string
		if err := rows.Scan(&row.Path, &row.Kind, &row.Title, &fmJSON, &row.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(fmJSON), &row.Frontmatter)
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// ChildrenOf returns the paths of entities whose edges name the given
// hierarchy key as parent.
func (db *DB) ChildrenOf(parentKey string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT child FROM edges WHERE parent = ? ORDER BY rowid`, parentKey)
	if err != nil {
		return nil, fmt.Errorf("catalog: children: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountByKind returns entity counts keyed by kind.
func (db *DB) CountByKind() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT kind, COUNT(*) FROM entities GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("catalog: count by kind: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}
