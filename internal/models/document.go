// Package models defines the domain types for Telos.
package models

import "time"

// Document represents a Markdown file in the vault as the indexer sees
// it: its vault-relative path, modification time, and parsed
// frontmatter. The body is never inspected by the indexer.
type Document struct {
	Path        string         `json:"path"`
	ModTime     time.Time      `json:"mod_time"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// HasFrontmatter reports whether the document carries a frontmatter map.
func (d *Document) HasFrontmatter() bool {
	return d.Frontmatter != nil
}

// FileMetadata is a lightweight representation returned by list operations.
type FileMetadata struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}
