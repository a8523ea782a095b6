// Package vault layers the document model over raw vault storage:
// reading Markdown files as frontmatter-bearing documents and applying
// read-modify-write frontmatter mutations.
package vault

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/starford/telos/internal/apperr"
	"github.com/starford/telos/internal/models"
	"github.com/starford/telos/internal/parser"
	"github.com/starford/telos/internal/storage"
)

// Store reads and mutates vault documents.
type Store struct {
	store storage.Provider
}

// NewStore creates a Store over the given provider.
func NewStore(store storage.Provider) *Store {
	return &Store{store: store}
}

// List returns metadata for every Markdown file in the vault.
func (s *Store) List() ([]models.FileMetadata, error) {
	return s.store.List("")
}

// ReadDocument reads a vault file and returns it as a Document. The
// frontmatter map is nil when the file has none.
func (s *Store) ReadDocument(path string) (*models.Document, error) {
	meta, err := s.store.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("vault: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	fm, _ := parser.Split(data)
	return &models.Document{
		Path:        path,
		ModTime:     meta.ModTime,
		Frontmatter: fm,
	}, nil
}

// MutateFrontmatter applies update to the document's frontmatter map
// and writes the result back atomically, leaving the body untouched
// and surviving keys in their original document order. A document
// without frontmatter starts from an empty map; if the map is empty
// after the update no frontmatter block is written. Fails with
// apperr.ErrNotFound when the path no longer exists.
func (s *Store) MutateFrontmatter(path string, update func(fm map[string]any)) error {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("vault: mutate %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}

	fm, order, body := parser.SplitOrdered(data)
	if fm == nil {
		fm = make(map[string]any)
	}

	update(fm)

	if len(fm) == 0 {
		fm = nil
	}
	out, err := parser.Serialize(fm, order, body)
	if err != nil {
		return err
	}
	if bytes.Equal(out, data) {
		// No effective change; skip the write so the watcher sees no event.
		return nil
	}
	return s.store.Write(path, out)
}
