// Package testutil provides shared test helpers for setting up vaults
// and catalog databases.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/telos/internal/catalog"
	"github.com/starford/telos/internal/storage"
)

// TestCatalog creates a temporary catalog database that is
// automatically cleaned up.
func TestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	db, err := catalog.Open(filepath.Join(t.TempDir(), "telos-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteEntity writes a Markdown entity file with the given frontmatter
// block body (without the fences) into the vault.
func WriteEntity(t *testing.T, store *storage.FS, path, frontmatter string) {
	t.Helper()
	if err := store.Write(path, []byte("---\n"+frontmatter+"---\n\nbody\n")); err != nil {
		t.Fatal(err)
	}
}
