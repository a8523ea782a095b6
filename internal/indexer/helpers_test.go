package indexer

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/telos/internal/models"
	"github.com/starford/telos/internal/storage"
	"github.com/starford/telos/internal/vault"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv builds an indexer over a temp vault with short timer windows.
func testEnv(t *testing.T) (*Indexer, *vault.Store, storage.Provider) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	vs := vault.NewStore(fs)
	idx := New(testLogger(), vs, Options{
		GoalsDir:     "Goals",
		ProjectsDir:  "Projects",
		TasksDir:     "Tasks",
		Debounce:     30 * time.Millisecond,
		RenameSettle: 60 * time.Millisecond,
	})
	return idx, vs, fs
}

// writeDoc writes a Markdown file with the given frontmatter block.
func writeDoc(t *testing.T, fs storage.Provider, path, frontmatter string) {
	t.Helper()
	content := "---\n" + frontmatter + "---\n# doc\n"
	if err := fs.Write(path, []byte(content)); err != nil {
		t.Fatal(err)
	}
}

// applyPath reads a vault file and runs it through the event builder.
func applyPath(t *testing.T, idx *Indexer, vs *vault.Store, path string) *Event {
	t.Helper()
	doc, err := vs.ReadDocument(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return idx.applyDocument(doc)
}

func docFor(path string, fm map[string]any) *models.Document {
	return &models.Document{Path: path, ModTime: time.Now(), Frontmatter: fm}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
