package indexer

import (
	"path"
	"time"

	"github.com/starford/telos/internal/parser"
)

// Snapshot is the indexer's last observed state of one tracked
// document. Exactly one snapshot exists per path; it is replaced, not
// merged, on every observation.
type Snapshot struct {
	Path        string         `json:"path"`
	ModTime     time.Time      `json:"mod_time"`
	Kind        Kind           `json:"kind"`
	Frontmatter map[string]any `json:"frontmatter"`
}

// Key returns the hierarchy key for this snapshot's path.
func (s *Snapshot) Key() string {
	return HierarchyKey(s.Path)
}

// HierarchyKey normalizes a document path or canonical link identifier
// into the key used by the hierarchy maps. Keys are basenames with the
// Markdown extension: wikilink tokens usually omit folders, and a child
// must be able to reference a parent the indexer has not seen yet, so
// full-path keys cannot work. Applied identically on the write and
// read sides.
func HierarchyKey(p string) string {
	return parser.CanonicalID(path.Base(p))
}
