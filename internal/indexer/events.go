package indexer

import (
	"log/slog"

	"github.com/starford/telos/internal/models"
	"github.com/starford/telos/internal/parser"
)

// EventType distinguishes the two observable cache transitions.
type EventType string

const (
	EventChanged EventType = "changed"
	EventDeleted EventType = "deleted"
)

// Event describes one cache update, carrying the snapshots before and
// after. Old is nil on first observation; New is nil on deletion.
type Event struct {
	Type EventType `json:"type"`
	Kind Kind      `json:"kind"`
	Path string    `json:"path"`
	Old  *Snapshot `json:"old_snapshot,omitempty"`
	New  *Snapshot `json:"new_snapshot,omitempty"`
}

// parentLinksOf extracts the normalized parent keys a document of the
// given kind references through the configured link properties.
func (i *Indexer) parentLinksOf(kind Kind, fm map[string]any) parentLinks {
	var links parentLinks
	switch kind {
	case KindProject:
		links.goals = hierarchyKeys(parser.ParseLinks(fm[i.goalProp]))
	case KindTask:
		links.goals = hierarchyKeys(parser.ParseLinks(fm[i.goalProp]))
		links.projects = hierarchyKeys(parser.ParseLinks(fm[i.projectProp]))
	}
	return links
}

func hierarchyKeys(ids []string) []string {
	var out []string
	for _, id := range ids {
		out = append(out, HierarchyKey(id))
	}
	return out
}

// applyDocument is the event builder: it classifies the document,
// replaces its snapshot, reconciles hierarchy edges (unlinking stale
// ones first), and triggers inheritance propagation for ancestor kinds
// once the initial bulk build has completed. Returns nil, not an
// error, for untracked or frontmatter-less documents.
func (i *Indexer) applyDocument(doc *models.Document) *Event {
	if !doc.HasFrontmatter() {
		return nil
	}
	kind, ok := i.cls.Classify(doc.Path)
	if !ok {
		return nil
	}

	newSnap := &Snapshot{
		Path:        doc.Path,
		ModTime:     doc.ModTime,
		Kind:        kind,
		Frontmatter: doc.Frontmatter,
	}

	i.mu.Lock()
	old := i.snapshots[doc.Path]
	i.snapshots[doc.Path] = newSnap

	// A goal or project is a known parent from the moment its own
	// document is classified, even with no children yet.
	switch kind {
	case KindGoal:
		i.hier.ensureGoal(newSnap.Key())
	case KindProject:
		i.hier.ensureProject(newSnap.Key())
	}

	if old != nil {
		i.hier.unlinkChild(doc.Path, old.Kind, i.parentLinksOf(old.Kind, old.Frontmatter))
	}
	i.hier.linkChild(doc.Path, kind, i.parentLinksOf(kind, newSnap.Frontmatter))
	ready := i.initialBuildDone
	i.mu.Unlock()

	if ready && kind.IsAncestor() {
		i.propagate(old, newSnap)
	}

	return &Event{Type: EventChanged, Kind: kind, Path: doc.Path, Old: old, New: newSnap}
}

// applyDelete synchronously removes a document's snapshot and
// hierarchy contribution. A deleted goal or project loses its whole
// parent entry; a deleted child only leaves its parents' arrays.
func (i *Indexer) applyDelete(path string) *Event {
	i.mu.Lock()
	old := i.snapshots[path]
	if old == nil {
		i.mu.Unlock()
		return nil
	}
	delete(i.snapshots, path)
	i.hier.unlinkChild(path, old.Kind, i.parentLinksOf(old.Kind, old.Frontmatter))
	i.hier.removeParent(old.Key(), old.Kind)
	i.mu.Unlock()

	i.log.Debug("indexer: removed", slog.String("path", path), slog.String("kind", string(old.Kind)))
	return &Event{Type: EventDeleted, Kind: old.Kind, Path: path, Old: old}
}
