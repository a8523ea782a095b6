package indexer

import (
	"log/slog"
	"time"

	"github.com/starford/telos/internal/watch"
)

// handleNotification routes one raw change notification. Creates and
// modifications for the same path coalesce into a single debounced
// emission; deletions bypass debouncing and take effect immediately;
// renames settle for a longer window before resynchronizing keys.
func (i *Indexer) handleNotification(n watch.Notification) {
	switch n.Op {
	case watch.OpCreated, watch.OpModified:
		if _, tracked := i.cls.Classify(n.Path); !tracked {
			return
		}
		i.debouncePath(n.Path)

	case watch.OpDeleted:
		i.cancelTimer(n.Path)
		if _, tracked := i.cls.Classify(n.Path); !tracked {
			return
		}
		i.procMu.Lock()
		ev := i.applyDelete(n.Path)
		if ev != nil {
			i.publish(*ev)
		}
		i.procMu.Unlock()

	case watch.OpRenamed:
		i.cancelTimer(n.OldPath)
		i.scheduleRename(n.OldPath, n.Path)
	}
}

// debouncePath arms (or resets) the per-path debounce timer. Unrelated
// paths debounce independently; only the last notification within the
// window survives.
func (i *Indexer) debouncePath(path string) {
	i.timerMu.Lock()
	defer i.timerMu.Unlock()
	if t, ok := i.timers[path]; ok {
		t.Reset(i.debounce)
		return
	}
	i.timers[path] = time.AfterFunc(i.debounce, func() {
		i.timerMu.Lock()
		delete(i.timers, path)
		i.timerMu.Unlock()
		i.processPath(path)
	})
}

func (i *Indexer) cancelTimer(path string) {
	i.timerMu.Lock()
	defer i.timerMu.Unlock()
	if t, ok := i.timers[path]; ok {
		t.Stop()
		delete(i.timers, path)
	}
}

// cancelAllTimers abandons every pending debounce and rename timer.
func (i *Indexer) cancelAllTimers() {
	i.timerMu.Lock()
	defer i.timerMu.Unlock()
	for path, t := range i.timers {
		t.Stop()
		delete(i.timers, path)
	}
}

// processPath resolves a debounced path into a document and runs it
// through the event builder. A path that vanished in the meantime is
// not an error; its deletion event will arrive on its own.
//
// The read and the apply happen under procMu as one unit. Timer
// callbacks fire on their own goroutines, so without that a
// synchronous delete could land between a successful read and its
// apply and the stale snapshot would resurrect the deleted entry.
func (i *Indexer) processPath(path string) {
	i.procMu.Lock()
	defer i.procMu.Unlock()

	doc, err := i.vault.ReadDocument(path)
	if err != nil {
		i.log.Debug("indexer: resolve skipped",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	if ev := i.applyDocument(doc); ev != nil {
		i.publish(*ev)
	}
}

// scheduleRename holds a rename for the settle window (host link
// rewriting may lag) and then resynchronizes cache keys out-of-band:
// the old identity's snapshot and hierarchy contribution are removed,
// the document is re-read under its new identity, and a single
// "changed" event is emitted for the new path. No synthetic "deleted"
// event is emitted for the old path.
func (i *Indexer) scheduleRename(oldPath, newPath string) {
	key := "rename\x00" + oldPath
	i.timerMu.Lock()
	defer i.timerMu.Unlock()
	if t, ok := i.timers[key]; ok {
		t.Stop()
	}
	i.timers[key] = time.AfterFunc(i.renameSettle, func() {
		i.timerMu.Lock()
		delete(i.timers, key)
		i.timerMu.Unlock()
		i.processRename(oldPath, newPath)
	})
}

func (i *Indexer) processRename(oldPath, newPath string) {
	i.procMu.Lock()
	defer i.procMu.Unlock()

	newKind, tracked := i.cls.Classify(newPath)

	i.mu.Lock()
	if old := i.snapshots[oldPath]; old != nil {
		delete(i.snapshots, oldPath)
		i.hier.unlinkChild(oldPath, old.Kind, i.parentLinksOf(old.Kind, old.Frontmatter))
		// A folder move that keeps the basename keeps the hierarchy
		// key. The parent entry survives then, children contributed by
		// other documents included; only a rename that changes the key
		// (or untracks the document) retires the entry.
		sameParent := tracked && newKind == old.Kind && HierarchyKey(newPath) == old.Key()
		if !sameParent {
			i.hier.removeParent(old.Key(), old.Kind)
		}
	}
	i.mu.Unlock()

	if !tracked {
		return
	}
	doc, err := i.vault.ReadDocument(newPath)
	if err != nil {
		i.log.Warn("indexer: rename resolve failed",
			slog.String("old", oldPath),
			slog.String("new", newPath),
			slog.String("error", err.Error()))
		return
	}
	if ev := i.applyDocument(doc); ev != nil {
		i.publish(*ev)
	}
	i.log.Debug("indexer: rename resynced",
		slog.String("old", oldPath),
		slog.String("new", newPath))
}
