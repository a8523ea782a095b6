package indexer

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/starford/telos/internal/models"
)

// ScanAllFiles rebuilds both caches from scratch: every tracked
// document is resolved with bounded concurrency, the resolved
// documents are applied through the event builder by this single
// goroutine, the resulting events are emitted sequentially, and one
// full inheritance sweep runs over every known ancestor (goals first,
// then projects). A failure resolving one document never aborts the
// scan.
func (i *Indexer) ScanAllFiles(ctx context.Context) error {
	metas, err := i.vault.List()
	if err != nil {
		return err
	}

	var tracked []models.FileMetadata
	for _, m := range metas {
		if _, ok := i.cls.Classify(m.Path); ok {
			tracked = append(tracked, m)
		}
	}

	docs := make([]*models.Document, len(tracked))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(i.scanWorkers)
	for idx, m := range tracked {
		g.Go(func() error {
			doc, readErr := i.vault.ReadDocument(m.Path)
			if readErr != nil {
				i.log.Warn("indexer: scan resolve failed",
					slog.String("path", m.Path),
					slog.String("error", readErr.Error()))
				return nil
			}
			docs[idx] = doc
			return nil
		})
	}
	_ = g.Wait()

	// Propagation stays off while the caches rebuild; the sweep below
	// re-establishes inheritance invariants in one pass.
	i.mu.Lock()
	i.snapshots = make(map[string]*Snapshot, len(tracked))
	i.hier = newHierarchy()
	i.initialBuildDone = false
	i.mu.Unlock()

	var events []Event
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if ev := i.applyDocument(doc); ev != nil {
			events = append(events, *ev)
		}
	}
	for _, ev := range events {
		i.publish(ev)
	}

	i.mu.Lock()
	i.initialBuildDone = true
	sweep := make([]*Snapshot, 0, len(i.snapshots))
	for _, s := range i.snapshots {
		if s.Kind.IsAncestor() {
			sweep = append(sweep, s)
		}
	}
	i.mu.Unlock()

	// Goals first, then projects, each in stable path order. Goal
	// propagation may write into project files, so projects are
	// re-resolved through the event builder (which propagates on its
	// own) instead of reusing their pre-sweep snapshots.
	sort.Slice(sweep, func(a, b int) bool {
		if sweep[a].Kind != sweep[b].Kind {
			return sweep[a].Kind == KindGoal
		}
		return sweep[a].Path < sweep[b].Path
	})
	for _, s := range sweep {
		if s.Kind == KindGoal {
			i.propagate(nil, s)
		} else {
			i.processPath(s.Path)
		}
	}

	i.log.Info("indexer: scan complete",
		slog.Int("tracked", len(tracked)),
		slog.Int("events", len(events)),
		slog.Int("ancestors", len(sweep)))
	return nil
}
