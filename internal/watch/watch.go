// Package watch adapts fsnotify into a stream of vault change
// notifications keyed by vault-relative path.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change a notification describes.
type Op string

const (
	OpCreated  Op = "created"
	OpModified Op = "modified"
	OpDeleted  Op = "deleted"
	OpRenamed  Op = "renamed"
)

// Notification describes one change to a vault file. OldPath is set
// only for OpRenamed.
type Notification struct {
	Op      Op
	Path    string
	OldPath string
}

// Source is a subscribable stream of vault change notifications.
type Source interface {
	Notifications() <-chan Notification
	Close() error
}

// Watcher is an fsnotify-backed Source. New directories created at
// runtime are added to the watch list automatically. An fsnotify
// Rename on an old path followed by a Create within the pair window is
// collapsed into a single OpRenamed notification; a Rename with no
// matching Create degrades to OpDeleted once the window elapses.
type Watcher struct {
	root   string
	log    *slog.Logger
	pair   time.Duration
	fw     *fsnotify.Watcher
	out    chan Notification
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts a watcher on the vault root.
func New(root string, logger *slog.Logger, pairWindow time.Duration) (*Watcher, error) {
	if pairWindow <= 0 {
		pairWindow = 500 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := addDirsRecursive(fw, abs); err != nil {
		fw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		root:   abs,
		log:    logger,
		pair:   pairWindow,
		fw:     fw,
		out:    make(chan Notification, 256),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx)
	logger.Info("watcher: started", slog.String("root", abs))
	return w, nil
}

// Notifications returns the notification channel. It is closed when
// the watcher stops.
func (w *Watcher) Notifications() <-chan Notification {
	return w.out
}

// Close stops the watcher and closes the notification channel.
func (w *Watcher) Close() error {
	w.cancel()
	<-w.done
	return nil
}

type pendingRename struct {
	oldPath string
	at      time.Time
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.out)
	defer w.fw.Close()

	var pending []pendingRename
	var expireTimer *time.Timer
	var expireCh <-chan time.Time

	armExpire := func() {
		if expireTimer == nil {
			expireTimer = time.NewTimer(w.pair)
			expireCh = expireTimer.C
		} else {
			expireTimer.Reset(w.pair)
		}
	}

	// expire flushes pending renames whose pair window elapsed with no
	// matching create. They become deletions.
	expire := func() {
		now := time.Now()
		kept := pending[:0]
		for _, p := range pending {
			if now.Sub(p.at) >= w.pair {
				w.emit(ctx, Notification{Op: OpDeleted, Path: p.oldPath})
			} else {
				kept = append(kept, p)
			}
		}
		pending = kept
		if len(pending) > 0 {
			armExpire()
		}
	}

	for {
		select {
		case <-ctx.Done():
			if expireTimer != nil {
				expireTimer.Stop()
			}
			w.log.Info("watcher: stopped")
			return

		case <-expireCh:
			expire()

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w.fw, absPath); addErr != nil {
						w.log.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					w.emitDirContents(ctx, absPath)
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(w.root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&fsnotify.Create != 0:
				if len(pending) > 0 {
					// Pair with the oldest outstanding rename.
					old := pending[0]
					pending = pending[1:]
					w.emit(ctx, Notification{Op: OpRenamed, Path: rel, OldPath: old.oldPath})
					continue
				}
				w.emit(ctx, Notification{Op: OpCreated, Path: rel})

			case ev.Op&fsnotify.Write != 0:
				w.emit(ctx, Notification{Op: OpModified, Path: rel})

			case ev.Op&fsnotify.Remove != 0:
				w.emit(ctx, Notification{Op: OpDeleted, Path: rel})

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new
				// path arrives as a separate Create if it stays inside
				// a watched dir.
				pending = append(pending, pendingRename{oldPath: rel, at: time.Now()})
				armExpire()
			}

		case watchErr, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// emitDirContents announces .md files already present in a newly
// created (or moved-in) directory.
func (w *Watcher) emitDirContents(ctx context.Context, dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		w.emit(ctx, Notification{Op: OpCreated, Path: filepath.ToSlash(rel)})
		return nil
	})
}

func (w *Watcher) emit(ctx context.Context, n Notification) {
	select {
	case w.out <- n:
	case <-ctx.Done():
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
