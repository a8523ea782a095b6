// Package indexer maintains a live, incrementally updated index of the
// Goal/Project/Task hierarchy derived from vault frontmatter, and
// propagates inherited properties down that hierarchy as ancestors
// change.
package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/telos/internal/vault"
	"github.com/starford/telos/internal/watch"
)

// Options configures an Indexer.
type Options struct {
	GoalsDir    string
	ProjectsDir string // empty enables the two-level Goal/Task variant
	TasksDir    string

	GoalProperty       string // link property naming a parent goal
	ProjectProperty    string // link property naming a parent project
	ExcludedProperties []string

	Debounce     time.Duration // per-path coalescing window for create/modify
	RenameSettle time.Duration // hold window before rename resynchronization
	ScanWorkers  int           // bounded concurrency for bulk resolution
}

func (o *Options) applyDefaults() {
	if o.GoalProperty == "" {
		o.GoalProperty = "Goal"
	}
	if o.ProjectProperty == "" {
		o.ProjectProperty = "Project"
	}
	if o.Debounce <= 0 {
		o.Debounce = 300 * time.Millisecond
	}
	if o.RenameSettle <= 0 {
		o.RenameSettle = time.Second
	}
	if o.ScanWorkers <= 0 {
		o.ScanWorkers = 10
	}
}

// Indexer owns the relationship snapshot store and the hierarchical
// index, feeding them from the change notification stream and bulk
// rescans. Instances are independent; none of the state is shared.
type Indexer struct {
	log   *slog.Logger
	vault *vault.Store
	cls   Classifier

	goalProp     string
	projectProp  string
	excluded     map[string]struct{}
	debounce     time.Duration
	renameSettle time.Duration
	scanWorkers  int

	mu               sync.RWMutex
	snapshots        map[string]*Snapshot
	hier             *hierarchy
	initialBuildDone bool

	// procMu serializes whole read-then-apply sequences, so a fired
	// debounce timer and a synchronous delete for the same path cannot
	// interleave between the read and the apply.
	procMu sync.Mutex

	timerMu sync.Mutex
	timers  map[string]*time.Timer

	subMu sync.Mutex
	subs  map[chan Event]struct{}

	cancel  context.CancelFunc
	stopped chan struct{}
	started bool
}

// New creates an Indexer over the given vault store. Call Start to
// begin consuming notifications.
func New(logger *slog.Logger, store *vault.Store, opts Options) *Indexer {
	opts.applyDefaults()
	excluded := make(map[string]struct{}, len(opts.ExcludedProperties))
	for _, p := range opts.ExcludedProperties {
		excluded[p] = struct{}{}
	}
	return &Indexer{
		log:          logger,
		vault:        store,
		cls:          NewClassifier(opts.GoalsDir, opts.ProjectsDir, opts.TasksDir),
		goalProp:     opts.GoalProperty,
		projectProp:  opts.ProjectProperty,
		excluded:     excluded,
		debounce:     opts.Debounce,
		renameSettle: opts.RenameSettle,
		scanWorkers:  opts.ScanWorkers,
		snapshots:    make(map[string]*Snapshot),
		hier:         newHierarchy(),
		timers:       make(map[string]*time.Timer),
		subs:         make(map[chan Event]struct{}),
	}
}

// Start begins consuming change notifications from src. When the
// required entity directories are not configured the Indexer logs a
// warning and simply does not start: no caches are built and no events
// are emitted.
func (i *Indexer) Start(ctx context.Context, src watch.Source) {
	if len(i.cls.prefixes) == 0 {
		i.log.Warn("indexer: no entity directories configured, not starting")
		return
	}
	if i.started {
		return
	}
	i.started = true

	runCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.stopped = make(chan struct{})

	go func() {
		defer close(i.stopped)
		for {
			select {
			case <-runCtx.Done():
				return
			case n, ok := <-src.Notifications():
				if !ok {
					return
				}
				i.handleNotification(n)
			}
		}
	}()
	i.log.Info("indexer: started")
}

// Stop abandons in-flight timers, drops all in-memory caches, and
// closes every subscriber channel. The caches are rebuilt from the
// vault on the next start; nothing persists.
func (i *Indexer) Stop() {
	if i.started {
		i.cancel()
		<-i.stopped
		i.started = false
	}
	i.cancelAllTimers()

	i.mu.Lock()
	i.snapshots = make(map[string]*Snapshot)
	i.hier = newHierarchy()
	i.initialBuildDone = false
	i.mu.Unlock()

	i.subMu.Lock()
	for ch := range i.subs {
		close(ch)
		delete(i.subs, ch)
	}
	i.subMu.Unlock()
	i.log.Info("indexer: stopped")
}

// Subscribe returns a channel of cache update events. Slow consumers
// drop events rather than blocking the pipeline.
func (i *Indexer) Subscribe() chan Event {
	ch := make(chan Event, 64)
	i.subMu.Lock()
	i.subs[ch] = struct{}{}
	i.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (i *Indexer) Unsubscribe(ch chan Event) {
	i.subMu.Lock()
	defer i.subMu.Unlock()
	if _, ok := i.subs[ch]; ok {
		delete(i.subs, ch)
		close(ch)
	}
}

func (i *Indexer) publish(ev Event) {
	i.subMu.Lock()
	defer i.subMu.Unlock()
	for ch := range i.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// GetFileType classifies a vault path, reporting false for untracked
// paths. Pure and deterministic for a fixed configuration.
func (i *Indexer) GetFileType(path string) (Kind, bool) {
	return i.cls.Classify(path)
}

// GetSnapshot returns a copy of the last observed snapshot for a path.
func (i *Indexer) GetSnapshot(path string) *Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	s, ok := i.snapshots[path]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// GetGoalHierarchy returns a copy of a goal's children, or nil when
// the goal is unknown. An entry with empty arrays means the goal is
// known but childless; that state is distinct from nil.
func (i *Indexer) GetGoalHierarchy(path string) *GoalChildren {
	i.mu.RLock()
	defer i.mu.RUnlock()
	g := i.hier.goal(HierarchyKey(path))
	if g == nil {
		return nil
	}
	return &GoalChildren{
		Projects: append([]string(nil), g.Projects...),
		Tasks:    append([]string(nil), g.Tasks...),
	}
}

// GetProjectHierarchy returns a copy of a project's children, or nil
// when the project is unknown.
func (i *Indexer) GetProjectHierarchy(path string) *ProjectChildren {
	i.mu.RLock()
	defer i.mu.RUnlock()
	p := i.hier.project(HierarchyKey(path))
	if p == nil {
		return nil
	}
	return &ProjectChildren{Tasks: append([]string(nil), p.Tasks...)}
}

// GetAllGoals returns every known goal hierarchy key.
func (i *Indexer) GetAllGoals() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]string, 0, len(i.hier.goals))
	for k := range i.hier.goals {
		out = append(out, k)
	}
	return out
}

// GetAllProjects returns every known project hierarchy key.
func (i *Indexer) GetAllProjects() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]string, 0, len(i.hier.projects))
	for k := range i.hier.projects {
		out = append(out, k)
	}
	return out
}
