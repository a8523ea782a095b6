package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/starford/telos/internal/apperr"
	"github.com/starford/telos/internal/catalog"
	"github.com/starford/telos/internal/indexer"
)

// Service coordinates index and catalog operations for the API layer.
type Service struct {
	idx *indexer.Indexer
	db  *catalog.DB
}

// NewService creates a new API service. db may be nil when the catalog
// is disabled; catalog-backed endpoints then report unavailability.
func NewService(idx *indexer.Indexer, db *catalog.DB) *Service {
	return &Service{idx: idx, db: db}
}

// GoalHierarchy returns a goal's children, keyed by the path or
// hierarchy key the caller supplied.
func (s *Service) GoalHierarchy(path string) (*GoalHierarchy, error) {
	g := s.idx.GetGoalHierarchy(path)
	if g == nil {
		return nil, fmt.Errorf("goal %s: %w", path, apperr.ErrNotFound)
	}
	return &GoalHierarchy{
		Key:      indexer.HierarchyKey(path),
		Projects: emptyIfNil(g.Projects),
		Tasks:    emptyIfNil(g.Tasks),
	}, nil
}

// ProjectHierarchy returns a project's children.
func (s *Service) ProjectHierarchy(path string) (*ProjectHierarchy, error) {
	p := s.idx.GetProjectHierarchy(path)
	if p == nil {
		return nil, fmt.Errorf("project %s: %w", path, apperr.ErrNotFound)
	}
	return &ProjectHierarchy{
		Key:   indexer.HierarchyKey(path),
		Tasks: emptyIfNil(p.Tasks),
	}, nil
}

// Goals returns every known goal key, sorted.
func (s *Service) Goals() []string {
	keys := s.idx.GetAllGoals()
	sort.Strings(keys)
	return keys
}

// Projects returns every known project key, sorted.
func (s *Service) Projects() []string {
	keys := s.idx.GetAllProjects()
	sort.Strings(keys)
	return keys
}

// Classify reports the entity kind for a vault path.
func (s *Service) Classify(path string) (string, bool) {
	kind, ok := s.idx.GetFileType(path)
	return string(kind), ok
}

// Rescan rebuilds the index caches from the vault.
func (s *Service) Rescan(ctx context.Context) error {
	return s.idx.ScanAllFiles(ctx)
}

// Entities lists catalog rows, optionally filtered by kind.
func (s *Service) Entities(kind string, limit, offset int) ([]EntityItem, int, error) {
	if s.db == nil {
		return nil, 0, fmt.Errorf("catalog disabled: %w", apperr.ErrNotFound)
	}
	rows, total, err := s.db.ListEntities(kind, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]EntityItem, len(rows))
	for i, r := range rows {
		items[i] = EntityItem{
			Path:        r.Path,
			Kind:        r.Kind,
			Title:       r.Title,
			Frontmatter: r.Frontmatter,
			UpdatedAt:   r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Stats returns entity counts by kind from the catalog.
func (s *Service) Stats() (map[string]int, error) {
	if s.db == nil {
		return map[string]int{}, nil
	}
	return s.db.CountByKind()
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// EntityItem is one catalog row in a list response.
type EntityItem struct {
	Path        string         `json:"path"`
	Kind        string         `json:"kind"`
	Title       string         `json:"title"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
