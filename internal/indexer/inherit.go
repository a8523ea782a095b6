package indexer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/telos/internal/apperr"
	"github.com/starford/telos/internal/parser"
)

// inheritableOf computes the inheritable subset of a snapshot's
// frontmatter: everything except the configured exclusions, the link
// properties themselves, and null values. Zero, false, and empty
// string are valid inheritable values. Wikilink values are normalized
// to carry an explicit alias.
func (i *Indexer) inheritableOf(s *Snapshot) map[string]any {
	if s == nil {
		return nil
	}
	out := make(map[string]any, len(s.Frontmatter))
	for k, v := range s.Frontmatter {
		if k == i.goalProp || k == i.projectProp {
			continue
		}
		if _, excl := i.excluded[k]; excl {
			continue
		}
		if v == nil {
			continue
		}
		out[k] = parser.EnsureAliasValue(v)
	}
	return out
}

// removal records values retracted from an ancestor's inheritable set
// for one key: either whole-scalar (scalar set, key disappeared) or a
// set of collection members no longer present.
type removal struct {
	scalar  any
	members []any
}

// removedInheritable diffs the previous inheritable set against the
// current one and returns the retraction instructions to apply to
// descendants.
func removedInheritable(prev, cur map[string]any) map[string]removal {
	if len(prev) == 0 {
		return nil
	}
	out := make(map[string]removal)
	for k, oldVal := range prev {
		newVal, still := cur[k]
		oldList, oldIsList := asList(oldVal)
		if !still {
			if oldIsList {
				out[k] = removal{members: oldList}
			} else {
				out[k] = removal{scalar: oldVal}
			}
			continue
		}
		newList, newIsList := asList(newVal)
		if !oldIsList || !newIsList {
			// Scalar transitions are covered by replace-on-merge.
			continue
		}
		have := make(map[string]struct{}, len(newList))
		for _, m := range newList {
			have[memberKey(m)] = struct{}{}
		}
		var gone []any
		for _, m := range oldList {
			if _, ok := have[memberKey(m)]; !ok {
				gone = append(gone, m)
			}
		}
		if len(gone) > 0 {
			out[k] = removal{members: gone}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// applyInheritance merges the ancestor's inheritable values into a
// descendant's frontmatter and applies retractions. Collection meets
// collection as a deduplicated union with members normalized; a scalar
// on either side replaces outright. Removing a collection's last
// member deletes the key rather than leaving an empty list.
func applyInheritance(fm map[string]any, inheritable map[string]any, removed map[string]removal) {
	for k, v := range inheritable {
		existing, ok := fm[k]
		if !ok {
			fm[k] = v
			continue
		}
		exList, exIsList := asList(existing)
		newList, newIsList := asList(v)
		if !exIsList || !newIsList {
			fm[k] = v
			continue
		}
		seen := make(map[string]struct{}, len(exList)+len(newList))
		union := make([]any, 0, len(exList)+len(newList))
		for _, m := range exList {
			m = parser.EnsureAliasValue(m)
			key := memberKey(m)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			union = append(union, m)
		}
		for _, m := range newList {
			key := memberKey(m)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			union = append(union, m)
		}
		fm[k] = union
	}

	for k, rem := range removed {
		existing, ok := fm[k]
		if !ok {
			continue
		}
		if rem.scalar != nil {
			if memberKey(parser.EnsureAliasValue(existing)) == memberKey(rem.scalar) {
				delete(fm, k)
			}
			continue
		}
		gone := make(map[string]struct{}, len(rem.members))
		for _, m := range rem.members {
			gone[memberKey(m)] = struct{}{}
		}
		exList, exIsList := asList(existing)
		if !exIsList {
			if _, hit := gone[memberKey(parser.EnsureAliasValue(existing))]; hit {
				delete(fm, k)
			}
			continue
		}
		kept := make([]any, 0, len(exList))
		for _, m := range exList {
			if _, hit := gone[memberKey(parser.EnsureAliasValue(m))]; hit {
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			delete(fm, k)
		} else {
			fm[k] = kept
		}
	}
}

// propagate pushes an ancestor's inheritable properties to its
// descendants and retracts values removed since the previous snapshot.
// One failed descendant update is logged and does not stop the rest.
func (i *Indexer) propagate(old, cur *Snapshot) {
	inheritable := i.inheritableOf(cur)
	removed := removedInheritable(i.inheritableOf(old), inheritable)
	if len(inheritable) == 0 && len(removed) == 0 {
		return
	}

	targets := i.propagationTargets(cur)
	for _, target := range targets {
		err := i.vault.MutateFrontmatter(target, func(fm map[string]any) {
			applyInheritance(fm, inheritable, removed)
		})
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			i.log.Warn("indexer: propagate failed",
				slog.String("ancestor", cur.Path),
				slog.String("target", target),
				slog.String("error", err.Error()))
		}
	}
	if len(targets) > 0 {
		i.log.Debug("indexer: propagated",
			slog.String("ancestor", cur.Path),
			slog.Int("targets", len(targets)))
	}
}

// propagationTargets resolves the descendants an ancestor writes to.
//
// A changed project reaches only its direct task children. A changed
// goal reaches its child projects, its direct tasks that no child
// project also owns, and the indirect tasks: tasks of child projects
// that are not direct task children. A task linked to both the goal
// and one of its projects is deliberately left to the project's own
// re-entrant propagation, so it is updated once, not twice.
func (i *Indexer) propagationTargets(s *Snapshot) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	switch s.Kind {
	case KindProject:
		p := i.hier.project(s.Key())
		if p == nil {
			return nil
		}
		return append([]string(nil), p.Tasks...)

	case KindGoal:
		g := i.hier.goal(s.Key())
		if g == nil {
			return nil
		}
		direct := make(map[string]struct{}, len(g.Tasks))
		for _, t := range g.Tasks {
			direct[t] = struct{}{}
		}
		via := make(map[string]struct{})
		for _, projPath := range g.Projects {
			if pc := i.hier.project(HierarchyKey(projPath)); pc != nil {
				for _, t := range pc.Tasks {
					via[t] = struct{}{}
				}
			}
		}

		targets := append([]string(nil), g.Projects...)
		for _, t := range g.Tasks {
			if _, both := via[t]; !both {
				targets = append(targets, t)
			}
		}
		for _, projPath := range g.Projects {
			pc := i.hier.project(HierarchyKey(projPath))
			if pc == nil {
				continue
			}
			for _, t := range pc.Tasks {
				if _, both := direct[t]; !both {
					targets = insertUnique(targets, t)
				}
			}
		}
		return targets
	}
	return nil
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// memberKey gives collection members a comparable identity. Strings
// compare after alias normalization so [[a/b]] and [[a/b|b]] dedupe.
func memberKey(v any) string {
	if s, ok := v.(string); ok {
		return "s:" + parser.EnsureAlias(s)
	}
	return fmt.Sprintf("%T:%v", v, v)
}
