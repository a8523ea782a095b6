package indexer

import (
	"sort"
	"strings"
)

// Kind classifies a tracked document.
type Kind string

const (
	KindGoal    Kind = "goal"
	KindProject Kind = "project"
	KindTask    Kind = "task"
)

// IsAncestor reports whether documents of this kind propagate
// inherited properties to descendants.
func (k Kind) IsAncestor() bool {
	return k == KindGoal || k == KindProject
}

// Classifier maps a vault path to an entity kind based on configured
// directory prefixes. Deterministic and total: paths outside every
// configured directory are untracked.
type Classifier struct {
	prefixes []prefixRule
}

type prefixRule struct {
	dir  string // normalized, with trailing slash
	kind Kind
}

// NewClassifier builds a classifier for the three entity directories.
// An empty directory disables that kind (the two-level Goal/Task
// variant leaves projectsDir empty). Trailing slashes in configuration
// are tolerated.
func NewClassifier(goalsDir, projectsDir, tasksDir string) Classifier {
	var rules []prefixRule
	add := func(dir string, kind Kind) {
		dir = strings.Trim(strings.TrimSpace(dir), "/")
		if dir == "" {
			return
		}
		rules = append(rules, prefixRule{dir: dir + "/", kind: kind})
	}
	add(goalsDir, KindGoal)
	add(projectsDir, KindProject)
	add(tasksDir, KindTask)

	// Longest prefix wins, so a task directory nested inside the
	// projects directory classifies correctly.
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].dir) > len(rules[j].dir)
	})
	return Classifier{prefixes: rules}
}

// Classify returns the entity kind for a vault-relative path, or false
// when the path is untracked. A path naming a configured directory
// itself (no trailing content) is untracked.
func (c Classifier) Classify(path string) (Kind, bool) {
	for _, r := range c.prefixes {
		if strings.HasPrefix(path, r.dir) && len(path) > len(r.dir) {
			return r.kind, true
		}
	}
	return "", false
}
