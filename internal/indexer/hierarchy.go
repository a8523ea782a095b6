package indexer

// GoalChildren holds the child document paths of one goal. Arrays
// preserve first-insertion order and never contain duplicates.
type GoalChildren struct {
	Projects []string `json:"projects"`
	Tasks    []string `json:"tasks"`
}

// ProjectChildren holds the child task paths of one project.
type ProjectChildren struct {
	Tasks []string `json:"tasks"`
}

// parentLinks are the normalized hierarchy keys a child references,
// split by the kind of parent the link property names.
type parentLinks struct {
	goals    []string
	projects []string
}

// hierarchy is the parent→children index derived from link properties.
// An entry exists for every parent ever observed, whether it was first
// seen as a document or first referenced by a child; an entry with
// empty arrays is a distinct state from no entry at all. Not
// concurrency-safe: the owning Indexer serializes access.
type hierarchy struct {
	goals    map[string]*GoalChildren
	projects map[string]*ProjectChildren
}

func newHierarchy() *hierarchy {
	return &hierarchy{
		goals:    make(map[string]*GoalChildren),
		projects: make(map[string]*ProjectChildren),
	}
}

func (h *hierarchy) ensureGoal(key string) *GoalChildren {
	if g, ok := h.goals[key]; ok {
		return g
	}
	g := &GoalChildren{}
	h.goals[key] = g
	return g
}

func (h *hierarchy) ensureProject(key string) *ProjectChildren {
	if p, ok := h.projects[key]; ok {
		return p
	}
	p := &ProjectChildren{}
	h.projects[key] = p
	return p
}

// linkChild inserts childPath into the children arrays of every
// referenced parent, creating empty parent entries as needed.
func (h *hierarchy) linkChild(childPath string, childKind Kind, links parentLinks) {
	switch childKind {
	case KindProject:
		for _, key := range links.goals {
			g := h.ensureGoal(key)
			g.Projects = insertUnique(g.Projects, childPath)
		}
	case KindTask:
		for _, key := range links.goals {
			g := h.ensureGoal(key)
			g.Tasks = insertUnique(g.Tasks, childPath)
		}
		for _, key := range links.projects {
			p := h.ensureProject(key)
			p.Tasks = insertUnique(p.Tasks, childPath)
		}
	}
}

// unlinkChild removes childPath from the named children arrays. Parent
// entries persist, possibly with empty arrays.
func (h *hierarchy) unlinkChild(childPath string, childKind Kind, links parentLinks) {
	switch childKind {
	case KindProject:
		for _, key := range links.goals {
			if g, ok := h.goals[key]; ok {
				g.Projects = removeString(g.Projects, childPath)
			}
		}
	case KindTask:
		for _, key := range links.goals {
			if g, ok := h.goals[key]; ok {
				g.Tasks = removeString(g.Tasks, childPath)
			}
		}
		for _, key := range links.projects {
			if p, ok := h.projects[key]; ok {
				p.Tasks = removeString(p.Tasks, childPath)
			}
		}
	}
}

// removeParent drops the entire entry for a parent document that was
// itself deleted.
func (h *hierarchy) removeParent(key string, kind Kind) {
	switch kind {
	case KindGoal:
		delete(h.goals, key)
	case KindProject:
		delete(h.projects, key)
	}
}

func (h *hierarchy) goal(key string) *GoalChildren {
	return h.goals[key]
}

func (h *hierarchy) project(key string) *ProjectChildren {
	return h.projects[key]
}

func insertUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	for i, s := range list {
		if s == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
