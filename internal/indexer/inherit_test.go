package indexer

import (
	"reflect"
	"sort"
	"testing"
)

func TestInheritableOf_Exclusions(t *testing.T) {
	idx, _, _ := testEnv(t)
	idx.excluded = map[string]struct{}{"Private": {}}

	snap := &Snapshot{Kind: KindGoal, Frontmatter: map[string]any{
		"Goal":     "[[parent]]", // link property, never inherited
		"Project":  "[[p]]",
		"Private":  "secret",
		"Absent":   nil,
		"Priority": "High",
		"Zero":     0,
		"False":    false,
		"Empty":    "",
	}}

	got := idx.inheritableOf(snap)
	for _, banned := range []string{"Goal", "Project", "Private", "Absent"} {
		if _, ok := got[banned]; ok {
			t.Errorf("%s must not be inheritable", banned)
		}
	}
	for _, kept := range []string{"Priority", "Zero", "False", "Empty"} {
		if _, ok := got[kept]; !ok {
			t.Errorf("%s must be inheritable", kept)
		}
	}
}

func TestInheritableOf_AliasNormalization(t *testing.T) {
	idx, _, _ := testEnv(t)
	snap := &Snapshot{Frontmatter: map[string]any{
		"Related": "[[Areas/Health]]",
		"Refs":    []any{"[[a/b]]", "[[c]]"},
	}}
	got := idx.inheritableOf(snap)
	if got["Related"] != "[[Areas/Health|Health]]" {
		t.Errorf("Related = %v", got["Related"])
	}
	want := []any{"[[a/b|b]]", "[[c]]"}
	if !reflect.DeepEqual(got["Refs"], want) {
		t.Errorf("Refs = %v, want %v", got["Refs"], want)
	}
}

func TestApplyInheritance_UnionLaw(t *testing.T) {
	fm := map[string]any{"Tags": []any{"b", "c"}}
	applyInheritance(fm, map[string]any{"Tags": []any{"a", "b"}}, nil)

	got := memberSet(t, fm["Tags"])
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("union = %v, want %v", got, want)
	}
}

func TestApplyInheritance_ReplaceLaw(t *testing.T) {
	fm := map[string]any{"Priority": "Low", "Status": []any{"open"}}
	applyInheritance(fm, map[string]any{"Priority": "High", "Status": "closed"}, nil)

	if fm["Priority"] != "High" {
		t.Errorf("scalar must replace outright, got %v", fm["Priority"])
	}
	if fm["Status"] != "closed" {
		t.Errorf("scalar over list must replace, got %v", fm["Status"])
	}
}

func TestApplyInheritance_RemovalLaw(t *testing.T) {
	prev := map[string]any{"Tags": []any{"a", "b", "c"}}
	cur := map[string]any{"Tags": []any{"a", "c"}}
	removed := removedInheritable(prev, cur)

	fm := map[string]any{"Tags": []any{"a", "b", "c", "own"}}
	applyInheritance(fm, cur, removed)

	got := memberSet(t, fm["Tags"])
	if containsString(got, "b") {
		t.Errorf("retracted member survived: %v", got)
	}
	for _, keep := range []string{"a", "c", "own"} {
		if !containsString(got, keep) {
			t.Errorf("member %q should remain: %v", keep, got)
		}
	}
}

func TestApplyInheritance_RemovalDeletesEmptyKey(t *testing.T) {
	prev := map[string]any{"Tags": []any{"only"}}
	removed := removedInheritable(prev, map[string]any{})

	fm := map[string]any{"Tags": []any{"only"}}
	applyInheritance(fm, nil, removed)
	if _, ok := fm["Tags"]; ok {
		t.Errorf("emptied collection should delete the key, got %v", fm["Tags"])
	}
}

func TestApplyInheritance_ScalarKeyRemoval(t *testing.T) {
	prev := map[string]any{"Priority": "High"}
	removed := removedInheritable(prev, map[string]any{})

	fm := map[string]any{"Priority": "High"}
	applyInheritance(fm, nil, removed)
	if _, ok := fm["Priority"]; ok {
		t.Error("removed scalar key should be deleted from descendant")
	}

	// A descendant that diverged keeps its own value.
	fm2 := map[string]any{"Priority": "Custom"}
	applyInheritance(fm2, nil, removed)
	if fm2["Priority"] != "Custom" {
		t.Error("divergent descendant value should survive scalar retraction")
	}
}

func TestPropagationTargets_Goal(t *testing.T) {
	idx, _, _ := testEnv(t)

	idx.applyDocument(docFor("Goals/g.md", map[string]any{"Priority": "High"}))
	idx.applyDocument(docFor("Projects/p.md", map[string]any{"Goal": "[[g]]"}))
	// direct only
	idx.applyDocument(docFor("Tasks/direct.md", map[string]any{"Goal": "[[g]]"}))
	// both goal- and project-linked: left to the project's own propagation
	idx.applyDocument(docFor("Tasks/both.md", map[string]any{"Goal": "[[g]]", "Project": "[[p]]"}))
	// project-linked only: the indirect-task shortcut
	idx.applyDocument(docFor("Tasks/indirect.md", map[string]any{"Project": "[[p]]"}))

	targets := idx.propagationTargets(idx.GetSnapshot("Goals/g.md"))
	sort.Strings(targets)
	want := []string{"Projects/p.md", "Tasks/direct.md", "Tasks/indirect.md"}
	if !reflect.DeepEqual(targets, want) {
		t.Errorf("targets = %v, want %v", targets, want)
	}
}

func TestPropagationTargets_Project(t *testing.T) {
	idx, _, _ := testEnv(t)

	idx.applyDocument(docFor("Projects/p.md", map[string]any{"Goal": "[[g]]"}))
	idx.applyDocument(docFor("Tasks/t1.md", map[string]any{"Project": "[[p]]"}))
	idx.applyDocument(docFor("Tasks/t2.md", map[string]any{"Project": "[[p]]"}))

	targets := idx.propagationTargets(idx.GetSnapshot("Projects/p.md"))
	sort.Strings(targets)
	want := []string{"Tasks/t1.md", "Tasks/t2.md"}
	if !reflect.DeepEqual(targets, want) {
		t.Errorf("targets = %v, want %v", targets, want)
	}
}

func TestPropagate_WritesDescendants(t *testing.T) {
	idx, vs, fs := testEnv(t)
	idx.initialBuildDone = true

	writeDoc(t, fs, "Goals/g.md", "Priority: High\n")
	writeDoc(t, fs, "Projects/p.md", "Goal: \"[[g]]\"\n")
	writeDoc(t, fs, "Tasks/t.md", "Project: \"[[p]]\"\n")

	applyPath(t, idx, vs, "Projects/p.md")
	applyPath(t, idx, vs, "Tasks/t.md")
	applyPath(t, idx, vs, "Goals/g.md") // ancestor change triggers propagation

	p, _ := vs.ReadDocument("Projects/p.md")
	if p.Frontmatter["Priority"] != "High" {
		t.Errorf("project did not inherit: %v", p.Frontmatter)
	}
	// Indirect task (project-linked only) receives the goal's value directly.
	task, _ := vs.ReadDocument("Tasks/t.md")
	if task.Frontmatter["Priority"] != "High" {
		t.Errorf("indirect task did not inherit: %v", task.Frontmatter)
	}
}

func TestPropagate_EndToEndScenario(t *testing.T) {
	idx, vs, fs := testEnv(t)
	idx.initialBuildDone = true

	writeDoc(t, fs, "Goals/g.md", "Priority: High\n")
	writeDoc(t, fs, "Projects/p.md", "Goal: \"[[g]]\"\n")
	writeDoc(t, fs, "Tasks/t.md", "Goal: \"[[g]]\"\nProject: \"[[p]]\"\n")

	applyPath(t, idx, vs, "Projects/p.md")
	applyPath(t, idx, vs, "Tasks/t.md")
	applyPath(t, idx, vs, "Goals/g.md")

	// The goal application pushed High into P's file; T is linked both
	// ways, so it waits for P's own propagation hop.
	writeDoc(t, fs, "Goals/g.md", "Priority: Critical\n")
	applyPath(t, idx, vs, "Goals/g.md")

	p, _ := vs.ReadDocument("Projects/p.md")
	if p.Frontmatter["Priority"] != "Critical" {
		t.Fatalf("project should carry Critical: %v", p.Frontmatter)
	}
	task, _ := vs.ReadDocument("Tasks/t.md")
	if task.Frontmatter["Priority"] == "Critical" {
		t.Fatal("dual-linked task must not be updated by the goal directly")
	}

	// P's mutation re-enters the pipeline as a change; its propagation
	// delivers the value to the task.
	applyPath(t, idx, vs, "Projects/p.md")
	task, _ = vs.ReadDocument("Tasks/t.md")
	if task.Frontmatter["Priority"] != "Critical" {
		t.Fatalf("task should receive Critical via the project hop: %v", task.Frontmatter)
	}
}

func TestPropagate_RetractsRemovedValues(t *testing.T) {
	idx, vs, fs := testEnv(t)
	idx.initialBuildDone = true

	writeDoc(t, fs, "Goals/g.md", "Tags:\n  - a\n  - b\n  - c\n")
	writeDoc(t, fs, "Projects/p.md", "Goal: \"[[g]]\"\n")

	applyPath(t, idx, vs, "Projects/p.md")
	applyPath(t, idx, vs, "Goals/g.md")

	writeDoc(t, fs, "Goals/g.md", "Tags:\n  - a\n  - c\n")
	applyPath(t, idx, vs, "Goals/g.md")

	p, _ := vs.ReadDocument("Projects/p.md")
	got := memberSet(t, p.Frontmatter["Tags"])
	if containsString(got, "b") {
		t.Errorf("retracted tag survived: %v", got)
	}
	if !containsString(got, "a") || !containsString(got, "c") {
		t.Errorf("surviving tags missing: %v", got)
	}
}

func TestPropagate_FailedTargetDoesNotAbort(t *testing.T) {
	idx, vs, fs := testEnv(t)
	idx.initialBuildDone = true

	writeDoc(t, fs, "Goals/g.md", "Priority: High\n")
	writeDoc(t, fs, "Tasks/ok.md", "Goal: \"[[g]]\"\n")

	applyPath(t, idx, vs, "Tasks/ok.md")
	// A task that is linked in the cache but missing on disk.
	idx.applyDocument(docFor("Tasks/gone.md", map[string]any{"Goal": "[[g]]"}))

	applyPath(t, idx, vs, "Goals/g.md")

	ok, _ := vs.ReadDocument("Tasks/ok.md")
	if ok.Frontmatter["Priority"] != "High" {
		t.Errorf("surviving target should still be updated: %v", ok.Frontmatter)
	}
}

// memberSet renders a frontmatter list value as sorted strings.
func memberSet(t *testing.T, v any) []string {
	t.Helper()
	list, ok := asList(v)
	if !ok {
		t.Fatalf("value is not a list: %v", v)
	}
	out := make([]string, 0, len(list))
	for _, m := range list {
		s, ok := m.(string)
		if !ok {
			t.Fatalf("non-string member: %v", m)
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
