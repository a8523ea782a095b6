package indexer

import (
	"testing"
)

func TestApplyDocument_SkipsUntrackedAndFrontmatterless(t *testing.T) {
	idx, _, _ := testEnv(t)

	if ev := idx.applyDocument(docFor("Notes/x.md", map[string]any{"a": 1})); ev != nil {
		t.Errorf("untracked path should build no event, got %+v", ev)
	}
	if ev := idx.applyDocument(docFor("Goals/g.md", nil)); ev != nil {
		t.Errorf("frontmatter-less document should build no event, got %+v", ev)
	}
}

func TestApplyDocument_GoalKnownWithoutChildren(t *testing.T) {
	idx, _, _ := testEnv(t)

	ev := idx.applyDocument(docFor("Goals/g.md", map[string]any{"Priority": "High"}))
	if ev == nil || ev.Type != EventChanged || ev.Kind != KindGoal {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Old != nil {
		t.Error("first observation should carry no old snapshot")
	}

	h := idx.GetGoalHierarchy("Goals/g.md")
	if h == nil {
		t.Fatal("goal entry must exist from first classification, even childless")
	}
	if len(h.Projects) != 0 || len(h.Tasks) != 0 {
		t.Errorf("expected empty children, got %+v", h)
	}
	if idx.GetGoalHierarchy("Goals/other.md") != nil {
		t.Error("unknown goal must be nil, not an empty entry")
	}
}

func TestApplyDocument_MultiParentFanOut(t *testing.T) {
	idx, _, _ := testEnv(t)

	idx.applyDocument(docFor("Tasks/t.md", map[string]any{
		"Goal": []any{"[[g1]]", "[[g2]]", "[[g3]]"},
	}))

	for _, g := range []string{"g1.md", "g2.md", "g3.md"} {
		h := idx.GetGoalHierarchy(g)
		if h == nil {
			t.Fatalf("goal %s should exist from child reference", g)
		}
		if !containsString(h.Tasks, "Tasks/t.md") {
			t.Errorf("goal %s missing task: %+v", g, h.Tasks)
		}
	}
}

func TestApplyDocument_NoDuplicateLinkage(t *testing.T) {
	idx, _, _ := testEnv(t)

	fm := map[string]any{"Goal": "[[g]]", "Project": "[[p]]"}
	idx.applyDocument(docFor("Tasks/t.md", fm))
	idx.applyDocument(docFor("Tasks/t.md", fm))

	if h := idx.GetGoalHierarchy("g.md"); len(h.Tasks) != 1 {
		t.Errorf("duplicate task linkage in goal: %+v", h.Tasks)
	}
	if h := idx.GetProjectHierarchy("p.md"); len(h.Tasks) != 1 {
		t.Errorf("duplicate task linkage in project: %+v", h.Tasks)
	}
}

func TestApplyDocument_Reparenting(t *testing.T) {
	idx, _, _ := testEnv(t)

	idx.applyDocument(docFor("Tasks/t.md", map[string]any{"Goal": "[[old]]"}))
	idx.applyDocument(docFor("Tasks/t.md", map[string]any{"Goal": "[[new]]"}))

	if h := idx.GetGoalHierarchy("old.md"); containsString(h.Tasks, "Tasks/t.md") {
		t.Error("stale edge survived reparenting")
	}
	if h := idx.GetGoalHierarchy("new.md"); !containsString(h.Tasks, "Tasks/t.md") {
		t.Error("new edge missing after reparenting")
	}
}

func TestApplyDelete_Symmetry(t *testing.T) {
	idx, _, _ := testEnv(t)

	idx.applyDocument(docFor("Goals/g.md", map[string]any{"Priority": "High"}))
	idx.applyDocument(docFor("Tasks/t.md", map[string]any{"Goal": "[[g]]"}))

	// Deleting the task leaves the goal entry, minus the task.
	ev := idx.applyDelete("Tasks/t.md")
	if ev == nil || ev.Type != EventDeleted || ev.Kind != KindTask {
		t.Fatalf("unexpected delete event: %+v", ev)
	}
	h := idx.GetGoalHierarchy("Goals/g.md")
	if h == nil {
		t.Fatal("goal entry should survive child deletion")
	}
	if containsString(h.Tasks, "Tasks/t.md") {
		t.Error("deleted task still linked")
	}

	// Deleting the goal removes the entire entry.
	if ev := idx.applyDelete("Goals/g.md"); ev == nil {
		t.Fatal("expected delete event for goal")
	}
	if idx.GetGoalHierarchy("Goals/g.md") != nil {
		t.Error("deleted goal entry should be gone")
	}
	if idx.GetSnapshot("Goals/g.md") != nil {
		t.Error("deleted goal snapshot should be gone")
	}
}

func TestApplyDelete_UnknownPathIsNoop(t *testing.T) {
	idx, _, _ := testEnv(t)
	if ev := idx.applyDelete("Tasks/never-seen.md"); ev != nil {
		t.Errorf("delete of unknown path should be silent, got %+v", ev)
	}
}

func TestApplyDocument_SnapshotReplaced(t *testing.T) {
	idx, _, _ := testEnv(t)

	idx.applyDocument(docFor("Goals/g.md", map[string]any{"A": 1, "B": 2}))
	ev := idx.applyDocument(docFor("Goals/g.md", map[string]any{"B": 3}))

	if ev.Old == nil || ev.Old.Frontmatter["A"] != 1 {
		t.Errorf("old snapshot not carried: %+v", ev.Old)
	}
	snap := idx.GetSnapshot("Goals/g.md")
	if _, stale := snap.Frontmatter["A"]; stale {
		t.Error("snapshot must be replaced, not merged")
	}
}
