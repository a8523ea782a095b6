package indexer

import "testing"

func TestClassify(t *testing.T) {
	cls := NewClassifier("Goals", "Projects", "Tasks")

	cases := []struct {
		path    string
		want    Kind
		tracked bool
	}{
		{"Goals/launch.md", KindGoal, true},
		{"Projects/site/redesign.md", KindProject, true},
		{"Tasks/t1.md", KindTask, true},
		{"Notes/misc.md", "", false},
		{"Goals", "", false},
		{"Goals/", "", false},
		{"GoalsExtra/x.md", "", false},
	}
	for _, c := range cases {
		kind, ok := cls.Classify(c.path)
		if ok != c.tracked || kind != c.want {
			t.Errorf("Classify(%q) = (%q, %v), want (%q, %v)", c.path, kind, ok, c.want, c.tracked)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	cls := NewClassifier("Goals", "Projects", "Tasks")
	for range 5 {
		kind, ok := cls.Classify("Projects/p.md")
		if !ok || kind != KindProject {
			t.Fatalf("classification changed between calls: (%q, %v)", kind, ok)
		}
	}
}

func TestClassify_LongestPrefixWins(t *testing.T) {
	cls := NewClassifier("Work/Goals", "Work", "Work/Goals/Tasks")

	if kind, _ := cls.Classify("Work/Goals/Tasks/t.md"); kind != KindTask {
		t.Errorf("nested tasks dir: got %q", kind)
	}
	if kind, _ := cls.Classify("Work/Goals/g.md"); kind != KindGoal {
		t.Errorf("nested goals dir: got %q", kind)
	}
	if kind, _ := cls.Classify("Work/p.md"); kind != KindProject {
		t.Errorf("outer dir: got %q", kind)
	}
}

func TestClassify_TrailingSlashConfig(t *testing.T) {
	cls := NewClassifier("Goals/", "Projects/", "Tasks/")
	if kind, ok := cls.Classify("Goals/g.md"); !ok || kind != KindGoal {
		t.Errorf("trailing slash config broke classification: (%q, %v)", kind, ok)
	}
}

func TestClassify_TwoLevelVariant(t *testing.T) {
	cls := NewClassifier("Goals", "", "Tasks")
	if _, ok := cls.Classify("Projects/p.md"); ok {
		t.Error("empty projects dir should leave project paths untracked")
	}
	if kind, _ := cls.Classify("Tasks/t.md"); kind != KindTask {
		t.Error("two-level variant should still classify tasks")
	}
}
