package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/telos/internal/indexer"
	"github.com/starford/telos/internal/storage"
	"github.com/starford/telos/internal/testutil"
	"github.com/starford/telos/internal/vault"
)

func testServer(t *testing.T) (*Server, *storage.FS) {
	t.Helper()

	_, fs := testutil.TestVault(t)
	testutil.WriteEntity(t, fs, "Goals/health.md", "Priority: High\n")
	testutil.WriteEntity(t, fs, "Projects/marathon.md", "Goal: \"[[health]]\"\n")
	testutil.WriteEntity(t, fs, "Tasks/buy-shoes.md", "Project: \"[[marathon]]\"\n")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := vault.NewStore(fs)
	idx := indexer.New(logger, store, indexer.Options{
		GoalsDir:    "Goals",
		ProjectsDir: "Projects",
		TasksDir:    "Tasks",
	})
	if err := idx.ScanAllFiles(context.Background()); err != nil {
		t.Fatal(err)
	}

	return New(idx, store), fs
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct call-tool test helper; invoke handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_goal_hierarchy":
		result, err = srv.getGoalHierarchy(ctx, req)
	case "get_project_hierarchy":
		result, err = srv.getProjectHierarchy(ctx, req)
	case "list_goals":
		result, err = srv.listGoals(ctx, req)
	case "list_projects":
		result, err = srv.listProjects(ctx, req)
	case "classify_path":
		result, err = srv.classifyPath(ctx, req)
	case "read_entity":
		result, err = srv.readEntity(ctx, req)
	case "rescan_vault":
		result, err = srv.rescanVault(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetGoalHierarchyTool(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_goal_hierarchy", map[string]interface{}{"path": "health.md"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, "Projects/marathon.md") {
		t.Errorf("goal hierarchy missing project: %q", text)
	}

	r = callTool(t, srv, "get_goal_hierarchy", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for unknown goal")
	}
}

func TestGetProjectHierarchyTool(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_project_hierarchy", map[string]interface{}{"path": "Projects/marathon.md"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "Tasks/buy-shoes.md") {
		t.Errorf("project hierarchy missing task: %q", resultText(r))
	}
}

func TestListTools(t *testing.T) {
	srv, _ := testServer(t)

	if got := resultText(callTool(t, srv, "list_goals", nil)); got != "health.md" {
		t.Errorf("list_goals = %q", got)
	}
	if got := resultText(callTool(t, srv, "list_projects", nil)); got != "marathon.md" {
		t.Errorf("list_projects = %q", got)
	}
}

func TestClassifyPathTool(t *testing.T) {
	srv, _ := testServer(t)

	if got := resultText(callTool(t, srv, "classify_path", map[string]interface{}{"path": "Tasks/buy-shoes.md"})); !strings.HasSuffix(got, ": task") {
		t.Errorf("classify = %q", got)
	}
	if got := resultText(callTool(t, srv, "classify_path", map[string]interface{}{"path": "Notes/x.md"})); !strings.HasSuffix(got, ": untracked") {
		t.Errorf("classify untracked = %q", got)
	}
}

func TestReadEntityTool(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_entity", map[string]interface{}{"path": "Goals/health.md"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "Priority") {
		t.Errorf("snapshot missing frontmatter: %q", resultText(r))
	}

	r = callTool(t, srv, "read_entity", map[string]interface{}{"path": "missing.md"})
	if !r.IsError {
		t.Error("expected error for missing entity")
	}
}

func TestRescanVaultTool(t *testing.T) {
	srv, fs := testServer(t)

	if err := fs.Write("Goals/wealth.md", []byte("---\nPriority: Low\n---\n")); err != nil {
		t.Fatal(err)
	}
	r := callTool(t, srv, "rescan_vault", nil)
	if r.IsError {
		t.Fatalf("rescan error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "2 goals") {
		t.Errorf("rescan summary = %q", resultText(r))
	}
}
