// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Telos hierarchy tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/telos/internal/indexer"
	"github.com/starford/telos/internal/vault"
)

// Server wraps the MCP server with Telos tools.
type Server struct {
	mcp   *server.MCPServer
	idx   *indexer.Indexer
	store *vault.Store
}

// New creates a new MCP server with all Telos tools registered.
func New(idx *indexer.Indexer, store *vault.Store) *Server {
	s := &Server{idx: idx, store: store}

	s.mcp = server.NewMCPServer(
		"Telos",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_goal_hierarchy",
		mcp.WithDescription("Get the child projects and tasks of a goal."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Goal path or hierarchy key (e.g. Goals/health.md or health.md)")),
	), s.getGoalHierarchy)

	s.mcp.AddTool(mcp.NewTool("get_project_hierarchy",
		mcp.WithDescription("Get the child tasks of a project."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project path or hierarchy key")),
	), s.getProjectHierarchy)

	s.mcp.AddTool(mcp.NewTool("list_goals",
		mcp.WithDescription("List every known goal key."),
	), s.listGoals)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List every known project key."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("classify_path",
		mcp.WithDescription("Report whether a vault path is a goal, project, or task file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
	), s.classifyPath)

	s.mcp.AddTool(mcp.NewTool("read_entity",
		mcp.WithDescription("Read the frontmatter snapshot of a tracked entity."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the entity file")),
	), s.readEntity)

	s.mcp.AddTool(mcp.NewTool("rescan_vault",
		mcp.WithDescription("Rebuild the hierarchy index from the vault."),
	), s.rescanVault)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getGoalHierarchy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g := s.idx.GetGoalHierarchy(path)
	if g == nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown goal: %s", path)), nil
	}
	out, _ := json.MarshalIndent(g, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getProjectHierarchy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := s.idx.GetProjectHierarchy(path)
	if p == nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown project: %s", path)), nil
	}
	out, _ := json.MarshalIndent(p, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listGoals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := s.idx.GetAllGoals()
	if len(keys) == 0 {
		return mcp.NewToolResultText("no goals indexed"), nil
	}
	return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := s.idx.GetAllProjects()
	if len(keys) == 0 {
		return mcp.NewToolResultText("no projects indexed"), nil
	}
	return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
}

func (s *Server) classifyPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, tracked := s.idx.GetFileType(path)
	if !tracked {
		return mcp.NewToolResultText(fmt.Sprintf("%s: untracked", path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", path, kind)), nil
}

func (s *Server) readEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap := s.idx.GetSnapshot(path)
	if snap != nil {
		out, _ := json.MarshalIndent(snap, "", "  ")
		return mcp.NewToolResultText(string(out)), nil
	}
	// Not in the cache (untracked or not yet scanned); read directly.
	doc, err := s.store.ReadDocument(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) rescanVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.idx.ScanAllFiles(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"rescan complete: %d goals, %d projects",
		len(s.idx.GetAllGoals()), len(s.idx.GetAllProjects()))), nil
}
