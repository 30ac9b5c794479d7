// Package mcp exposes the board store as MCP tools over stdio, so an
// agent can read and move issues through the same operations the CLI
// and REST API use.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/kb/internal/board"
	"github.com/joescharf/kb/internal/models"
)

// Server wraps the board store and exposes it as MCP tools.
type Server struct {
	store     *board.Store
	principal board.Principal
}

// NewServer creates the MCP server wrapper. The principal is the acting
// user for all mutating tools.
func NewServer(s *board.Store, principal board.Principal) *Server {
	return &Server{store: s, principal: principal}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("kb", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.getIssueTool())
	srv.AddTool(s.boardTool())
	srv.AddTool(s.moveIssueTool())
	srv.AddTool(s.undoMoveTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// kb_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kb_list_issues",
		mcp.WithDescription("List board issues as a JSON array. Each issue has: id, title, tags, assignee, status (Backlog/In Progress/Done), priority (low/medium/high), severity (1-5), and createdAt. Set visible=true to apply the board's current query/assignee/severity filters."),
		mcp.WithString("status", mcp.Description("Status filter: Backlog, In Progress, Done")),
		mcp.WithBoolean("visible", mcp.Description("Apply the board's current filters")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issues := s.store.Issues()
	if request.GetBool("visible", false) {
		issues = s.store.FilterVisible(issues)
	}
	if status := request.GetString("status", ""); status != "" {
		filtered := issues[:0]
		for _, it := range issues {
			if it.Status == models.Status(status) {
				filtered = append(filtered, it)
			}
		}
		issues = filtered
	}

	data, err := json.Marshal(issues)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kb_get_issue
func (s *Server) getIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kb_get_issue",
		mcp.WithDescription("Get a single issue by id. Falls back to a full backend fetch when the id is not cached."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Issue id")),
	)
	return tool, s.handleGetIssue
}

func (s *Server) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get issue: %v", err)), nil
	}

	data, err := json.Marshal(issue)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kb_board
func (s *Server) boardTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kb_board",
		mcp.WithDescription("Get the board state: one column per status with issues ordered by priority score, plus pending (undoable) moves, pagination, and last sync time."),
	)
	return tool, s.handleBoard
}

func (s *Server) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := time.Now()

	columns := make([]map[string]any, 0, len(models.Statuses))
	for _, status := range models.Statuses {
		columns = append(columns, map[string]any{
			"status": status,
			"issues": s.store.Column(status, now),
		})
	}

	result := map[string]any{
		"columns":  columns,
		"pending":  s.store.Pending(),
		"page":     s.store.Page(),
		"has_more": s.store.HasMore(),
	}
	if !s.store.LastSync().IsZero() {
		result["last_sync"] = s.store.LastSync().Format(time.RFC3339)
	}
	if err := s.store.Err(); err != nil {
		result["error"] = err.Error()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal board: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kb_move_issue
func (s *Server) moveIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kb_move_issue",
		mcp.WithDescription("Move an issue to another column. The move applies optimistically and commits to the backend after a short delay; it stays undoable via kb_undo_move until the undo window closes. Requires the admin role."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Issue id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target column: Backlog, In Progress, Done")),
	)
	return tool, s.handleMoveIssue
}

func (s *Server) handleMoveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	statusStr, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}

	status := models.Status(statusStr)
	if !status.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", statusStr)), nil
	}

	if err := s.store.UpdateIssue(s.principal, models.StatusPatch(id, status)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("move issue: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"id":%q,"status":%q,"pending":true}`, id, status)), nil
}

// kb_undo_move
func (s *Server) undoMoveTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kb_undo_move",
		mcp.WithDescription("Undo a pending or recently committed move within the undo window, restoring the issue's previous status. Returns undone=false when nothing is pending for the id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Issue id")),
	)
	return tool, s.handleUndoMove
}

func (s *Server) handleUndoMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	undone, err := s.store.UndoMove(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("undo move: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"id":%q,"undone":%t}`, id, undone)), nil
}
