package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kb/internal/board"
	"github.com/joescharf/kb/internal/models"
	"github.com/joescharf/kb/internal/repo"
)

func mcpIssues() []models.Issue {
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	return []models.Issue{
		{ID: "a", Title: "broken login", Tags: []string{"bug"}, Assignee: "alice",
			Status: models.StatusBacklog, Priority: models.PriorityHigh, Severity: 4, CreatedAt: created},
		{ID: "b", Title: "slow dashboard", Assignee: "bob",
			Status: models.StatusInProgress, Priority: models.PriorityLow, Severity: 2, CreatedAt: created.Add(time.Hour)},
	}
}

func setupTestServer(t *testing.T, principal board.Principal) (*Server, *board.Store) {
	t.Helper()
	m := repo.NewMock(repo.MockConfig{Issues: mcpIssues()})
	s := board.New(m, board.Config{CommitDelay: 20 * time.Millisecond})
	require.NoError(t, s.GetIssues(context.Background(), nil))
	return NewServer(s, principal), s
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

var mcpAdmin = board.Principal{Name: "agent", Admin: true}

func TestHandleListIssues(t *testing.T) {
	srv, _ := setupTestServer(t, mcpAdmin)

	result, err := srv.handleListIssues(context.Background(), callToolReq("kb_list_issues", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var issues []models.Issue
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &issues))
	assert.Len(t, issues, 2)
}

func TestHandleListIssues_StatusFilter(t *testing.T) {
	srv, _ := setupTestServer(t, mcpAdmin)

	result, err := srv.handleListIssues(context.Background(),
		callToolReq("kb_list_issues", map[string]any{"status": "Backlog"}))
	require.NoError(t, err)

	var issues []models.Issue
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "a", issues[0].ID)
}

func TestHandleGetIssue(t *testing.T) {
	srv, _ := setupTestServer(t, mcpAdmin)

	result, err := srv.handleGetIssue(context.Background(),
		callToolReq("kb_get_issue", map[string]any{"id": "b"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var issue models.Issue
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &issue))
	assert.Equal(t, "slow dashboard", issue.Title)
}

func TestHandleGetIssue_MissingParam(t *testing.T) {
	srv, _ := setupTestServer(t, mcpAdmin)

	result, err := srv.handleGetIssue(context.Background(), callToolReq("kb_get_issue", nil))
	require.NoError(t, err, "handler should not return Go error; should wrap in result")
	assert.True(t, result.IsError)
}

func TestHandleMoveIssue(t *testing.T) {
	srv, s := setupTestServer(t, mcpAdmin)

	result, err := srv.handleMoveIssue(context.Background(),
		callToolReq("kb_move_issue", map[string]any{"id": "a", "status": "Done"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	p, ok := s.PendingFor("a")
	require.True(t, ok)
	assert.Equal(t, models.StatusDone, p.NewStatus)
}

func TestHandleMoveIssue_InvalidStatus(t *testing.T) {
	srv, _ := setupTestServer(t, mcpAdmin)

	result, err := srv.handleMoveIssue(context.Background(),
		callToolReq("kb_move_issue", map[string]any{"id": "a", "status": "Archived"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleMoveIssue_NonAdmin(t *testing.T) {
	srv, s := setupTestServer(t, board.Principal{Name: "guest", Admin: false})

	result, err := srv.handleMoveIssue(context.Background(),
		callToolReq("kb_move_issue", map[string]any{"id": "a", "status": "Done"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "permission denied")

	_, ok := s.PendingFor("a")
	assert.False(t, ok)
}

func TestHandleUndoMove(t *testing.T) {
	srv, s := setupTestServer(t, mcpAdmin)

	_, err := srv.handleMoveIssue(context.Background(),
		callToolReq("kb_move_issue", map[string]any{"id": "a", "status": "Done"}))
	require.NoError(t, err)

	result, err := srv.handleUndoMove(context.Background(),
		callToolReq("kb_undo_move", map[string]any{"id": "a"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"undone":true`)

	_, ok := s.PendingFor("a")
	assert.False(t, ok)
}

func TestHandleUndoMove_NothingPending(t *testing.T) {
	srv, _ := setupTestServer(t, mcpAdmin)

	result, err := srv.handleUndoMove(context.Background(),
		callToolReq("kb_undo_move", map[string]any{"id": "a"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"undone":false`)
}

func TestHandleBoard(t *testing.T) {
	srv, _ := setupTestServer(t, mcpAdmin)

	result, err := srv.handleBoard(context.Background(), callToolReq("kb_board", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	columns, ok := out["columns"].([]any)
	require.True(t, ok)
	assert.Len(t, columns, 3)
}

func TestMCPServer_RegistersTools(t *testing.T) {
	srv, _ := setupTestServer(t, mcpAdmin)
	assert.NotNil(t, srv.MCPServer())
}
