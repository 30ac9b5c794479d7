// Package api exposes the board store over HTTP. It is a thin
// presentation layer: every handler reads store state or calls one of
// its operations and reports the result.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/joescharf/kb/internal/board"
	"github.com/joescharf/kb/internal/models"
	"github.com/joescharf/kb/internal/repo"
)

// RoleHeader carries the acting principal's role. The board itself does
// no authentication; this stands in for the external identity fact.
const RoleHeader = "X-KB-Role"

// UserHeader optionally names the acting principal for error messages.
const UserHeader = "X-KB-User"

// Server provides the REST API handlers.
type Server struct {
	store       *board.Store
	defaultRole string
}

// NewServer creates an API server over the given store. defaultRole
// applies when a request carries no role header.
func NewServer(s *board.Store, defaultRole string) *Server {
	return &Server{store: s, defaultRole: defaultRole}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/issues", s.listIssues)
	mux.HandleFunc("GET /api/v1/issues/{id}", s.getIssue)
	mux.HandleFunc("PATCH /api/v1/issues/{id}", s.updateIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/resolve", s.resolveIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/undo", s.undoMove)

	mux.HandleFunc("GET /api/v1/board", s.boardState)
	mux.HandleFunc("GET /api/v1/pending", s.listPending)
	mux.HandleFunc("GET /api/v1/assignees", s.listAssignees)

	mux.HandleFunc("POST /api/v1/sync", s.sync)
	mux.HandleFunc("PUT /api/v1/filters", s.setFilters)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RoleHeader+", "+UserHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps the board error taxonomy onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, board.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, board.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repo.ErrWriteFailed), errors.Is(err, repo.ErrFetchFailed),
		errors.Is(err, board.ErrCompensationFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) principal(r *http.Request) board.Principal {
	role := r.Header.Get(RoleHeader)
	if role == "" {
		role = s.defaultRole
	}
	return board.Principal{
		Name:  r.Header.Get(UserHeader),
		Admin: role == "admin",
	}
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	issues := s.store.Issues()
	if r.URL.Query().Get("visible") == "true" {
		issues = s.store.FilterVisible(issues)
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch models.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	patch.ID = id

	if patch.Status != nil && !patch.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status: "+string(*patch.Status))
		return
	}
	if patch.Severity != nil && (*patch.Severity < 1 || *patch.Severity > 5) {
		writeError(w, http.StatusBadRequest, "severity must be 1..5")
		return
	}

	if err := s.store.UpdateIssue(s.principal(r), patch); err != nil {
		slog.Warn("issue update rejected", "id", id, "error", err)
		writeStoreError(w, err)
		return
	}

	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) resolveIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.MarkResolved(s.principal(r), issue); err != nil {
		writeStoreError(w, err)
		return
	}

	issue, err = s.store.GetIssue(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) undoMove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	undone, err := s.store.UndoMove(r.Context(), id)
	if err != nil {
		slog.Warn("undo failed", "id", id, "error", err)
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"undone": undone})
}

// --- Board state ---

type columnOut struct {
	Status models.Status  `json:"status"`
	Issues []models.Issue `json:"issues"`
}

type boardOut struct {
	Columns  []columnOut           `json:"columns"`
	Pending  []board.PendingUpdate `json:"pending"`
	HasMore  bool                  `json:"hasMore"`
	Page     int                   `json:"page"`
	LastSync time.Time             `json:"lastSync"`
	Error    string                `json:"error,omitempty"`
}

func (s *Server) boardState(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	out := boardOut{
		Pending:  s.store.Pending(),
		HasMore:  s.store.HasMore(),
		Page:     s.store.Page(),
		LastSync: s.store.LastSync(),
	}
	if err := s.store.Err(); err != nil {
		out.Error = err.Error()
	}
	for _, status := range models.Statuses {
		out.Columns = append(out.Columns, columnOut{
			Status: status,
			Issues: s.store.Column(status, now),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Pending())
}

func (s *Server) listAssignees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Assignees())
}

// --- Sync and filters ---

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	var p *board.Pagination
	q := r.URL.Query()
	if q.Get("page") != "" || q.Get("limit") != "" {
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		p = &board.Pagination{Page: page, Limit: limit}
	}

	if err := s.store.GetIssues(r.Context(), p); err != nil {
		slog.Warn("sync failed", "error", err)
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(s.store.Issues()),
		"hasMore":  s.store.HasMore(),
		"lastSync": s.store.LastSync(),
	})
}

type filtersIn struct {
	Query    *string `json:"query"`
	Assignee *string `json:"assignee"`
	Severity *int    `json:"severity"`
	Page     *int    `json:"page"`
}

func (s *Server) setFilters(w http.ResponseWriter, r *http.Request) {
	var in filtersIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if in.Query != nil {
		s.store.SetQuery(*in.Query)
	}
	if in.Assignee != nil {
		s.store.SetAssigneeFilter(*in.Assignee)
	}
	if in.Severity != nil {
		s.store.SetSeverityFilter(*in.Severity)
	}
	if in.Page != nil {
		s.store.SetPage(*in.Page)
	}
	w.WriteHeader(http.StatusNoContent)
}
