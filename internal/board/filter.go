package board

import (
	"sort"
	"strings"
	"time"

	"github.com/joescharf/kb/internal/models"
	"github.com/joescharf/kb/internal/scoring"
)

// FilterVisible applies the store's query/assignee/severity state to a
// slice of issues and returns the survivors. The query matches the title
// or any tag, case-insensitively.
func (s *Store) FilterVisible(issues []models.Issue) []models.Issue {
	s.mu.Lock()
	query := strings.ToLower(strings.TrimSpace(s.query))
	assignee := s.assigneeFilter
	severity := s.severityFilter
	s.mu.Unlock()

	out := make([]models.Issue, 0, len(issues))
	for _, it := range issues {
		if query != "" && !matchesQuery(it, query) {
			continue
		}
		if assignee != "" && assignee != AssigneeAll && it.Assignee != assignee {
			continue
		}
		if severity != SeverityAll && it.Severity != severity {
			continue
		}
		out = append(out, it)
	}
	return out
}

func matchesQuery(issue models.Issue, query string) bool {
	if strings.Contains(strings.ToLower(issue.Title), query) {
		return true
	}
	for _, tag := range issue.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// Column returns the visible issues in one board column, ordered by
// priority score at the given reference time.
func (s *Store) Column(status models.Status, now time.Time) []models.Issue {
	var inColumn []models.Issue
	for _, it := range s.Issues() {
		if it.Status == status {
			inColumn = append(inColumn, it)
		}
	}
	return scoring.SortByPriority(s.FilterVisible(inColumn), now)
}

// Assignees returns the distinct assignees present in the collection,
// sorted, excluding unassigned.
func (s *Store) Assignees() []string {
	seen := map[string]bool{}
	for _, it := range s.Issues() {
		if it.Assignee != "" {
			seen[it.Assignee] = true
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
