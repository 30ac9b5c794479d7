package models

import "time"

// Status represents the kanban column an issue sits in.
type Status string

const (
	StatusBacklog    Status = "Backlog"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses lists the board columns in display order.
var Statuses = []Status{StatusBacklog, StatusInProgress, StatusDone}

// Valid reports whether s is one of the known board columns.
func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority represents the urgency of an issue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the scoring tie-break value derived from the priority.
// Unrecognized priorities rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() != 0
}

// Issue represents a tracked unit of work on the board.
type Issue struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Tags            []string  `json:"tags,omitempty"`
	Assignee        string    `json:"assignee,omitempty"` // empty = unassigned
	Status          Status    `json:"status"`
	Priority        Priority  `json:"priority"`
	Severity        int       `json:"severity"` // 1..5
	UserDefinedRank *int      `json:"userDefinedRank,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Clone returns a deep copy of the issue. Tags and the rank pointer are
// duplicated so the copy never aliases the original.
func (i Issue) Clone() Issue {
	out := i
	if i.Tags != nil {
		out.Tags = append([]string(nil), i.Tags...)
	}
	if i.UserDefinedRank != nil {
		r := *i.UserDefinedRank
		out.UserDefinedRank = &r
	}
	return out
}

// CloneAll deep-copies a slice of issues.
func CloneAll(issues []Issue) []Issue {
	out := make([]Issue, len(issues))
	for idx, it := range issues {
		out[idx] = it.Clone()
	}
	return out
}
