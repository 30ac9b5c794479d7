// Package scoring orders issues within a board column. The score is
// deterministic for a fixed reference time, so the board renders the same
// ordering on every pass between syncs.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/joescharf/kb/internal/models"
)

// DaysSince returns the whole days elapsed between createdAt and now,
// flooring the real-valued division. A future createdAt yields a negative
// count, which is valid input and raises the score.
func DaysSince(createdAt, now time.Time) int {
	diff := now.Sub(createdAt).Hours() / 24
	return int(math.Floor(diff))
}

// EffectiveRank resolves the tie-break rank for an issue. Precedence:
// the user-defined rank when set, otherwise the rank derived from
// priority (low=1, medium=2, high=3), otherwise 0.
func EffectiveRank(issue models.Issue) int {
	if issue.UserDefinedRank != nil {
		return *issue.UserDefinedRank
	}
	return issue.Priority.Rank()
}

// Score computes the priority score for an issue at a reference time:
//
//	score = severity*10 - daysSinceCreated + effectiveRank
//
// Higher scores sort first. Pure: no side effects, identical inputs give
// identical results.
func Score(issue models.Issue, now time.Time) int {
	return issue.Severity*10 - DaysSince(issue.CreatedAt, now) + EffectiveRank(issue)
}

// SortByPriority returns a new slice ordered by score descending. Equal
// scores break ties by more recent CreatedAt first; remaining ties keep
// the input order. The input slice is never mutated.
func SortByPriority(issues []models.Issue, now time.Time) []models.Issue {
	type scored struct {
		issue models.Issue
		score int
	}
	mapped := make([]scored, len(issues))
	for i, it := range issues {
		mapped[i] = scored{issue: it, score: Score(it, now)}
	}

	sort.SliceStable(mapped, func(a, b int) bool {
		if mapped[a].score != mapped[b].score {
			return mapped[a].score > mapped[b].score
		}
		return mapped[a].issue.CreatedAt.After(mapped[b].issue.CreatedAt)
	})

	out := make([]models.Issue, len(mapped))
	for i, m := range mapped {
		out[i] = m.issue
	}
	return out
}
