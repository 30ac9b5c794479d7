package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kb/internal/models"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func issueAt(id string, severity int, daysAgo int) models.Issue {
	return models.Issue{
		ID:        id,
		Title:     id,
		Status:    models.StatusBacklog,
		Priority:  models.PriorityMedium,
		Severity:  severity,
		CreatedAt: now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
}

func TestScore_Deterministic(t *testing.T) {
	issue := issueAt("a", 3, 2)
	first := Score(issue, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(issue, now))
	}
	// severity*10 - days + medium rank
	assert.Equal(t, 3*10-2+2, first)
}

func TestScore_Components(t *testing.T) {
	rank := 7
	tests := []struct {
		name  string
		issue models.Issue
		want  int
	}{
		{
			name:  "user rank wins over priority",
			issue: models.Issue{Severity: 2, Priority: models.PriorityHigh, UserDefinedRank: &rank, CreatedAt: now},
			want:  20 + 7,
		},
		{
			name:  "priority fallback when rank absent",
			issue: models.Issue{Severity: 2, Priority: models.PriorityHigh, CreatedAt: now},
			want:  20 + 3,
		},
		{
			name:  "unknown priority falls through to zero",
			issue: models.Issue{Severity: 2, Priority: "urgent", CreatedAt: now},
			want:  20,
		},
		{
			name:  "age subtracts whole days",
			issue: models.Issue{Severity: 5, Priority: models.PriorityLow, CreatedAt: now.Add(-49 * time.Hour)},
			want:  50 - 2 + 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.issue, now))
		})
	}
}

func TestScore_RankFallbackByPriority(t *testing.T) {
	high := issueAt("high", 3, 1)
	high.Priority = models.PriorityHigh
	low := issueAt("low", 3, 1)
	low.Priority = models.PriorityLow

	assert.Equal(t, 3, Score(high, now)-Score(low, now), "high should score 3 above low")
}

func TestScore_FutureCreatedAt(t *testing.T) {
	issue := issueAt("future", 1, 0)
	issue.CreatedAt = now.Add(36 * time.Hour)

	// floor(-1.5 days) = -2, so the score gains 2
	assert.Equal(t, 10+2+2, Score(issue, now))
}

func TestDaysSince(t *testing.T) {
	tests := []struct {
		name  string
		delta time.Duration
		want  int
	}{
		{"same instant", 0, 0},
		{"under a day", -23 * time.Hour, 0},
		{"exactly two days", -48 * time.Hour, 2},
		{"partial third day", -50 * time.Hour, 2},
		{"half a day ahead", 12 * time.Hour, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysSince(now.Add(tt.delta), now))
		})
	}
}

func TestSortByPriority_HigherScoreFirst(t *testing.T) {
	// b: severity 3, 2 days old -> 28; a: severity 3, 3 days old -> 27
	a := issueAt("a", 3, 3)
	b := issueAt("b", 3, 2)
	require.Equal(t, 28, Score(b, now))
	require.Equal(t, 27, Score(a, now))

	sorted := SortByPriority([]models.Issue{a, b}, now)
	assert.Equal(t, "b", sorted[0].ID)
	assert.Equal(t, "a", sorted[1].ID)

	// order of input must not matter
	sorted = SortByPriority([]models.Issue{b, a}, now)
	assert.Equal(t, "b", sorted[0].ID)
}

func TestSortByPriority_TieBreakByRecency(t *testing.T) {
	older := issueAt("older", 3, 2)
	newer := issueAt("newer", 3, 2)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour) // same day bucket, same score

	require.Equal(t, Score(older, now), Score(newer, now))

	sorted := SortByPriority([]models.Issue{older, newer}, now)
	assert.Equal(t, "newer", sorted[0].ID, "later createdAt should sort first on equal score")
}

func TestSortByPriority_StableOnFullTie(t *testing.T) {
	first := issueAt("first", 3, 2)
	second := issueAt("second", 3, 2)
	second.CreatedAt = first.CreatedAt

	sorted := SortByPriority([]models.Issue{first, second}, now)
	assert.Equal(t, "first", sorted[0].ID, "full ties keep input order")
	assert.Equal(t, "second", sorted[1].ID)
}

func TestSortByPriority_DoesNotMutateInput(t *testing.T) {
	a := issueAt("a", 1, 0)
	b := issueAt("b", 5, 0)
	in := []models.Issue{a, b}

	out := SortByPriority(in, now)

	assert.Equal(t, "a", in[0].ID, "input order untouched")
	assert.Equal(t, "b", out[0].ID, "output sorted by score")
}
