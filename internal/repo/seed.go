package repo

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/kb/internal/models"
)

// NewULID generates a new ULID string for issue ids.
func NewULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

var seedTitles = []string{
	"Login form rejects valid emails",
	"Dashboard charts overlap on narrow screens",
	"Export job times out on large workspaces",
	"Search ignores tag filters",
	"Notification emails sent twice",
	"Dark mode flickers on page load",
	"Pagination skips the last page",
	"Avatar upload fails for PNGs over 2MB",
	"Keyboard shortcuts conflict with browser defaults",
	"Session expires during long form edits",
	"CSV import drops rows with commas in titles",
	"Webhooks retried without backoff",
	"Audit log misses bulk operations",
	"Mobile layout clips column headers",
	"Stale cache served after settings change",
}

var seedAssignees = []string{"alice", "bob", "carol", "dave", ""}

var seedTags = [][]string{
	{"bug"},
	{"bug", "ui"},
	{"backend"},
	{"infra", "performance"},
	{"ui", "accessibility"},
	nil,
}

// SeedIssues builds a deterministic fixture set of n issues for the mock
// backend, spread across columns, severities, and ages.
func SeedIssues(n int, now time.Time) []models.Issue {
	rng := rand.New(rand.NewSource(42))
	entropy := rand.New(rand.NewSource(42))

	priorities := []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}

	issues := make([]models.Issue, 0, n)
	for i := 0; i < n; i++ {
		createdAt := now.Add(-time.Duration(rng.Intn(30*24)) * time.Hour)
		issue := models.Issue{
			ID:        ulid.MustNew(ulid.Timestamp(createdAt), entropy).String(),
			Title:     seedTitles[i%len(seedTitles)],
			Tags:      seedTags[i%len(seedTags)],
			Assignee:  seedAssignees[i%len(seedAssignees)],
			Status:    models.Statuses[rng.Intn(len(models.Statuses))],
			Priority:  priorities[rng.Intn(len(priorities))],
			Severity:  1 + rng.Intn(5),
			CreatedAt: createdAt,
		}
		if rng.Intn(4) == 0 {
			r := rng.Intn(10) - 2
			issue.UserDefinedRank = &r
		}
		issues = append(issues, issue)
	}
	return issues
}
