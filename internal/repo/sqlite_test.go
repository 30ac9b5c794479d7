package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kb/internal/models"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	r, err := NewSQLite(dbPath)
	require.NoError(t, err)

	err = r.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { r.Close() })
	return r
}

func TestMigrate_Idempotent(t *testing.T) {
	r := newTestRepo(t)
	assert.NoError(t, r.Migrate(context.Background()))
}

func TestSQLiteSeedAndFetchAll(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	rank := -1
	created := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	issues := []models.Issue{
		{ID: "s1", Title: "one", Tags: []string{"bug", "ui"}, Assignee: "alice",
			Status: models.StatusBacklog, Priority: models.PriorityHigh, Severity: 3, CreatedAt: created},
		{ID: "s2", Title: "two", Status: models.StatusDone, Priority: models.PriorityLow,
			Severity: 5, UserDefinedRank: &rank, CreatedAt: created.Add(time.Hour)},
	}
	require.NoError(t, r.Seed(ctx, issues))

	got, err := r.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, []string{"bug", "ui"}, got[0].Tags)
	assert.Equal(t, "alice", got[0].Assignee)
	assert.Nil(t, got[0].UserDefinedRank)
	assert.True(t, got[0].CreatedAt.Equal(created))

	require.NotNil(t, got[1].UserDefinedRank)
	assert.Equal(t, -1, *got[1].UserDefinedRank)
	assert.Empty(t, got[1].Tags)
}

func TestSQLiteSeed_SkipsNonEmpty(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first := []models.Issue{{ID: "s1", Title: "one", Status: models.StatusBacklog,
		Priority: models.PriorityLow, Severity: 1, CreatedAt: time.Now().UTC()}}
	require.NoError(t, r.Seed(ctx, first))
	require.NoError(t, r.Seed(ctx, SeedIssues(10, time.Now())))

	got, err := r.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1, "second seed is a no-op")
}

func TestSQLiteApplyUpdate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Seed(ctx, []models.Issue{
		{ID: "s1", Title: "one", Status: models.StatusBacklog, Priority: models.PriorityLow,
			Severity: 2, CreatedAt: time.Now().UTC()},
	}))

	status := models.StatusInProgress
	sev := 4
	assignee := "bob"
	updated, err := r.ApplyUpdate(ctx, "s1", models.Patch{
		ID:       "s1",
		Status:   &status,
		Severity: &sev,
		Assignee: &assignee,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, 4, updated.Severity)
	assert.Equal(t, "bob", updated.Assignee)
	assert.Equal(t, "one", updated.Title)

	got, err := r.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got[0].Status)
}

func TestSQLiteApplyUpdate_NotFound(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.ApplyUpdate(context.Background(), "missing", models.StatusPatch("missing", models.StatusDone))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, err.Error(), "not found")
}
