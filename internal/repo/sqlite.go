package repo

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joescharf/kb/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteRepository implements Repository using modernc.org/sqlite (pure
// Go, no CGO). It is the durable stand-in for the mock backend; the board
// core uses it through the same two-operation contract.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLiteRepository, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access through Go's connection pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// FetchAll returns every issue, oldest first.
func (r *SQLiteRepository) FetchAll(ctx context.Context) ([]models.Issue, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, tags, assignee, status, priority, severity, user_defined_rank, created_at
		FROM issues ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var issues []models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return issues, nil
}

// ApplyUpdate merges the patch into the stored issue and returns the
// updated row.
func (r *SQLiteRepository) ApplyUpdate(ctx context.Context, id string, patch models.Patch) (models.Issue, error) {
	existing, err := r.getIssue(ctx, id)
	if err != nil {
		return models.Issue{}, err
	}

	updated := patch.Apply(existing)

	tags, err := json.Marshal(updated.Tags)
	if err != nil {
		return models.Issue{}, fmt.Errorf("%w: marshal tags: %v", ErrWriteFailed, err)
	}
	var rank sql.NullInt64
	if updated.UserDefinedRank != nil {
		rank = sql.NullInt64{Int64: int64(*updated.UserDefinedRank), Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE issues SET title=?, tags=?, assignee=?, status=?, priority=?, severity=?, user_defined_rank=?
		WHERE id=?`,
		updated.Title, string(tags), updated.Assignee, string(updated.Status), string(updated.Priority),
		updated.Severity, rank, id)
	if err != nil {
		return models.Issue{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return updated, nil
}

// Seed inserts the given issues if the table is empty.
func (r *SQLiteRepository) Seed(ctx context.Context, issues []models.Issue) error {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM issues").Scan(&count); err != nil {
		return fmt.Errorf("count issues: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, issue := range issues {
		if issue.ID == "" {
			issue.ID = NewULID()
		}
		tags, err := json.Marshal(issue.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		var rank sql.NullInt64
		if issue.UserDefinedRank != nil {
			rank = sql.NullInt64{Int64: int64(*issue.UserDefinedRank), Valid: true}
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO issues (id, title, tags, assignee, status, priority, severity, user_defined_rank, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, issue.Title, string(tags), issue.Assignee, string(issue.Status), string(issue.Priority),
			issue.Severity, rank, issue.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert issue %s: %w", issue.ID, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) getIssue(ctx context.Context, id string) (models.Issue, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, tags, assignee, status, priority, severity, user_defined_rank, created_at
		FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return models.Issue{}, fmt.Errorf("%w: issue not found: %s", ErrWriteFailed, id)
	}
	if err != nil {
		return models.Issue{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return issue, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(s scanner) (models.Issue, error) {
	var issue models.Issue
	var tags string
	var status, priority string
	var rank sql.NullInt64

	err := s.Scan(&issue.ID, &issue.Title, &tags, &issue.Assignee, &status, &priority,
		&issue.Severity, &rank, &issue.CreatedAt)
	if err != nil {
		return models.Issue{}, err
	}

	issue.Status = models.Status(status)
	issue.Priority = models.Priority(priority)
	if rank.Valid {
		v := int(rank.Int64)
		issue.UserDefinedRank = &v
	}
	if tags != "" && tags != "null" {
		if err := json.Unmarshal([]byte(tags), &issue.Tags); err != nil {
			return models.Issue{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return issue, nil
}
