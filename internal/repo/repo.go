// Package repo defines the two-operation backend contract the board core
// depends on, plus the implementations that satisfy it: an in-memory mock
// with simulated latency and write failures, and a SQLite store.
package repo

import (
	"context"
	"errors"

	"github.com/joescharf/kb/internal/models"
)

// ErrFetchFailed is returned when reading the issue collection fails.
var ErrFetchFailed = errors.New("failed to fetch issues")

// ErrWriteFailed is returned when an issue update does not reach the
// backend. Callers treat this as a normally-occurring outcome, not an
// exceptional one.
var ErrWriteFailed = errors.New("failed to update issue")

// Repository is the backend contract. Each call is independent and
// eventually settles to success or failure; no ordering or batching
// guarantees exist beyond that.
type Repository interface {
	// FetchAll returns a fresh snapshot of every issue. The returned
	// slice is owned by the caller.
	FetchAll(ctx context.Context) ([]models.Issue, error)

	// ApplyUpdate merges the patch into the issue with the given id and
	// returns the updated issue.
	ApplyUpdate(ctx context.Context, id string, patch models.Patch) (models.Issue, error)
}
