package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/joescharf/kb/internal/models"
)

// ErrPermissionDenied is returned when a non-admin attempts a mutating
// operation. No state changes.
var ErrPermissionDenied = errors.New("permission denied")

// ErrNotFound is returned when the referenced issue id is unknown.
var ErrNotFound = errors.New("issue not found")

// ErrCompensationFailed is recorded when an undo's compensating write
// fails. Local state is rolled back for consistency, but the remote may
// retain the un-reverted value.
var ErrCompensationFailed = errors.New("undo failed; remote may retain the newer status")

func notFoundErr(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// PendingUpdate is the caller-visible view of one in-flight optimistic
// write. Consumers use it to surface the undo affordance.
type PendingUpdate struct {
	ID        string
	Prev      models.Issue
	NewStatus models.Status
	Committed bool
	StartedAt time.Time
}

// pendingEntry is the registry record. Timer callbacks capture the
// generation at scheduling time and no-op when it no longer matches, so
// a cancelled task's effects never apply and cancellation is idempotent.
type pendingEntry struct {
	prev      models.Issue
	newStatus models.Status
	committed bool
	startedAt time.Time
	gen       uint64

	commitTimer  *time.Timer
	cleanupTimer *time.Timer
}

func (e *pendingEntry) stopTimers() {
	if e.commitTimer != nil {
		e.commitTimer.Stop()
	}
	if e.cleanupTimer != nil {
		e.cleanupTimer.Stop()
	}
}

// UpdateIssue applies a patch optimistically and schedules the remote
// write. Guard failures (permission, unknown id) return before any state
// change. A prior pending update for the same id is superseded: its
// scheduled tasks are cancelled and its registry entry replaced.
func (s *Store) UpdateIssue(principal Principal, patch models.Patch) error {
	if !principal.Admin {
		return fmt.Errorf("%w: updating issues requires the admin role", ErrPermissionDenied)
	}

	s.mu.Lock()
	idx, ok := s.indexLocked(patch.ID)
	if !ok {
		s.mu.Unlock()
		return notFoundErr(patch.ID)
	}
	current := s.issues[idx]

	if old, live := s.pending[patch.ID]; live {
		old.stopTimers()
	}

	entry := &pendingEntry{
		prev:      current.Clone(),
		newStatus: current.Status,
		startedAt: time.Now(),
		gen:       s.nextGen,
	}
	s.nextGen++
	if patch.Status != nil {
		entry.newStatus = *patch.Status
	}

	s.issues[idx] = patch.Apply(current)
	s.pending[patch.ID] = entry

	id, gen := patch.ID, entry.gen
	entry.commitTimer = time.AfterFunc(s.cfg.CommitDelay, func() { s.runCommit(id, gen, patch) })
	entry.cleanupTimer = time.AfterFunc(s.cfg.UndoWindow, func() { s.runCleanup(id, gen, patch) })
	s.mu.Unlock()
	s.notify()
	return nil
}

// MarkResolved moves an issue to the terminal Done column. Same guards
// and undo semantics as UpdateIssue.
func (s *Store) MarkResolved(principal Principal, issue models.Issue) error {
	return s.UpdateIssue(principal, models.StatusPatch(issue.ID, models.StatusDone))
}

// runCommit sends the scheduled remote write. On success the entry is
// marked committed and kept for the rest of the undo window; on failure
// the collection entry rolls back to the snapshot and the pending entry
// is removed.
func (s *Store) runCommit(id string, gen uint64, patch models.Patch) {
	s.mu.Lock()
	entry, ok := s.pending[id]
	if !ok || entry.gen != gen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	_, err := s.repo.ApplyUpdate(context.Background(), id, patch)

	s.mu.Lock()
	entry, ok = s.pending[id]
	if !ok || entry.gen != gen {
		// Superseded or undone while the write was in flight; the
		// result no longer applies.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.rollbackLocked(id, entry.prev)
		entry.stopTimers()
		delete(s.pending, id)
		s.err = err
		s.mu.Unlock()
		s.notify()
		return
	}
	entry.committed = true
	s.mu.Unlock()
	s.notify()
}

// runCleanup fires at the end of the undo window. A committed entry is
// simply retired. An uncommitted one gets a forced best-effort commit
// now, rolling back on failure, so every pending update is resolved by
// the time the window closes.
func (s *Store) runCleanup(id string, gen uint64, patch models.Patch) {
	s.mu.Lock()
	entry, ok := s.pending[id]
	if !ok || entry.gen != gen {
		s.mu.Unlock()
		return
	}

	if entry.committed {
		entry.stopTimers()
		delete(s.pending, id)
		s.mu.Unlock()
		s.notify()
		return
	}

	// Take ownership: cancel the commit task and bump the generation so
	// an in-flight commit result is discarded.
	entry.stopTimers()
	forcedGen := s.nextGen
	s.nextGen++
	entry.gen = forcedGen
	s.mu.Unlock()

	_, err := s.repo.ApplyUpdate(context.Background(), id, patch)

	s.mu.Lock()
	entry, ok = s.pending[id]
	if !ok || entry.gen != forcedGen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.rollbackLocked(id, entry.prev)
		s.err = err
	}
	delete(s.pending, id)
	s.mu.Unlock()
	s.notify()
}

// UndoMove reverses a pending or committed move within the undo window.
// Returns (false, nil) when nothing is pending for the id. Before
// commit: cancels the write and restores the snapshot. After commit:
// issues a compensating write restoring the snapshot's status; on
// compensation failure local state still rolls back, a store-level error
// is recorded, and (false, err) is returned.
func (s *Store) UndoMove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	entry, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}

	entry.stopTimers()

	if !entry.committed {
		s.rollbackLocked(id, entry.prev)
		delete(s.pending, id)
		s.mu.Unlock()
		s.notify()
		return true, nil
	}

	prev := entry.prev
	delete(s.pending, id)
	s.mu.Unlock()

	_, err := s.repo.ApplyUpdate(ctx, id, models.StatusPatch(id, prev.Status))

	s.mu.Lock()
	// A new update may have started for this id while compensating; its
	// optimistic state wins over our rollback.
	if _, live := s.pending[id]; !live {
		s.rollbackLocked(id, prev)
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrCompensationFailed, err)
		s.err = wrapped
		s.mu.Unlock()
		s.notify()
		return false, wrapped
	}
	s.mu.Unlock()
	s.notify()
	return true, nil
}

// rollbackLocked restores the pre-patch snapshot for an id. Caller holds
// mu. Missing ids are ignored: the issue may have left the collection
// via a page-1 refresh.
func (s *Store) rollbackLocked(id string, prev models.Issue) {
	if idx, ok := s.indexLocked(id); ok {
		s.issues[idx] = prev.Clone()
	}
}

// PendingFor returns the pending update for an id, if one is live.
func (s *Store) PendingFor(id string) (PendingUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[id]
	if !ok {
		return PendingUpdate{}, false
	}
	return PendingUpdate{
		ID:        id,
		Prev:      entry.prev.Clone(),
		NewStatus: entry.newStatus,
		Committed: entry.committed,
		StartedAt: entry.startedAt,
	}, true
}

// Pending returns all live pending updates, most recent first.
func (s *Store) Pending() []PendingUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PendingUpdate, 0, len(s.pending))
	for id, entry := range s.pending {
		out = append(out, PendingUpdate{
			ID:        id,
			Prev:      entry.prev.Clone(),
			NewStatus: entry.newStatus,
			Committed: entry.committed,
			StartedAt: entry.startedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}
