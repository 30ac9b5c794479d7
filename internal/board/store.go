// Package board owns the canonical issue collection for the kanban board:
// pagination, filter and search state, background resync, and the
// pending-update registry that implements optimistic writes with a
// time-bounded undo window.
package board

import (
	"context"
	"sync"
	"time"

	"github.com/joescharf/kb/internal/models"
	"github.com/joescharf/kb/internal/repo"
)

// Config tunes the store's timing behavior.
type Config struct {
	CommitDelay time.Duration // delay before the optimistic write is sent; default 500ms
	UndoWindow  time.Duration // how long a move stays undoable; min 1s, default 5s
	PageLimit   int           // default page size; default 10
}

func (c Config) withDefaults() Config {
	if c.CommitDelay <= 0 {
		c.CommitDelay = 500 * time.Millisecond
	}
	if c.UndoWindow <= 0 {
		c.UndoWindow = 5 * time.Second
	}
	if c.UndoWindow < time.Second {
		c.UndoWindow = time.Second
	}
	if c.PageLimit <= 0 {
		c.PageLimit = 10
	}
	return c
}

// Principal is the acting user. The board consumes a single external
// fact about it: whether it may mutate issues.
type Principal struct {
	Name  string
	Admin bool
}

// Pagination selects a page window for GetIssues.
type Pagination struct {
	Page  int // 1-based; 0 means 1
	Limit int // 0 means the configured default
}

// AssigneeAll disables assignee filtering.
const AssigneeAll = "all"

// SeverityAll disables severity filtering.
const SeverityAll = 0

// Store is the board's state container. All state is mutated through its
// operations; readers get copies and always observe a consistent
// snapshot.
type Store struct {
	repo repo.Repository
	cfg  Config

	mu      sync.Mutex
	issues  []models.Issue
	pending map[string]*pendingEntry
	nextGen uint64

	query          string
	assigneeFilter string
	severityFilter int
	page           int
	hasMore        bool
	loading        bool
	err            error
	lastSync       time.Time

	subs    map[int]chan struct{}
	nextSub int
}

// New creates a Store backed by the given repository.
func New(r repo.Repository, cfg Config) *Store {
	return &Store{
		repo:           r,
		cfg:            cfg.withDefaults(),
		pending:        map[string]*pendingEntry{},
		assigneeFilter: AssigneeAll,
		severityFilter: SeverityAll,
		page:           1,
		subs:           map[int]chan struct{}{},
	}
}

// GetIssues fetches the full remote set and installs the requested page
// window. Page 1 (or nil pagination) replaces the collection; later
// pages merge in, deduplicating by id and keeping the later-seen entry.
// Issues with a live pending update are never overwritten by remote
// data. On failure the existing collection is left untouched and the
// error is recorded.
func (s *Store) GetIssues(ctx context.Context, p *Pagination) error {
	page, limit := 1, s.cfg.PageLimit
	if p != nil {
		if p.Page > 0 {
			page = p.Page
		}
		if p.Limit > 0 {
			limit = p.Limit
		}
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	s.notify()

	remote, err := s.repo.FetchAll(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		if ctx.Err() == nil {
			s.err = err
		}
		s.mu.Unlock()
		s.notify()
		return err
	}

	start := (page - 1) * limit
	end := start + limit
	s.hasMore = end < len(remote)
	if start > len(remote) {
		start = len(remote)
	}
	if end > len(remote) {
		end = len(remote)
	}

	s.mergeLocked(remote[start:end], page <= 1)
	s.page = page
	s.err = nil
	s.lastSync = time.Now()
	s.mu.Unlock()
	s.notify()
	return nil
}

// mergeLocked installs a page of fresh issues. Dedup keeps the
// later-seen entry at the first-seen position, so a re-fetched issue
// refreshes in place instead of moving. Ids with a live pending
// entry keep their local (optimistic) version so a background refresh
// cannot clobber an in-flight update.
func (s *Store) mergeLocked(fresh []models.Issue, replace bool) {
	local := make(map[string]models.Issue, len(s.issues))
	for _, it := range s.issues {
		local[it.ID] = it
	}

	var combined []models.Issue
	if !replace {
		combined = append(combined, s.issues...)
	}
	combined = append(combined, fresh...)

	order := make([]string, 0, len(combined))
	byID := make(map[string]models.Issue, len(combined))
	for _, it := range combined {
		if _, seen := byID[it.ID]; !seen {
			order = append(order, it.ID)
		}
		byID[it.ID] = it
	}

	out := make([]models.Issue, 0, len(order))
	for _, id := range order {
		it := byID[id]
		if _, live := s.pending[id]; live {
			if lv, ok := local[id]; ok {
				it = lv
			}
		}
		out = append(out, it)
	}
	s.issues = out
}

// GetIssue returns the cached issue when present; otherwise it fetches
// the full remote set and searches that. Absent from both means
// ErrNotFound.
func (s *Store) GetIssue(ctx context.Context, id string) (models.Issue, error) {
	s.mu.Lock()
	if idx, ok := s.indexLocked(id); ok {
		it := s.issues[idx].Clone()
		s.mu.Unlock()
		return it, nil
	}
	s.mu.Unlock()

	remote, err := s.repo.FetchAll(ctx)
	if err != nil {
		s.mu.Lock()
		if ctx.Err() == nil {
			s.err = err
		}
		s.mu.Unlock()
		s.notify()
		return models.Issue{}, err
	}
	for _, it := range remote {
		if it.ID == id {
			return it.Clone(), nil
		}
	}
	return models.Issue{}, notFoundErr(id)
}

// indexLocked finds the collection index for an id. Caller holds mu.
func (s *Store) indexLocked(id string) (int, bool) {
	for i, it := range s.issues {
		if it.ID == id {
			return i, true
		}
	}
	return 0, false
}

// --- Filter and pagination setters: pure state assignment ---

// SetQuery sets the free-text search query.
func (s *Store) SetQuery(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
	s.notify()
}

// SetAssigneeFilter sets the assignee filter; AssigneeAll disables it.
func (s *Store) SetAssigneeFilter(assignee string) {
	s.mu.Lock()
	s.assigneeFilter = assignee
	s.mu.Unlock()
	s.notify()
}

// SetSeverityFilter sets the severity filter; SeverityAll disables it.
func (s *Store) SetSeverityFilter(severity int) {
	s.mu.Lock()
	s.severityFilter = severity
	s.mu.Unlock()
	s.notify()
}

// SetPage sets the pagination cursor.
func (s *Store) SetPage(page int) {
	s.mu.Lock()
	if page < 1 {
		page = 1
	}
	s.page = page
	s.mu.Unlock()
	s.notify()
}

// --- Read accessors: all return copies ---

// Issues returns a snapshot of the current collection.
func (s *Store) Issues() []models.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneAll(s.issues)
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the recorded store-level error, nil after the last
// successful sync.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LastSync returns the time of the last successful fetch.
func (s *Store) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// HasMore reports whether pages remain beyond the last fetched window.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Page returns the current pagination cursor.
func (s *Store) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Query returns the current search query.
func (s *Store) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// AssigneeFilter returns the current assignee filter.
func (s *Store) AssigneeFilter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assigneeFilter
}

// SeverityFilter returns the current severity filter.
func (s *Store) SeverityFilter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.severityFilter
}

// --- Change notification ---

// Subscribe registers a coalesced change signal. Consumers re-read the
// state they care about when the channel fires. The returned func
// unsubscribes.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}
