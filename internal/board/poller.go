package board

import (
	"context"
	"time"
)

// DefaultPollInterval is the resync cadence when none is configured.
const DefaultPollInterval = 10 * time.Second

// RunPolling re-syncs the store until ctx is cancelled. The first sync
// runs immediately; each subsequent one is scheduled only after the
// previous completes, so a slow fetch never stacks requests. Fetch
// errors are recorded in the store and the loop keeps going.
func (s *Store) RunPolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		_ = s.GetIssues(ctx, &Pagination{Page: s.Page()})
		timer.Reset(interval)
	}
}
