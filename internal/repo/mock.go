package repo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/joescharf/kb/internal/models"
)

const (
	// DefaultLatency matches the reference backend's simulated delay.
	DefaultLatency = 500 * time.Millisecond

	// DefaultWriteFailureRate is the probability that ApplyUpdate fails.
	DefaultWriteFailureRate = 0.10
)

// MockConfig configures the simulated backend.
type MockConfig struct {
	Latency          time.Duration // per-call delay; 0 = none
	WriteFailureRate float64       // 0..1 probability of write failure
	Seed             int64         // rng seed; 0 = time-based
	Issues           []models.Issue
}

// Mock is an in-memory Repository with simulated latency and a
// configurable write-failure probability. Updates persist into its
// backing set, so later fetches observe them.
type Mock struct {
	latency     time.Duration
	failureRate float64

	mu     sync.Mutex
	rng    *rand.Rand
	issues []models.Issue
}

// NewMock creates a simulated backend from the given config.
func NewMock(cfg MockConfig) *Mock {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Mock{
		latency:     cfg.Latency,
		failureRate: cfg.WriteFailureRate,
		rng:         rand.New(rand.NewSource(seed)),
		issues:      models.CloneAll(cfg.Issues),
	}
}

// FetchAll returns a deep copy of the current issue set after the
// simulated latency.
func (m *Mock) FetchAll(ctx context.Context) ([]models.Issue, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.CloneAll(m.issues), nil
}

// ApplyUpdate merges the patch into the stored issue, failing with
// ErrWriteFailed at the configured probability.
func (m *Mock) ApplyUpdate(ctx context.Context, id string, patch models.Patch) (models.Issue, error) {
	if err := m.sleep(ctx); err != nil {
		return models.Issue{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rng.Float64() < m.failureRate {
		return models.Issue{}, ErrWriteFailed
	}

	for i, it := range m.issues {
		if it.ID == id {
			updated := patch.Apply(it)
			m.issues[i] = updated
			return updated.Clone(), nil
		}
	}
	return models.Issue{}, fmt.Errorf("%w: issue not found: %s", ErrWriteFailed, id)
}

// SetWriteFailureRate changes the failure probability. Tests use this to
// force deterministic success (0) or failure (1).
func (m *Mock) SetWriteFailureRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureRate = rate
}

// sleep waits out the simulated latency, honoring cancellation.
func (m *Mock) sleep(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.latency):
		return nil
	}
}
