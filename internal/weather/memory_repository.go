package weather

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Suitable for tests and single-process deployments without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	windows map[string]*HourlySeries
}

// NewInMemoryRepository creates a new in-memory history repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		windows: make(map[string]*HourlySeries),
	}
}

// Get retrieves a stored window.
func (r *InMemoryRepository) Get(_ context.Context, key WindowKey) (*HourlySeries, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.windows[key.String()]
	if !ok {
		return nil, ErrWindowNotFound
	}

	return copySeries(s), nil
}

// Put stores or replaces a window.
func (r *InMemoryRepository) Put(_ context.Context, key WindowKey, series *HourlySeries) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.windows[key.String()] = copySeries(series)
	return nil
}

// DeleteFetchedBefore removes windows fetched before the cutoff.
func (r *InMemoryRepository) DeleteFetchedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, s := range r.windows {
		if s.FetchedAt.Before(cutoff) {
			delete(r.windows, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored windows.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.windows)
}

func copySeries(s *HourlySeries) *HourlySeries {
	cpy := *s
	cpy.Observations = append([]Observation(nil), s.Observations...)
	return &cpy
}

var _ Repository = (*InMemoryRepository)(nil)
