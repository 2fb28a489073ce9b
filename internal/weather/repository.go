package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWindowNotFound is returned when no stored window matches a key.
var ErrWindowNotFound = errors.New("history window not found")

// WindowKey identifies a stored history window: a grid cell and an inclusive day range.
type WindowKey struct {
	GridLat float64
	GridLon float64
	Start   time.Time
	End     time.Time
}

// String returns a stable textual form of the key.
func (k WindowKey) String() string {
	return fmt.Sprintf("%.4f:%.4f:%s:%s", k.GridLat, k.GridLon, k.Start.Format("20060102"), k.End.Format("20060102"))
}

// Repository defines the interface for history window persistence.
type Repository interface {
	// Get retrieves a stored window. Returns ErrWindowNotFound if absent.
	Get(ctx context.Context, key WindowKey) (*HourlySeries, error)

	// Put stores or replaces a window.
	Put(ctx context.Context, key WindowKey, series *HourlySeries) error

	// DeleteFetchedBefore removes windows fetched before the cutoff and
	// returns how many were removed.
	DeleteFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NopRepository stores nothing; every lookup misses.
type NopRepository struct{}

// Get always returns ErrWindowNotFound.
func (NopRepository) Get(context.Context, WindowKey) (*HourlySeries, error) {
	return nil, ErrWindowNotFound
}

// Put discards the window.
func (NopRepository) Put(context.Context, WindowKey, *HourlySeries) error {
	return nil
}

// DeleteFetchedBefore removes nothing.
func (NopRepository) DeleteFetchedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}
