// Package worker provides background job processing for histocast.
package worker

import (
	"sort"
	"time"
)

// PrefetchTarget is a named region whose history is kept warm in the cache.
type PrefetchTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Points are the lat/lon coordinates to prefetch.
	Points []Point

	// Priority determines prefetch order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// PrefetchConfig holds configuration for the history prefetch job.
type PrefetchConfig struct {
	// Targets are the regions to prefetch.
	// If empty, uses DefaultPrefetchTargets.
	Targets []PrefetchTarget

	// YearsBack is the number of past years fetched per point.
	// Default: 15
	YearsBack int

	// HalfWindow is the number of days fetched either side of each date.
	// It must match the predictor's fetch window for prefetched entries to be hit.
	// Default: 2
	HalfWindow int

	// Days is the number of consecutive target dates to prefetch,
	// starting at the requested date.
	// Default: 1
	Days int

	// Concurrency is the number of concurrent fetch workers.
	// Default: 3
	Concurrency int

	// Timeout bounds each individual window fetch.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultPrefetchConfig returns the default prefetch configuration.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		Targets:     DefaultPrefetchTargets(),
		YearsBack:   15,
		HalfWindow:  2,
		Days:        1,
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultPrefetchTargets returns a small set of high-traffic locations
// spread across climate zones.
func DefaultPrefetchTargets() []PrefetchTarget {
	return []PrefetchTarget{
		{
			Name:     "London",
			Priority: 1,
			Points:   []Point{{Lat: 51.5074, Lon: -0.1278}},
		},
		{
			Name:     "New York",
			Priority: 1,
			Points:   []Point{{Lat: 40.7128, Lon: -74.0060}},
		},
		{
			Name:     "Tokyo",
			Priority: 1,
			Points:   []Point{{Lat: 35.6762, Lon: 139.6503}},
		},
		{
			Name:     "Sydney",
			Priority: 2,
			Points:   []Point{{Lat: -33.8688, Lon: 151.2093}},
		},
		{
			Name:     "Sao Paulo",
			Priority: 2,
			Points:   []Point{{Lat: -23.5505, Lon: -46.6333}},
		},
		{
			Name:     "Nairobi",
			Priority: 3,
			Points:   []Point{{Lat: -1.2921, Lon: 36.8219}},
		},
		{
			Name:     "Reykjavik",
			Priority: 3,
			Points:   []Point{{Lat: 64.1466, Lon: -21.9426}},
		},
	}
}

// withDefaults fills zero-valued fields.
func (c PrefetchConfig) withDefaults() PrefetchConfig {
	d := DefaultPrefetchConfig()
	if len(c.Targets) == 0 {
		c.Targets = d.Targets
	}
	if c.YearsBack <= 0 {
		c.YearsBack = d.YearsBack
	}
	if c.HalfWindow <= 0 {
		c.HalfWindow = d.HalfWindow
	}
	if c.Days <= 0 {
		c.Days = d.Days
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// AllPoints returns all points from all targets, ordered by priority.
func (c PrefetchConfig) AllPoints() []Point {
	targets := append([]PrefetchTarget(nil), c.Targets...)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})

	var points []Point
	for _, target := range targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of points to prefetch.
func (c PrefetchConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}

// TotalWindows returns the number of history windows one run fetches.
func (c PrefetchConfig) TotalWindows() int {
	return c.TotalPoints() * c.YearsBack * c.Days
}
