package weather_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histocast/histocast/internal/weather"
)

func TestInMemoryRepository(t *testing.T) {
	repo := weather.NewInMemoryRepository()
	ctx := context.Background()

	key := weather.WindowKey{GridLat: 52.37, GridLon: 4.89, Start: day(2020, 7, 13), End: day(2020, 7, 17)}

	_, err := repo.Get(ctx, key)
	assert.ErrorIs(t, err, weather.ErrWindowNotFound)

	series := &weather.HourlySeries{
		Source:       "mock",
		FetchedAt:    time.Now().Add(-2 * time.Hour),
		Observations: []weather.Observation{{Time: day(2020, 7, 13), Values: weather.Values{Temperature: 21}}},
	}
	require.NoError(t, repo.Put(ctx, key, series))

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 21.0, got.Observations[0].Values.Temperature)

	// Returned series is a copy
	got.Observations[0].Values.Temperature = -5
	again, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 21.0, again.Observations[0].Values.Temperature)

	n, err := repo.DeleteFetchedBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, repo.Len())
}

func TestWindowKey_String(t *testing.T) {
	key := weather.WindowKey{GridLat: 52.37, GridLon: -4.5, Start: day(2020, 7, 13), End: day(2020, 7, 17)}
	assert.Equal(t, "52.3700:-4.5000:20200713:20200717", key.String())
}
