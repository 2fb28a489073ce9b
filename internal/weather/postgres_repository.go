package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// Observations are stored as a JSONB payload per window.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL history repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// storedObservation is the JSON form of an Observation. JSON has no NaN,
// so missing readings are encoded as null.
type storedObservation struct {
	Time   time.Time  `json:"t"`
	Values []*float64 `json:"v"`
}

// Get retrieves a stored window.
func (r *PostgresRepository) Get(ctx context.Context, key WindowKey) (*HourlySeries, error) {
	query := `
		SELECT lat, lon, start_day, end_day, source, fetched_at, observations
		FROM history_windows
		WHERE window_key = $1
	`

	var (
		series  HourlySeries
		payload []byte
	)
	err := r.pool.QueryRow(ctx, query, key.String()).Scan(
		&series.Location.Lat,
		&series.Location.Lon,
		&series.Start,
		&series.End,
		&series.Source,
		&series.FetchedAt,
		&payload,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}

	obs, err := decodeObservations(payload)
	if err != nil {
		return nil, fmt.Errorf("decode window %s: %w", key, err)
	}
	series.Observations = obs

	return &series, nil
}

// Put stores or replaces a window.
func (r *PostgresRepository) Put(ctx context.Context, key WindowKey, series *HourlySeries) error {
	payload, err := encodeObservations(series.Observations)
	if err != nil {
		return fmt.Errorf("encode window %s: %w", key, err)
	}

	query := `
		INSERT INTO history_windows (
			window_key, lat, lon, start_day, end_day, source, fetched_at, observations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (window_key) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			source = EXCLUDED.source,
			fetched_at = EXCLUDED.fetched_at,
			observations = EXCLUDED.observations
	`

	_, err = r.pool.Exec(ctx, query,
		key.String(),
		series.Location.Lat,
		series.Location.Lon,
		key.Start,
		key.End,
		series.Source,
		series.FetchedAt,
		payload,
	)
	return err
}

// DeleteFetchedBefore removes windows fetched before the cutoff.
func (r *PostgresRepository) DeleteFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM history_windows WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func encodeObservations(obs []Observation) ([]byte, error) {
	stored := make([]storedObservation, len(obs))
	for i, o := range obs {
		vals := o.Values.Slice()
		ptrs := make([]*float64, len(vals))
		for j := range vals {
			if !math.IsNaN(vals[j]) {
				ptrs[j] = &vals[j]
			}
		}
		stored[i] = storedObservation{Time: o.Time, Values: ptrs}
	}
	return json.Marshal(stored)
}

func decodeObservations(payload []byte) ([]Observation, error) {
	var stored []storedObservation
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	obs := make([]Observation, len(stored))
	for i, s := range stored {
		vals := make([]float64, NumVariables)
		for j := range vals {
			vals[j] = math.NaN()
			if j < len(s.Values) && s.Values[j] != nil {
				vals[j] = *s.Values[j]
			}
		}
		obs[i] = Observation{Time: s.Time, Values: ValuesFromSlice(vals)}
	}
	return obs, nil
}

var _ Repository = (*PostgresRepository)(nil)
