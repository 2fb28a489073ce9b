// Package resilience wraps outbound HTTP calls to upstream data providers
// with circuit breaking, bounded retries and health tracking.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the circuit breaker in logs and health reports.
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval clears the closed-state counts periodically. Zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	// Default: 60 seconds
	Timeout time.Duration

	// ReadyToTrip decides when to open. If nil, DefaultReadyToTrip is used.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// IsSuccessful classifies an error as a non-failure. If nil, any error
	// except a *RateLimitError counts as a failure.
	IsSuccessful func(err error) bool

	// OnStateChange is called when the breaker changes state, after logging.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)

	// Logger receives state transitions.
	Logger zerolog.Logger
}

// DefaultCircuitBreakerConfig returns the default configuration for a named upstream.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
		Logger:      zerolog.Nop(),
	}
}

// DefaultReadyToTrip opens the breaker once at least 5 requests were seen
// and half or more of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests == 0 {
		return false
	}
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 5 && failureRatio >= 0.5
}

// ConsecutiveFailures returns a ReadyToTrip func that opens after n failures in a row.
func ConsecutiveFailures(n uint32) func(counts gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

// NewCircuitBreaker creates a circuit breaker from the configuration.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = DefaultReadyToTrip
	}

	isSuccessful := cfg.IsSuccessful
	if isSuccessful == nil {
		isSuccessful = defaultIsSuccessful
	}

	logger := cfg.Logger
	onChange := cfg.OnStateChange

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  readyToTrip,
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")

			if onChange != nil {
				onChange(name, from, to)
			}
		},
	})
}
