package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a request.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when every attempt failed without a response.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this upstream in logs, breaker state and the registry.
	Name string

	// Timeout bounds each individual HTTP attempt.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries uint64

	// DisableRetries makes every request a single attempt.
	DisableRetries bool

	// InitialInterval is the first retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff interval and any Retry-After wait.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Logger receives retry and breaker events.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the default configuration for a named upstream.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cbConfig,
		Logger:          zerolog.Nop(),
	}
}

// Client is an HTTP client with circuit breaking and retries.
// Server errors (5xx), rate limiting (429) and network failures are retried.
type Client struct {
	name           string
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
	logger         zerolog.Logger
	registry       atomic.Pointer[Registry]
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DisableRetries {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	cbConfig.Logger = cfg.Logger

	return &Client{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
		config:         cfg,
		logger:         cfg.Logger,
	}
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.name
}

// Do executes an HTTP request with circuit breaker protection and retries.
// Returns immediately with ErrCircuitOpen if the breaker is open. When all
// retries end in a 5xx or 429, the last response is returned without error
// so callers can inspect it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by MaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response
	attempt := 0

	operation := func() error {
		attempt++
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			switch {
			case r.StatusCode == http.StatusTooManyRequests:
				return r, &RateLimitError{RetryAfter: parseRetryAfter(r.Header.Get("Retry-After"))}
			case r.StatusCode >= 500:
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}

			if resp != nil {
				if lastResp != nil {
					lastResp.Body.Close()
				}
				lastResp = resp
			}

			var rl *RateLimitError
			if errors.As(err, &rl) && rl.RetryAfter > 0 {
				wait := min(rl.RetryAfter, c.config.MaxInterval)
				select {
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				case <-time.After(wait):
				}
			}
			return err
		}

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug().Err(err).
			Str("upstream", c.name).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("retrying upstream request")
	}

	err := backoff.RetryNotify(operation, policy, notify)
	c.report(lastResp, err)

	if err != nil {
		if lastResp != nil && !errors.Is(err, ErrCircuitOpen) {
			return lastResp, nil
		}
		if lastResp != nil {
			lastResp.Body.Close()
		}
		if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
	}

	return lastResp, nil
}

// report records the outcome in the registry the client is attached to.
func (c *Client) report(resp *http.Response, err error) {
	r := c.registry.Load()
	if r == nil {
		return
	}
	switch {
	case err != nil:
		r.RecordFailure(c.name, err)
	case resp != nil && (resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests):
		r.RecordFailure(c.name, fmt.Errorf("upstream status %d", resp.StatusCode))
	default:
		r.RecordSuccess(c.name)
	}
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// RateLimitError represents an HTTP 429 response.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// parseRetryAfter handles the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func defaultIsSuccessful(err error) bool {
	if err == nil {
		return true
	}
	// Being throttled means the upstream is alive.
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
