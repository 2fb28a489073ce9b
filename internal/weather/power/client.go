// Package power implements a historical weather provider backed by the
// NASA POWER hourly point API.
package power

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/histocast/histocast/internal/provider/resilience"
	"github.com/histocast/histocast/internal/weather"
)

const (
	// ProviderName identifies this history provider.
	ProviderName = "nasa-power"

	// DefaultBaseURL is the NASA POWER API base URL.
	DefaultBaseURL = "https://power.larc.nasa.gov"

	// DefaultCommunity selects the agroclimatology parameter community.
	DefaultCommunity = "AG"

	// DefaultTimeStandard reports timestamps in local solar time so that
	// daily means follow the location's own day.
	DefaultTimeStandard = "LST"

	hourlyPath  = "/api/temporal/hourly/point"
	hourLayout  = "2006010215"
	dayLayout   = "20060102"
	defaultFill = -999.0
)

// ClientConfig holds configuration for the POWER client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public POWER API).
	BaseURL string

	// Community is the POWER user community (optional, defaults to AG).
	Community string

	// TimeStandard is LST or UTC (optional, defaults to LST).
	TimeStandard string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a NASA POWER API client for hourly historical data.
type Client struct {
	baseURL      string
	community    string
	timeStandard string
	httpClient   *resilience.Client
	logger       zerolog.Logger
}

// NewClient creates a new POWER client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	community := cfg.Community
	if community == "" {
		community = DefaultCommunity
	}

	timeStandard := strings.ToUpper(cfg.TimeStandard)
	if timeStandard == "" {
		timeStandard = DefaultTimeStandard
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		// Multi-day hourly requests are slow to assemble upstream.
		rc.Timeout = 30 * time.Second
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		community:    community,
		timeStandard: timeStandard,
		httpClient:   httpClient,
		logger:       cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchHourly fetches hourly observations for all tracked variables over the
// inclusive day range [start, end].
func (c *Client) FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) (*weather.HourlySeries, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, weather.ErrInvalidRange
	}

	params := make([]string, 0, weather.NumVariables)
	for _, v := range weather.AllVariables() {
		params = append(params, v.Parameter())
	}

	q := url.Values{}
	q.Set("parameters", strings.Join(params, ","))
	q.Set("community", c.community)
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("start", start.Format(dayLayout))
	q.Set("end", end.Format(dayLayout))
	q.Set("format", "JSON")
	q.Set("time-standard", c.timeStandard)

	reqURL := c.baseURL + hourlyPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if msg := apiErr.message(); msg != "" {
			return nil, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var powerResp hourlyResponse
	if err := json.NewDecoder(resp.Body).Decode(&powerResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	series, err := c.toSeries(&powerResp, lat, lon, start, end)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("start", start.Format(dayLayout)).
		Int("observations", series.Len()).
		Msg("fetched POWER hourly window")

	return series, nil
}

// toSeries converts the POWER parameter maps into time-ordered observations.
// Fill values and absent parameters become NaN.
func (c *Client) toSeries(resp *hourlyResponse, lat, lon float64, start, end time.Time) (*weather.HourlySeries, error) {
	fill := defaultFill
	if resp.Header.FillValue != nil {
		fill = *resp.Header.FillValue
	}

	byHour := make(map[string]*weather.Values)
	for code, readings := range resp.Properties.Parameter {
		variable, ok := weather.VariableFromParameter(code)
		if !ok {
			continue
		}
		for stamp, raw := range readings {
			vals, ok := byHour[stamp]
			if !ok {
				missing := weather.MissingValues()
				vals = &missing
				byHour[stamp] = vals
			}
			if raw == nil || isFill(*raw, fill) {
				continue
			}
			vals.Set(variable, *raw)
		}
	}

	if len(byHour) == 0 {
		return nil, weather.ErrNoDataForLocation
	}

	stamps := make([]string, 0, len(byHour))
	for stamp := range byHour {
		stamps = append(stamps, stamp)
	}
	sort.Strings(stamps)

	obs := make([]weather.Observation, 0, len(stamps))
	for _, stamp := range stamps {
		t, err := time.ParseInLocation(hourLayout, stamp, time.UTC)
		if err != nil {
			c.logger.Warn().Str("timestamp", stamp).Msg("skipping unparseable POWER timestamp")
			continue
		}
		obs = append(obs, weather.Observation{Time: t, Values: *byHour[stamp]})
	}

	return &weather.HourlySeries{
		Location:     weather.Location{Lat: lat, Lon: lon},
		Start:        start,
		End:          end,
		Observations: obs,
		Source:       ProviderName,
		FetchedAt:    time.Now(),
	}, nil
}

// POWER API response structures.

type hourlyResponse struct {
	Header struct {
		Title     string   `json:"title"`
		FillValue *float64 `json:"fill_value"`
	} `json:"header"`
	Properties struct {
		Parameter map[string]map[string]*float64 `json:"parameter"`
	} `json:"properties"`
	Messages []string `json:"messages"`
}

type errorResponse struct {
	Messages []string `json:"messages"`
	Detail   any      `json:"detail"`
}

func (e errorResponse) message() string {
	if len(e.Messages) > 0 {
		return strings.Join(e.Messages, "; ")
	}
	if e.Detail != nil {
		return fmt.Sprint(e.Detail)
	}
	return ""
}

var _ weather.Provider = (*Client)(nil)

func isFill(x, fill float64) bool {
	return x == fill || math.IsNaN(x)
}
