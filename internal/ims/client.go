// Package ims is a client for the IMS Envista observation API.
package ims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/metrics"
)

var (
	// ErrNoData is returned when every attempt produced an empty or error payload.
	ErrNoData = errors.New("ims: no data returned")
	// ErrUnknownMonitor is returned when a station lacks the requested monitor.
	ErrUnknownMonitor = errors.New("ims: unknown monitor")
	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("ims: circuit breaker open")
	// ErrNoToken is returned when the client was built without an API token.
	ErrNoToken = errors.New("ims: api token not configured")
)

// DefaultBaseURL is the Envista API root.
const DefaultBaseURL = "https://api.ims.gov.il/v1/envista"

// activityChannel is the channel probed for a station's first and last reading.
const activityChannel = 1

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Client talks to the Envista API.
type Client struct {
	baseURL string
	token   string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates a Client. Zero options fall back to the API defaults.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ims",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		httpCfg: HTTPClientConfig{
			Client: opts.HTTPClient,
			Backoff: BackoffConfig{
				MaxRetries:      opts.MaxRetries,
				InitialInterval: opts.RetryDelay,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
		logger:  opts.Logger.Named("ims"),
	}
}

// Stations returns the full station list.
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	var out []Station
	if err := c.getJSON(ctx, "stations", "/stations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Regions returns the region list.
func (c *Client) Regions(ctx context.Context) ([]Region, error) {
	var out []Region
	if err := c.getJSON(ctx, "regions", "/regions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Earliest returns the datetime of the station's first reading.
func (c *Client) Earliest(ctx context.Context, stationID int) (string, error) {
	return c.edge(ctx, stationID, "earliest")
}

// Latest returns the datetime of the station's most recent reading.
func (c *Client) Latest(ctx context.Context, stationID int) (string, error) {
	return c.edge(ctx, stationID, "latest")
}

func (c *Client) edge(ctx context.Context, stationID int, which string) (string, error) {
	path := fmt.Sprintf("/stations/%d/data/%d/%s", stationID, activityChannel, which)
	var resp dataResponse
	if err := c.getJSON(ctx, which, path, nil, hasFirstReading, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].Datetime == "" {
		return "", ErrNoData
	}
	return resp.Data[0].Datetime, nil
}

// hasFirstReading accepts an earliest/latest payload only when it carries a
// reading; the API sometimes answers with an empty data list.
func hasFirstReading(body []byte) bool {
	var resp dataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return true
	}
	return len(resp.Data) > 0 && resp.Data[0].Datetime != ""
}

// Range returns the readings of one channel between two dates (YYYY-MM-DD,
// inclusive).
func (c *Client) Range(ctx context.Context, stationID, channel int, from, to string) ([]Reading, error) {
	q := url.Values{}
	q.Set("from", slashDate(from))
	q.Set("to", slashDate(to))
	path := fmt.Sprintf("/stations/%d/data/%d", stationID, channel)

	var resp dataResponse
	if err := c.getJSON(ctx, "range", path, q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Daily returns the readings of one channel on a single date (YYYY-MM-DD).
func (c *Client) Daily(ctx context.Context, stationID, channel int, date string) ([]Reading, error) {
	path := fmt.Sprintf("/stations/%d/data/%d/daily/%s", stationID, channel, slashDate(date))

	var resp dataResponse
	if err := c.getJSON(ctx, "daily", path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, q url.Values, accept acceptFunc, out any) error {
	if c.token == "" {
		return ErrNoToken
	}

	u := c.baseURL + path
	if len(q) > 0 {
		// The API expects literal slashes in dates.
		u += "?" + strings.ReplaceAll(q.Encode(), "%2F", "/")
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "ApiToken "+c.token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	onRetry := func(attempt int, err error) {
		metrics.APIRetries.WithLabelValues(endpoint).Inc()
		c.logger.Debug("retrying request",
			zap.String("endpoint", endpoint),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	body, err := fetchWithResilience(ctx, c.httpCfg, c.circuit, buildRequest, accept, onRetry)
	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "decode_error").Inc()
		return fmt.Errorf("decode %s: %w", path, err)
	}
	metrics.APIRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

// slashDate converts YYYY-MM-DD to the API's YYYY/MM/DD.
func slashDate(date string) string {
	return strings.ReplaceAll(date, "-", "/")
}
