package ims

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/ims-weather/internal/common"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errEmptyPayload  = errors.New("empty or error payload")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// retryFunc is called before each backoff sleep.
type retryFunc func(attempt int, err error)

// acceptFunc reports whether a 200 body is usable. A rejected body is retried
// like an empty one.
type acceptFunc func(body []byte) bool

// Fetch GETs rawURL with the given headers, retrying transport failures,
// 429/5xx responses and empty or error payloads with exponential backoff. It
// runs without a circuit breaker.
func Fetch(ctx context.Context, client *http.Client, rawURL string, header http.Header, backoff BackoffConfig) ([]byte, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return req, nil
	}
	cfg := HTTPClientConfig{Client: client, Backoff: backoff}
	return fetchWithResilience(ctx, cfg, nil, buildRequest, nil, nil)
}

// fetchWithResilience executes the request with retries, exponential backoff and
// an optional circuit breaker, and returns the full body. Only transport
// failures and 429/5xx responses count against the breaker; the API's habit of
// answering 200 with an empty body or an error image is retried without
// tripping it.
func fetchWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
	accept acceptFunc,
	onRetry retryFunc,
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 1 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		do := func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
			return io.ReadAll(resp.Body)
		}
		var result interface{}
		if cb != nil {
			result, err = cb.Execute(do)
		} else {
			result, err = do()
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		if errors.Is(err, errUnexpected) {
			// 4xx other than 429 will not improve with retries.
			return nil, err
		}

		if err == nil {
			body, _ := result.([]byte)
			if !isErrorPayload(body) && (accept == nil || accept(body)) {
				return body, nil
			}
			err = errEmptyPayload
		}

		lastErr = err
		if attempt+1 >= cfg.Backoff.MaxRetries {
			if errors.Is(lastErr, errEmptyPayload) {
				return nil, ErrNoData
			}
			return nil, lastErr
		}
		if onRetry != nil {
			onRetry(attempt+1, lastErr)
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func isErrorPayload(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || common.HasAny(string(trimmed), "error.png")
}
