package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// Client fetches the raw vehicle positions payload. It never retries; a
// failed poll is retried on the next schedule tick. After 5 consecutive
// failures the breaker opens and fetches fail fast for 2 minutes.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	circuit  *gobreaker.CircuitBreaker
}

// NewClient creates a feed client for endpoint, authenticating with apiKey
// passed as the "key" query parameter.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gtfs-rt-vehicle-positions",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		circuit:  cb,
	}
}

// Fetch performs one GET and returns the fully-read body.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &FetchError{Endpoint: c.endpoint, Err: err}
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T from circuit breaker", result)
	}
	return body, nil
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &FetchError{Endpoint: c.endpoint, Err: err}
	}
	q := u.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Endpoint: c.endpoint, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error embeds the full URL, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.endpoint
		}
		return nil, &FetchError{Endpoint: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Endpoint: c.endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Endpoint: c.endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, nil
}
