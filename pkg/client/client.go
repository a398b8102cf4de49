// Package client provides the rate-limited HTTP client used against
// api.congress.gov and api.govinfo.gov, with retry, error classification
// and request metrics.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openlegis/govharvest/pkg/ratelimit"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "govharvest_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_request_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream API, e.g. https://api.congress.gov/v3
	BaseURL string

	// APIKey is appended as the api_key query parameter when set
	// (the authentication convention of both government APIs).
	APIKey string

	// UserAgent identifies this harvester to the upstream.
	UserAgent string

	// Limiter gates every outgoing request (REQUIRED). All clients of the
	// same upstream should share one bucket.
	Limiter *ratelimit.Bucket

	// Timeout per HTTP request.
	Timeout time.Duration

	// Retry policy for transient failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, apiKey string, limiter *ratelimit.Bucket) Config {
	return Config{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		UserAgent: "govharvest/0.1.0",
		Limiter:   limiter,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// Client is a rate-limited JSON API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a client. Configuration errors are fatal here, never during
// the run loop.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("client: rate limiter is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("client: user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     log.With().Str("component", "client").Logger(),
	}, nil
}

// Get performs a rate-limited GET and returns the response body. Transient
// failures (5xx, 429, network) are retried with backoff; 4xx returns an
// *APIError immediately, with errors.Is(err, ErrNotFound) matching a 404.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := path

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	reqURL, err := c.buildURL(path, params)
	if err != nil {
		return nil, err
	}

	var body []byte
	retryErr := retryWithBackoff(ctx, c.logger, c.config.Retry, func() (Class, error) {
		// Every attempt consumes a budget token, not just the first: a
		// retried request hits the upstream quota exactly like a fresh one.
		if err := c.config.Limiter.Acquire(ctx); err != nil {
			return ClassClient, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return ClassClient, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, reqErr := c.httpClient.Do(req)
		if reqErr != nil {
			errorsTotal.WithLabelValues(string(ClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			return ClassNetwork, reqErr
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			class := classify(resp, nil)
			errorsTotal.WithLabelValues(string(class)).Inc()

			logEvent := c.logger.Warn()
			if class == ClassRateLimit {
				// The local bucket should have prevented this; the
				// server's window is ahead of ours.
				logEvent = c.logger.Error()
			}
			logEvent.
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Upstream request error")

			return class, &APIError{
				StatusCode: resp.StatusCode,
				Class:      class,
				Message:    resp.Status,
			}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ClassNetwork)).Inc()
			return ClassNetwork, fmt.Errorf("read response body: %w", err)
		}
		return "", nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	return body, nil
}

// GetJSON performs Get and unmarshals the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) buildURL(path string, params url.Values) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")

	q := u.Query()
	for key, vals := range params {
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BaseURL returns the configured upstream base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(h *http.Client) {
	c.httpClient = h
}
