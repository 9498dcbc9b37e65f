// Package context7 provides the external documentation search client.
// Returned documents are raw: classification and TTL are computed by the
// ingestion pipeline, not here.
package context7

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

const (
	// DefaultBaseURL is the base URL for the Context7 API
	DefaultBaseURL = "https://context7.com/api/v1"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second)
	DefaultRateLimit = 10
)

// Client is a Context7 API client implementing interfaces.ExternalSearchService
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	breaker    *circuitBreaker
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithBreaker sets custom circuit breaker parameters
func WithBreaker(failureThreshold int, cooldown time.Duration) ClientOption {
	return func(c *Client) {
		c.breaker = newCircuitBreaker(failureThreshold, cooldown)
	}
}

// NewClient creates a new Context7 API client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		breaker: newCircuitBreaker(5, time.Minute),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds a client from application configuration
func NewClientFromConfig(cfg *common.Context7Config, logger arbor.ILogger) *Client {
	opts := []ClientOption{WithLogger(logger)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit))
	}
	if cfg.FailureThreshold > 0 && cfg.BreakerCooldown > 0 {
		opts = append(opts, WithBreaker(cfg.FailureThreshold, cfg.BreakerCooldown))
	}
	return NewClient(cfg.APIKey, opts...)
}

// Fetch searches the provider for documentation matching the query
func (c *Client) Fetch(ctx context.Context, query, technologyHint string) ([]models.Context7Document, error) {
	params := url.Values{}
	params.Set("query", query)
	if technologyHint != "" {
		params.Set("library", technologyHint)
	}

	var resp searchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	docs := make([]models.Context7Document, 0, len(resp.Results))
	for _, r := range resp.Results {
		content := r.Content
		if content == "" {
			content = r.Description
		}
		technology := r.Library
		if technology == "" {
			technology = technologyHint
		}
		docs = append(docs, models.Context7Document{
			ID:         r.ID,
			Technology: technology,
			Owner:      r.Owner,
			Version:    r.Version,
			Language:   r.Language,
			Metadata:   r.Metadata,
			Content:    content,
			Title:      r.Title,
			URL:        r.URL,
		})
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("query", query).
			Str("technology_hint", technologyHint).
			Int("documents", len(docs)).
			Msg("Context7 fetch completed")
	}
	return docs, nil
}

// Health probes the provider with a minimal request
func (c *Client) Health(ctx context.Context) error {
	params := url.Values{}
	params.Set("query", "ping")

	var resp searchResponse
	return c.get(ctx, "/search", params, &resp)
}

// get performs a GET request to the API, honoring the rate limiter and the
// circuit breaker.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.breaker.Allow(); err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &interfaces.RateLimitError{Provider: "context7", RetryAfter: time.Second}
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return &interfaces.ProviderTimeoutError{Provider: "context7", Elapsed: time.Since(start)}
		}
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.breaker.RecordFailure()
		return &interfaces.RateLimitError{Provider: "context7", RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("failed to decode response: %w", err)
	}

	c.breaker.RecordSuccess()
	return nil
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			return d
		}
	}
	return time.Second
}
