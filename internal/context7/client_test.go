package context7

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]ClientOption{WithBaseURL(server.URL), WithRateLimit(1000)}, opts...)
	return NewClient("test-key", opts...)
}

func TestFetch_NormalizesDocuments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "react hooks", r.URL.Query().Get("query"))
		assert.Equal(t, "react", r.URL.Query().Get("library"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"id":"ctx7-1","title":"useState","content":"# useState","library":"react","owner":"facebook","version":"18.2.0","language":"en"},
			{"id":"ctx7-2","title":"useEffect","description":"Effect hook summary"}
		]}`))
	})

	docs, err := client.Fetch(context.Background(), "react hooks", "react")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "react", docs[0].Technology)
	assert.Equal(t, "facebook", docs[0].Owner)
	assert.Equal(t, "# useState", docs[0].Content)

	// Description backfills missing content; missing library falls back to the hint
	assert.Equal(t, "Effect hook summary", docs[1].Content)
	assert.Equal(t, "react", docs[1].Technology)
}

func TestFetch_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := client.Fetch(context.Background(), "query", "")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestFetch_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Fetch(context.Background(), "query", "")
	var rateErr *interfaces.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.True(t, interfaces.IsRetryable(err))
}

func TestFetch_CancelledContextIsNotRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, "query", "")
	require.ErrorIs(t, err, context.Canceled)

	var rateErr *interfaces.RateLimitError
	assert.False(t, errors.As(err, &rateErr))
	assert.False(t, interfaces.IsRetryable(err))
}

func TestFetch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}, WithBreaker(2, time.Minute))

	ctx := context.Background()
	_, err := client.Fetch(ctx, "q", "")
	require.Error(t, err)
	_, err = client.Fetch(ctx, "q", "")
	require.Error(t, err)

	// Threshold reached: the breaker rejects without calling the provider
	_, err = client.Fetch(ctx, "q", "")
	var unavailable *interfaces.ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 2, calls)
}

func TestBreaker_HalfOpenProbeRecovers(t *testing.T) {
	now := time.Now()
	b := newCircuitBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	var unavailable *interfaces.ProviderUnavailableError
	require.ErrorAs(t, b.Allow(), &unavailable)

	// After the cool-down one probe is admitted
	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())

	// While the probe is in flight further calls are rejected
	require.ErrorAs(t, b.Allow(), &unavailable)

	b.RecordSuccess()
	require.NoError(t, b.Allow())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := newCircuitBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	var unavailable *interfaces.ProviderUnavailableError
	require.ErrorAs(t, b.Allow(), &unavailable)
}
