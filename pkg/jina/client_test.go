package jina

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, opts ...Option) Client {
	base := []Option{WithBaseURL(url), WithRateLimit(0), WithRetry(2, time.Millisecond)}
	return NewClient("test-key", append(base, opts...)...)
}

func TestEmbed_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jina-embeddings-v3", req.Model)
		assert.Equal(t, []string{"online store", "bank"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"model": "jina-embeddings-v3",
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0, 1}},
				{"index": 0, "embedding": []float64{1, 0}},
			},
			"usage": map[string]any{"total_tokens": 6},
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Embed(context.Background(), "jina-embeddings-v3", []string{"online store", "bank"})
	require.NoError(t, err)
	assert.Equal(t, 6, got.Usage.TotalTokens)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, got.Vectors())
}

func TestEmbed_NoInputs(t *testing.T) {
	t.Parallel()

	_, err := NewClient("k").Embed(context.Background(), "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one input")
}

func TestEmbed_UnknownModelNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"model not found"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Embed(context.Background(), "nope", []string{"x"})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbed_RetryOn503(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The body must be replayed on every attempt.
		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"text"}, req.Input)

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"data": []map[string]any{{"index": 0, "embedding": []float64{0.5}}},
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Embed(context.Background(), "m", []string{"text"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5}}, got.Vectors())
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_RetryExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, WithRetry(3, time.Millisecond)).Embed(context.Background(), "m", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbed_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Embed(context.Background(), "m", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 embeddings, got 0")
}

func TestEmbed_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Embed(context.Background(), "m", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestEmbed_ContextTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestClient(srv.URL).Embed(ctx, "m", []string{"x"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithRateLimit(t *testing.T) {
	t.Parallel()

	c := NewClient("k", WithRateLimit(10)).(*httpClient)
	require.NotNil(t, c.limiter)
	assert.InDelta(t, 10, float64(c.limiter.Limit()), 0.001)

	c = NewClient("k", WithRateLimit(0)).(*httpClient)
	assert.Nil(t, c.limiter)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient("k").(*httpClient)
	assert.Equal(t, "https://api.jina.ai", c.baseURL)
	assert.Equal(t, 2, c.maxAttempts)
	assert.NotNil(t, c.http)

	hc := &http.Client{Timeout: time.Second}
	c = NewClient("k", WithHTTPClient(hc)).(*httpClient)
	assert.Same(t, hc, c.http)
}

func TestRetryableStatusCode(t *testing.T) {
	t.Parallel()

	for _, code := range []int{429, 500, 502, 503} {
		assert.True(t, retryableStatusCode(code), "code %d", code)
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		assert.False(t, retryableStatusCode(code), "code %d", code)
	}
}
