// Package jina provides a client for the Jina AI embeddings API.
package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Jina AI embedding operations.
type Client interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, model string, inputs []string) (*EmbeddingResponse, error)
}

// EmbeddingRequest is the POST /v1/embeddings body.
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse is the parsed Jina embeddings response.
type EmbeddingResponse struct {
	Model string          `json:"model"`
	Data  []EmbeddingData `json:"data"`
	Usage EmbeddingUsage  `json:"usage"`
}

// EmbeddingData holds one embedding vector.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingUsage tracks token consumption.
type EmbeddingUsage struct {
	TotalTokens int `json:"total_tokens"`
}

// Vectors returns the embeddings ordered by index.
func (r *EmbeddingResponse) Vectors() [][]float64 {
	out := make([][]float64, len(r.Data))
	for i, d := range r.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		} else {
			out[i] = d.Embedding
		}
	}
	return out
}

// StatusError is returned for non-2xx responses after retries.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jina: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithRetry sets the attempt count and initial backoff for transient failures.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(c *httpClient) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

type httpClient struct {
	apiKey      string
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a new Jina AI embeddings client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.jina.ai",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:     rate.NewLimiter(rate.Limit(5), 1),
		maxAttempts: 2,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request built by newReq with exponential backoff
// retries on transient failures (429, 500, 502, 503). Returns the response
// body and status code on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, int, error) {
	backoff := c.backoff

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, 0, eris.Wrap(err, "jina: rate limit wait")
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, 0, eris.Wrap(err, "jina: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxAttempts && ctx.Err() == nil {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "jina: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < c.maxAttempts {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Embed(ctx context.Context, model string, inputs []string) (*EmbeddingResponse, error) {
	if len(inputs) == 0 {
		return nil, eris.New("jina: embed requires at least one input")
	}

	payload, err := json.Marshal(EmbeddingRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, eris.Wrap(err, "jina: marshal request")
	}

	body, statusCode, err := c.retryDo(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "jina: embed request failed")
	}

	if statusCode != http.StatusOK {
		return nil, eris.Wrap(&StatusError{StatusCode: statusCode, Body: string(body)}, "jina: embed")
	}

	var result EmbeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}
	if len(result.Data) != len(inputs) {
		return nil, eris.Errorf("jina: expected %d embeddings, got %d", len(inputs), len(result.Data))
	}

	return &result, nil
}
