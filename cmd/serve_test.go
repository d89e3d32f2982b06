//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-audit/internal/cache"
	"github.com/sells-group/site-audit/internal/model"
)

const shopHTML = `<!doctype html><html lang="en"><head>
<title>Trailhead Boots | Shop hiking boots</title>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Ridge Boot"}</script>
</head><body>
<nav><a href="/shop">Shop</a> <a href="/cart">Cart</a></nav>
<h1>Hiking boots and outdoor gear</h1>
<p>Add to cart. Free shipping on boots. Proceed to checkout. Only $129.00.</p>
</body></html>`

// downStore fails every ping.
type downStore struct {
	*cache.MemoryStore
}

func (downStore) Ping(context.Context) error { return eris.New("connection refused") }

func newTestRouter(t *testing.T, st cache.Store) http.Handler {
	t.Helper()
	env, err := buildApp(st, testConfig())
	require.NoError(t, err)
	return buildRouter(env)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, cache.NewMemory())

	rr := doJSON(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_HealthStoreDown(t *testing.T) {
	h := newTestRouter(t, downStore{cache.NewMemory()})

	rr := doJSON(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	h := newTestRouter(t, cache.NewMemory())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter(t, cache.NewMemory())
	doJSON(t, h, http.MethodGet, "/health", nil)

	rr := doJSON(t, h, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "site_audit_http_requests_total")
}

func TestRouter_ClassifyCachesResult(t *testing.T) {
	h := newTestRouter(t, cache.NewMemory())
	req := classifyRequest{URL: "https://trailhead.example", HTML: shopHTML}

	first := doJSON(t, h, http.MethodPost, "/v1/classify", req)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	var resp classifyResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &resp))
	require.NotNil(t, resp.Classification)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, "trailhead.example", resp.Classification.Domain)
	assert.Equal(t, model.SiteTypeEcommerce, resp.Classification.SiteType.Value)

	second := doJSON(t, h, http.MethodPost, "/v1/classify", req)
	require.Equal(t, http.StatusOK, second.Code)
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.True(t, resp.CacheHit)

	req.Force = true
	forced := doJSON(t, h, http.MethodPost, "/v1/classify", req)
	require.NoError(t, json.Unmarshal(forced.Body.Bytes(), &resp))
	assert.False(t, resp.CacheHit)
}

func TestRouter_ClassifyErrors(t *testing.T) {
	h := newTestRouter(t, cache.NewMemory())

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{name: "malformed body", body: "{", code: http.StatusBadRequest, want: "invalid request body"},
		{name: "missing url", body: `{"html":"<p>hi</p>"}`, code: http.StatusBadRequest, want: "url is required"},
		{name: "url without host", body: `{"url":"https://","html":"<p>hi</p>"}`, code: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.code, rr.Code)
			if tt.want != "" {
				assert.Contains(t, rr.Body.String(), tt.want)
			}
		})
	}
}

func TestRouter_Score(t *testing.T) {
	h := newTestRouter(t, cache.NewMemory())

	req := httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(duplicateTitleFacts))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report scoreReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.NotEmpty(t, report.PassID)
	assert.NotEmpty(t, report.Issues)
}

func TestRouter_ScoreBadBody(t *testing.T) {
	h := newTestRouter(t, cache.NewMemory())

	req := httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestRouter(t, cache.NewMemory())

	req := httptest.NewRequest(http.MethodOptions, "/v1/classify", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
