package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageServer(t *testing.T, status int, body map[string]any, seen func(map[string]any)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		if seen != nil {
			var req map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			seen(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body) //nolint:errcheck
	}))
	t.Cleanup(ts.Close)
	return ts
}

func reply(text string) map[string]any {
	return map[string]any{
		"id":   "msg_test_001",
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":                10,
			"output_tokens":               5,
			"cache_creation_input_tokens": 5000,
			"cache_read_input_tokens":     0,
		},
	}
}

func TestSDKClient_CreateMessage(t *testing.T) {
	var sent map[string]any
	ts := messageServer(t, http.StatusOK, reply(`{"site_type":"saas","industry":"software"}`), func(req map[string]any) {
		sent = req
	})

	client := NewClient("test-key", option.WithBaseURL(ts.URL))
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:          "claude-haiku-4-5-20251001",
		MaxTokens:      128,
		System:         "You are a site classifier.",
		SystemCacheTTL: "5m",
		Prompt:         "Domain: acme.example",
	})
	require.NoError(t, err)

	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, `{"site_type":"saas","industry":"software"}`, resp.Text)
	assert.Equal(t, TokenUsage{InputTokens: 10, OutputTokens: 5, CacheWriteTokens: 5000}, resp.Usage)

	system, ok := sent["system"].([]any)
	require.True(t, ok, "system sent as blocks")
	require.Len(t, system, 1)
	block := system[0].(map[string]any)
	assert.Equal(t, "You are a site classifier.", block["text"])
	assert.Contains(t, block, "cache_control")
}

func TestSDKClient_CreateMessage_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   string
	}{
		{"server error", http.StatusInternalServerError, "api_error"},
		{"overloaded", http.StatusServiceUnavailable, "overloaded_error"},
		{"bad request", http.StatusBadRequest, "invalid_request_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := messageServer(t, tt.status, map[string]any{
				"type":  "error",
				"error": map[string]any{"type": tt.kind, "message": tt.name},
			}, func(map[string]any) { calls.Add(1) })

			client := NewClient("test-key", option.WithBaseURL(ts.URL))
			_, err := client.CreateMessage(context.Background(), MessageRequest{
				Model:     "claude-haiku-4-5-20251001",
				MaxTokens: 64,
				Prompt:    "classify",
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "anthropic: create message")
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, int32(1), calls.Load(), "SDK retries are disabled")
		})
	}
}

func TestStatusCode_NonAPIError(t *testing.T) {
	assert.Equal(t, 0, StatusCode(errors.New("dial tcp: refused")))
	assert.Equal(t, 0, StatusCode(nil))
}
