package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/site-audit/internal/config"
)

func TestChecker_AlertsOnFirstPassAndStops(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{CheckIntervalSecs: 60, WebhookURL: ts.URL}
	checker := NewChecker(NewCollector(openBreaker("remote-model:breaker:checker"), &fakePinger{}, 20), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return received.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(nil, nil, 0), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.NotNil(t, checker)

	// Start with a cancelled context to verify it returns without checking.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}
