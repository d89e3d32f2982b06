package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBreakerOpen      AlertType = "breaker_open"
	AlertBreakerErrorRate AlertType = "breaker_error_rate"
	AlertStoreDown        AlertType = "store_down"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns a Snapshot into alerts and posts them to a webhook. An
// alert type fires once per incident: it is suppressed while the condition
// persists and re-armed once a check comes back without it.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client

	mu     sync.Mutex
	active map[AlertType]bool
}

// NewAlerter creates an Alerter. Without a webhook URL alerts are only
// logged.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		active: make(map[AlertType]bool),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	switch {
	case snap.BreakerState == "open":
		alerts = append(alerts, Alert{
			Type:     AlertBreakerOpen,
			Severity: "high",
			Message: fmt.Sprintf("Remote-model breaker %s is open (%d errors / %d calls, %.1f%%); second opinions are skipped",
				snap.BreakerKey, snap.BreakerErrors, snap.BreakerCalls, snap.BreakerErrorRate*100),
			Details: map[string]any{
				"key":        snap.BreakerKey,
				"error_rate": snap.BreakerErrorRate,
				"last_error": snap.BreakerLastError,
			},
			Timestamp: now,
		})
	case a.cfg.ErrorRateWarn > 0 && snap.BreakerCalls >= snap.BreakerMinSamples && snap.BreakerErrorRate >= a.cfg.ErrorRateWarn:
		alerts = append(alerts, Alert{
			Type:     AlertBreakerErrorRate,
			Severity: "medium",
			Message: fmt.Sprintf("Remote-model error rate %.1f%% exceeds warning threshold %.1f%% (%d calls)",
				snap.BreakerErrorRate*100, a.cfg.ErrorRateWarn*100, snap.BreakerCalls),
			Details: map[string]any{
				"key":        snap.BreakerKey,
				"error_rate": snap.BreakerErrorRate,
				"threshold":  a.cfg.ErrorRateWarn,
			},
			Timestamp: now,
		})
	}

	if !snap.StoreHealthy {
		alerts = append(alerts, Alert{
			Type:      AlertStoreDown,
			Severity:  "critical",
			Message:   "Classification cache store is unreachable: " + snap.StoreError,
			Details:   map[string]any{"error": snap.StoreError},
			Timestamp: now,
		})
	}

	return alerts
}

// Fresh filters alerts down to those whose incident has not been raised
// yet, and re-arms every type absent from alerts.
func (a *Alerter) Fresh(alerts []Alert) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[AlertType]bool, len(alerts))
	var fresh []Alert
	for _, al := range alerts {
		seen[al.Type] = true
		if a.active[al.Type] {
			AlertsTotal.WithLabelValues(string(al.Type), "suppressed").Inc()
			continue
		}
		a.active[al.Type] = true
		fresh = append(fresh, al)
	}
	for t := range a.active {
		if !seen[t] {
			delete(a.active, t)
		}
	}
	return fresh
}

// SendAlerts posts each alert to the webhook and returns how many were
// accepted.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	if a.cfg.WebhookURL == "" {
		for _, al := range alerts {
			AlertsTotal.WithLabelValues(string(al.Type), "logged").Inc()
		}
		return 0
	}

	sent := 0
	for _, al := range alerts {
		if err := a.post(ctx, al); err != nil {
			AlertsTotal.WithLabelValues(string(al.Type), "failed").Inc()
			zap.L().Error("monitoring: alert delivery failed",
				zap.String("type", string(al.Type)),
				zap.Error(err),
			)
			continue
		}
		AlertsTotal.WithLabelValues(string(al.Type), "sent").Inc()
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, al Alert) error {
	body, err := json.Marshal(al)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "site-audit-monitor")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode/100 != 2 {
		return eris.Errorf("monitoring: webhook status %d", resp.StatusCode)
	}
	return nil
}
