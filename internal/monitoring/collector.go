package monitoring

import (
	"context"
	"time"

	"github.com/sells-group/site-audit/internal/resilience"
)

// Snapshot is a point-in-time view of remote-model and cache health.
type Snapshot struct {
	BreakerKey       string  `json:"breaker_key,omitempty"`
	BreakerState     string  `json:"breaker_state,omitempty"`
	BreakerCalls     int     `json:"breaker_calls"`
	BreakerErrors    int     `json:"breaker_errors"`
	BreakerErrorRate float64 `json:"breaker_error_rate"`
	BreakerLastError string  `json:"breaker_last_error,omitempty"`
	// BreakerMinSamples is the call count below which the rate is noise.
	BreakerMinSamples int `json:"breaker_min_samples"`

	StoreHealthy bool   `json:"store_healthy"`
	StoreError   string `json:"store_error,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// BreakerSource is the persisted breaker the collector reads.
type BreakerSource interface {
	Key() string
	Load(ctx context.Context) resilience.BreakerState
}

// Pinger checks cache store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Collector gathers breaker and store health. Either source may be nil.
type Collector struct {
	breaker    BreakerSource
	store      Pinger
	minSamples int
}

// NewCollector creates a health collector.
func NewCollector(breaker BreakerSource, store Pinger, minSamples int) *Collector {
	return &Collector{breaker: breaker, store: store, minSamples: minSamples}
}

// Collect reads the current breaker record and pings the store. It also
// mirrors breaker state into the Prometheus gauges, so every instance
// reports the shared record rather than its own transitions.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		CollectedAt:       time.Now().UTC(),
		StoreHealthy:      true,
		BreakerMinSamples: c.minSamples,
	}

	if c.breaker != nil {
		s := c.breaker.Load(ctx)
		snap.BreakerKey = c.breaker.Key()
		snap.BreakerState = string(s.State)
		snap.BreakerCalls = s.TotalCalls
		snap.BreakerErrors = s.Errors
		snap.BreakerErrorRate = s.ErrorRate
		if s.LastError != nil {
			snap.BreakerLastError = *s.LastError
		}
		BreakerState.WithLabelValues(snap.BreakerKey).Set(BreakerStateValue(snap.BreakerState))
		BreakerErrorRate.WithLabelValues(snap.BreakerKey).Set(snap.BreakerErrorRate)
	}

	if c.store != nil {
		if err := c.store.Ping(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			snap.StoreHealthy = false
			snap.StoreError = err.Error()
		}
	}

	return snap, nil
}
