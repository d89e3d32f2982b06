package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/config"
)

// Checker periodically collects health and raises alerts in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run checks once immediately, then on every interval. It blocks until ctx
// is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			c.check(ctx, log)
		}
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect health", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		c.alerter.Fresh(nil)
		log.Debug("monitoring: no alerts triggered", zap.String("breaker_state", snap.BreakerState))
		return
	}

	for _, a := range alerts {
		log.Warn("monitoring: alert", zap.String("type", string(a.Type)), zap.String("message", a.Message))
	}
	fresh := c.alerter.Fresh(alerts)
	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Info("monitoring: health check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_new", len(fresh)),
		zap.Int("alerts_sent", sent),
	)
}
