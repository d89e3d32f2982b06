package resilience

import (
	"time"
)

// MaxRemoteBudget caps the total time a remote call on the request path may
// take, retries and waits included.
const MaxRemoteBudget = 900 * time.Millisecond

// remoteBackoff is the wait between remote attempts.
const remoteBackoff = 50 * time.Millisecond

// FromRemoteConfig builds the retry policy for a remote call on the request
// path. timeoutMs is the budget for the whole call, capped at
// MaxRemoteBudget (and defaulting to it). The waits between attempts take at
// most a quarter of it and the rest is split evenly across the attempts.
func FromRemoteConfig(timeoutMs, retries int) RetryConfig {
	cfg := DefaultRetryConfig()
	if retries >= 0 {
		cfg.MaxAttempts = retries + 1
	}

	budget := MaxRemoteBudget
	if timeoutMs > 0 {
		budget = min(time.Duration(timeoutMs)*time.Millisecond, MaxRemoteBudget)
	}

	waits := time.Duration(0)
	if n := cfg.MaxAttempts - 1; n > 0 {
		waits = min(time.Duration(n)*remoteBackoff, budget/4)
		cfg.InitialBackoff = waits / time.Duration(n)
		cfg.MaxBackoff = cfg.InitialBackoff
		cfg.Multiplier = 1
		cfg.JitterFraction = 0
	}

	cfg.Budget = budget
	cfg.AttemptTimeout = (budget - waits) / time.Duration(cfg.MaxAttempts)
	return cfg
}

// FromBreakerConfig converts config values to a CircuitBreakerConfig.
func FromBreakerConfig(windowMins, minSamples int, errorThreshold float64) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if windowMins > 0 {
		cfg.Window = time.Duration(windowMins) * time.Minute
	}
	if minSamples > 0 {
		cfg.MinSamples = minSamples
	}
	if errorThreshold > 0 {
		cfg.ErrorThreshold = errorThreshold
	}
	return cfg
}
