// Package resilience provides the rolling-window circuit breaker and retry
// patterns used for remote dependencies.
package resilience

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	// CircuitClosed is the normal operating state. Requests flow through.
	CircuitClosed CircuitState = "closed"
	// CircuitOpen means the windowed error rate crossed the threshold.
	// Requests are rejected until the window expires or a manual reset.
	CircuitOpen CircuitState = "open"
	// CircuitHalfOpen is entered by a manual reset. Calls are allowed and the
	// first success closes the circuit.
	CircuitHalfOpen CircuitState = "half_open"
)

// Outcome is a recorded call result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
)

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerState is the persisted breaker record. ErrorRate is always
// Errors/TotalCalls when TotalCalls > 0.
type BreakerState struct {
	State       CircuitState `json:"state"`
	TotalCalls  int          `json:"total_calls"`
	Errors      int          `json:"errors"`
	ErrorRate   float64      `json:"error_rate"`
	WindowStart time.Time    `json:"window_start"`
	LastError   *string      `json:"last_error"`
}

// CircuitBreakerConfig controls the rolling window.
type CircuitBreakerConfig struct {
	// Window is the rolling window horizon. Default: 15m.
	Window time.Duration

	// MinSamples is the minimum number of calls in the window before the
	// error rate can open the circuit. Default: 20.
	MinSamples int

	// ErrorThreshold is the error rate (0..1] at or above which the circuit
	// opens. Default: 0.10.
	ErrorThreshold float64

	// OnStateChange is called when a recorded outcome or reset changes state.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the standard remote-model window.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Window:         15 * time.Minute,
		MinSamples:     20,
		ErrorThreshold: 0.10,
	}
}

func (cfg CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	def := DefaultCircuitBreakerConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = def.ErrorThreshold
	}
	return cfg
}

// DefaultState returns a closed breaker with a window starting at now.
func DefaultState(now time.Time) BreakerState {
	return BreakerState{State: CircuitClosed, WindowStart: now.UTC()}
}

// Normalize returns s, or the default state when s has no window or its
// window is older than the horizon. An open breaker therefore closes once its
// window expires even if no call is recorded.
func Normalize(s BreakerState, now time.Time, cfg CircuitBreakerConfig) BreakerState {
	cfg = cfg.withDefaults()
	if s.WindowStart.IsZero() || now.Sub(s.WindowStart) > cfg.Window {
		return DefaultState(now)
	}
	switch s.State {
	case CircuitClosed, CircuitOpen, CircuitHalfOpen:
	default:
		return DefaultState(now)
	}
	return s
}

// Transition applies one recorded outcome to s and returns the new state.
// It is pure: the same inputs always produce the same output.
func Transition(s BreakerState, outcome Outcome, errMsg string, now time.Time, cfg CircuitBreakerConfig) BreakerState {
	cfg = cfg.withDefaults()
	s = Normalize(s, now, cfg)

	s.TotalCalls++
	switch outcome {
	case OutcomeSuccess:
		if s.State == CircuitHalfOpen {
			s.State = CircuitClosed
		}
	case OutcomeError:
		s.Errors++
		if errMsg != "" {
			msg := errMsg
			s.LastError = &msg
		}
	}
	s.ErrorRate = float64(s.Errors) / float64(s.TotalCalls)

	if outcome == OutcomeError && s.TotalCalls >= cfg.MinSamples && s.ErrorRate >= cfg.ErrorThreshold {
		s.State = CircuitOpen
	}
	return s
}

// StateStore is the key-value contract the breaker persists through.
// Get returns (nil, nil) on a miss.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Breaker is a circuit breaker whose state lives in a shared store so every
// engine instance observes the same record. Updates are read-modify-write
// without locking; concurrent writers race with last-writer-wins.
type Breaker struct {
	store StateStore
	key   string
	cfg   CircuitBreakerConfig

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreaker creates a persisted breaker stored under key.
func NewBreaker(store StateStore, key string, cfg CircuitBreakerConfig) *Breaker {
	return &Breaker{
		store:   store,
		key:     key,
		cfg:     cfg.withDefaults(),
		nowFunc: time.Now,
	}
}

// Key returns the store key the breaker persists under.
func (b *Breaker) Key() string { return b.key }

// Load reads and normalizes the persisted state. Store failures and corrupt
// records yield the default state.
func (b *Breaker) Load(ctx context.Context) BreakerState {
	now := b.nowFunc()
	raw, err := b.store.Get(ctx, b.key)
	if err != nil {
		zap.L().Warn("breaker: load failed, using default state",
			zap.String("key", b.key),
			zap.Error(err),
		)
		return DefaultState(now)
	}
	if raw == nil {
		return DefaultState(now)
	}
	var s BreakerState
	if err := json.Unmarshal(raw, &s); err != nil {
		zap.L().Warn("breaker: corrupt state, using default", zap.String("key", b.key), zap.Error(err))
		return DefaultState(now)
	}
	return Normalize(s, now, b.cfg)
}

// Allow returns ErrCircuitOpen when the breaker is open.
func (b *Breaker) Allow(ctx context.Context) (BreakerState, error) {
	s := b.Load(ctx)
	if s.State == CircuitOpen {
		return s, ErrCircuitOpen
	}
	return s, nil
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess(ctx context.Context) BreakerState {
	return b.record(ctx, OutcomeSuccess, "")
}

// RecordError records a failed call.
func (b *Breaker) RecordError(ctx context.Context, cause error) BreakerState {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return b.record(ctx, OutcomeError, msg)
}

// Reset forces the breaker into half_open with a fresh window.
func (b *Breaker) Reset(ctx context.Context) (BreakerState, error) {
	prev := b.Load(ctx)
	s := DefaultState(b.nowFunc())
	s.State = CircuitHalfOpen
	if err := b.save(ctx, s); err != nil {
		return s, err
	}
	b.notify(prev.State, s.State)
	return s, nil
}

func (b *Breaker) record(ctx context.Context, outcome Outcome, errMsg string) BreakerState {
	prev := b.Load(ctx)
	next := Transition(prev, outcome, errMsg, b.nowFunc(), b.cfg)
	if err := b.save(ctx, next); err != nil {
		zap.L().Warn("breaker: save failed", zap.String("key", b.key), zap.Error(err))
	}
	b.notify(prev.State, next.State)
	return next
}

func (b *Breaker) save(ctx context.Context, s BreakerState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "breaker: marshal state")
	}
	if err := b.store.Set(ctx, b.key, raw, b.cfg.Window); err != nil {
		return eris.Wrap(err, "breaker: save state")
	}
	return nil
}

func (b *Breaker) notify(from, to CircuitState) {
	if from == to {
		return
	}
	zap.L().Info("breaker: state change",
		zap.String("key", b.key),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
