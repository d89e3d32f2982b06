package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testCfg() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Window:         15 * time.Minute,
		MinSamples:     20,
		ErrorThreshold: 0.10,
	}
}

// record applies n outcomes starting from s at time now.
func record(s BreakerState, outcome Outcome, n int, now time.Time) BreakerState {
	for i := 0; i < n; i++ {
		s = Transition(s, outcome, "boom", now, testCfg())
	}
	return s
}

func TestTransition_ErrorRateInvariant(t *testing.T) {
	s := DefaultState(t0)
	s = record(s, OutcomeSuccess, 3, t0)
	s = record(s, OutcomeError, 1, t0)

	if s.TotalCalls != 4 || s.Errors != 1 {
		t.Fatalf("expected 4 calls / 1 error, got %d / %d", s.TotalCalls, s.Errors)
	}
	if s.ErrorRate != 0.25 {
		t.Errorf("expected error rate 0.25, got %v", s.ErrorRate)
	}
	if s.LastError == nil || *s.LastError != "boom" {
		t.Errorf("expected last error boom, got %v", s.LastError)
	}
}

func TestTransition_OpensOnlyWithMinSamplesAndThreshold(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		errors    int
		want      CircuitState
	}{
		{"below min samples, all errors", 0, 19, CircuitClosed},
		{"at min samples, rate at threshold", 18, 2, CircuitOpen},
		{"at min samples, rate below threshold", 19, 1, CircuitClosed},
		{"above min samples, rate above threshold", 30, 10, CircuitOpen},
		{"many calls, rate just below", 91, 9, CircuitClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultState(t0)
			s = record(s, OutcomeSuccess, tt.successes, t0)
			s = record(s, OutcomeError, tt.errors, t0)
			if s.State != tt.want {
				t.Errorf("expected %s, got %s (calls=%d rate=%.3f)", tt.want, s.State, s.TotalCalls, s.ErrorRate)
			}
			wantOpen := s.TotalCalls >= 20 && s.ErrorRate >= 0.10
			if (s.State == CircuitOpen) != wantOpen {
				t.Errorf("open=%v but calls=%d rate=%.3f", s.State == CircuitOpen, s.TotalCalls, s.ErrorRate)
			}
		})
	}
}

func TestTransition_HalfOpenClosesOnSuccess(t *testing.T) {
	s := DefaultState(t0)
	s.State = CircuitHalfOpen

	s = Transition(s, OutcomeSuccess, "", t0.Add(time.Second), testCfg())
	if s.State != CircuitClosed {
		t.Errorf("expected closed after half-open success, got %s", s.State)
	}
}

func TestTransition_IsPure(t *testing.T) {
	s := DefaultState(t0)
	s = record(s, OutcomeError, 5, t0)
	a := Transition(s, OutcomeError, "x", t0.Add(time.Minute), testCfg())
	b := Transition(s, OutcomeError, "x", t0.Add(time.Minute), testCfg())

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Errorf("same inputs produced different states:\n%s\n%s", ja, jb)
	}
	if s.TotalCalls != 5 {
		t.Errorf("input state was mutated: %d calls", s.TotalCalls)
	}
}

func TestNormalize_WindowExpiryResetsWithoutCalls(t *testing.T) {
	s := DefaultState(t0)
	s = record(s, OutcomeError, 20, t0)
	if s.State != CircuitOpen {
		t.Fatalf("expected open, got %s", s.State)
	}

	// Inside the window nothing changes.
	same := Normalize(s, t0.Add(15*time.Minute), testCfg())
	if same.State != CircuitOpen || same.TotalCalls != 20 {
		t.Errorf("expected unchanged open state at window edge, got %+v", same)
	}

	later := t0.Add(15*time.Minute + time.Second)
	reset := Normalize(s, later, testCfg())
	if reset.State != CircuitClosed || reset.TotalCalls != 0 || reset.Errors != 0 {
		t.Errorf("expected default state after window, got %+v", reset)
	}
	if !reset.WindowStart.Equal(later) {
		t.Errorf("expected fresh window at %v, got %v", later, reset.WindowStart)
	}
}

func TestNormalize_UnknownStateIsDefault(t *testing.T) {
	s := BreakerState{State: "sideways", WindowStart: t0, TotalCalls: 3}
	got := Normalize(s, t0, testCfg())
	if got.State != CircuitClosed || got.TotalCalls != 0 {
		t.Errorf("expected default state, got %+v", got)
	}
}

// fakeStore is an in-memory StateStore that can be told to fail.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
	failSet bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, errors.New("store down")
	}
	return f.data[key], nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("store down")
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func newTestBreaker(store StateStore, now *time.Time) *Breaker {
	b := NewBreaker(store, "remote-model:breaker:v1", testCfg())
	b.nowFunc = func() time.Time { return *now }
	return b
}

func TestBreaker_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	now := t0

	a := newTestBreaker(store, &now)
	b := newTestBreaker(store, &now)

	for i := 0; i < 20; i++ {
		a.RecordError(ctx, errors.New("timeout"))
	}

	// A second instance sharing the store sees the open breaker.
	if _, err := b.Allow(ctx); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen from second instance, got %v", err)
	}
	if store.ttls["remote-model:breaker:v1"] != 15*time.Minute {
		t.Errorf("expected TTL equal to window, got %v", store.ttls["remote-model:breaker:v1"])
	}

	// After the window the breaker is closed again with no new calls.
	now = t0.Add(16 * time.Minute)
	s, err := b.Allow(ctx)
	if err != nil {
		t.Fatalf("expected allow after window expiry, got %v", err)
	}
	if s.State != CircuitClosed || s.TotalCalls != 0 {
		t.Errorf("expected default state, got %+v", s)
	}
}

func TestBreaker_ResetForcesHalfOpen(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	now := t0

	var transitions []string
	b := newTestBreaker(store, &now)
	b.cfg.OnStateChange = func(from, to CircuitState) {
		transitions = append(transitions, string(from)+"->"+string(to))
	}

	for i := 0; i < 20; i++ {
		b.RecordError(ctx, errors.New("bad schema"))
	}

	now = t0.Add(time.Minute)
	s, err := b.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.State != CircuitHalfOpen || s.TotalCalls != 0 || !s.WindowStart.Equal(now) {
		t.Errorf("expected fresh half-open state, got %+v", s)
	}
	if _, err := b.Allow(ctx); err != nil {
		t.Errorf("expected half-open to allow calls, got %v", err)
	}

	s = b.RecordSuccess(ctx)
	if s.State != CircuitClosed {
		t.Errorf("expected closed after success, got %s", s.State)
	}

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestBreaker_StoreFailureFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failGet = true
	now := t0
	b := newTestBreaker(store, &now)

	s, err := b.Allow(ctx)
	if err != nil {
		t.Fatalf("expected allow on load failure, got %v", err)
	}
	if s.State != CircuitClosed {
		t.Errorf("expected default closed state, got %s", s.State)
	}

	// Save failure is logged, not returned.
	store.failGet = false
	store.failSet = true
	s = b.RecordError(ctx, errors.New("x"))
	if s.TotalCalls != 1 {
		t.Errorf("expected in-memory transition despite save failure, got %+v", s)
	}

	if _, err := b.Reset(ctx); err == nil {
		t.Error("expected reset to surface save failure")
	}
}

func TestBreaker_CorruptRecordIsDefault(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.data["remote-model:breaker:v1"] = []byte("{not json")
	now := t0
	b := newTestBreaker(store, &now)

	s := b.Load(ctx)
	if s.State != CircuitClosed || s.TotalCalls != 0 {
		t.Errorf("expected default state, got %+v", s)
	}
}

func TestFromBreakerConfig(t *testing.T) {
	cfg := FromBreakerConfig(5, 10, 0.5)
	if cfg.Window != 5*time.Minute || cfg.MinSamples != 10 || cfg.ErrorThreshold != 0.5 {
		t.Errorf("unexpected config %+v", cfg)
	}

	def := FromBreakerConfig(0, 0, 0)
	if def.Window != 15*time.Minute || def.MinSamples != 20 || def.ErrorThreshold != 0.10 {
		t.Errorf("expected defaults, got %+v", def)
	}
}
