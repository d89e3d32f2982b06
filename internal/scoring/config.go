// Package scoring converts per-page facts into five capped pillar scores, a
// weighted overall score and catastrophic-condition gates.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/model"
)

// Default thresholds.
const (
	DefaultFastLoadMs = 2500
	DefaultMinWords   = 300
)

// WeightTolerance is how far the weight sum may drift from 1.0.
const WeightTolerance = 0.001

// Weights maps pillar names to their share of the overall score.
type Weights map[string]float64

// DefaultWeights returns the published pillar weights. They sum to 1.0.
func DefaultWeights() Weights {
	return Weights{
		model.PillarCrawlability:  0.30,
		model.PillarStructured:    0.20,
		model.PillarAnswerability: 0.25,
		model.PillarTrust:         0.15,
		model.PillarVisibility:    0.10,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// ValidateWeights checks that every pillar has a non-negative weight and the
// weights sum to 1.0.
func ValidateWeights(w Weights) error {
	var errs []string

	known := make(map[string]bool)
	for _, p := range model.AllPillars() {
		known[p] = true
		v, ok := w[p]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("missing weight for %s", p))
		case v < 0:
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", p))
		}
	}
	var unknown []string
	for p := range w {
		if !known[p] {
			unknown = append(unknown, p)
		}
	}
	sort.Strings(unknown)
	for _, p := range unknown {
		errs = append(errs, fmt.Sprintf("unknown pillar %s", p))
	}

	if sum := w.Sum(); math.Abs(sum-1) > WeightTolerance {
		errs = append(errs, fmt.Sprintf("weights should sum to 1.0, got %.3f", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Config tunes a scoring pass.
type Config struct {
	// FastLoadMs is the load time under which a page counts as fast.
	FastLoadMs int
	// MinWords is the word count at which a page counts as substantive.
	MinWords int
	Weights  Weights
}

// ConfigFrom maps scoring settings onto a Config with the default weights.
func ConfigFrom(c config.ScoringConfig) Config {
	return Config{FastLoadMs: c.FastLoadMs, MinWords: c.MinWords}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.FastLoadMs <= 0 {
		c.FastLoadMs = DefaultFastLoadMs
	}
	if c.MinWords <= 0 {
		c.MinWords = DefaultMinWords
	}
	if c.Weights == nil {
		c.Weights = DefaultWeights()
	}
	return c
}
