package classify

import (
	"math"

	"github.com/sells-group/site-audit/internal/model"
)

// Confidence bounds. A lone label saturates at the ceiling, never 1.0.
const (
	MinConfidence = 0.5
	MaxConfidence = 0.95
)

// Estimate returns the top label with confidence
// clamp(top/(top+second), 0.5, 0.95). No ranked labels yields an empty label.
func Estimate(ranked []Ranked) model.ScoredLabel {
	if len(ranked) == 0 || ranked[0].Score <= 0 {
		return model.ScoredLabel{}
	}
	top := ranked[0].Score
	second := 0.0
	if len(ranked) > 1 && ranked[1].Score > 0 {
		second = ranked[1].Score
	}
	return model.ScoredLabel{
		Value:      ranked[0].Label,
		Confidence: clampConfidence(top / (top + second)),
	}
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return MinConfidence
	}
	c = math.Round(c*1000) / 1000
	return math.Max(MinConfidence, math.Min(MaxConfidence, c))
}
