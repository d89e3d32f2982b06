package classify

import (
	"context"

	"github.com/sells-group/site-audit/internal/model"
)

// Source tiers recorded per label space.
const (
	TierOverride       = "override"
	TierRules          = "rules"
	TierEmbedding      = "embedding"
	TierRulesEmbedding = "rules+embedding"
	TierRemote         = "remote"
	TierDefault        = "default"
	TierNone           = "none"
)

// attempt is one step of a fallback chain. It returns ok=false when it has
// no evidence, and the chain moves on.
type attempt struct {
	tier string
	run  func(ctx context.Context) (label model.ScoredLabel, tier string, ok bool)
}

// runChain evaluates attempts in order and returns the first confident
// result. An exhausted chain yields an empty label from TierNone.
func runChain(ctx context.Context, attempts []attempt) (model.ScoredLabel, string) {
	for _, a := range attempts {
		label, tier, ok := a.run(ctx)
		if !ok || label.Empty() {
			continue
		}
		if tier == "" {
			tier = a.tier
		}
		return label, tier
	}
	return model.ScoredLabel{}, TierNone
}
