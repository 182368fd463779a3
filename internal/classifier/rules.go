package classifier

import (
	"context"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/rules"
)

// RuleBacked scores transactions with the CEL weighted-rule engine. The
// capped accumulated rule score doubles as the fraud probability, so the
// deterministic rule path satisfies the same contract as the trained
// models. This path is selected when no model artifact is available.
type RuleBacked struct {
	engine    *rules.Engine
	threshold float64
}

// NewRuleBacked wraps a rule engine as a classifier.
func NewRuleBacked(engine *rules.Engine, threshold float64) *RuleBacked {
	return &RuleBacked{engine: engine, threshold: threshold}
}

// Name identifies the backend.
func (r *RuleBacked) Name() string { return "rules" }

// Fingerprint tracks the loaded rule set, so a hot reload invalidates any
// report cached under the previous rules.
func (r *RuleBacked) Fingerprint() string { return "rules:" + r.engine.Fingerprint() }

// Score evaluates the rule set against each raw record, in input order.
func (r *RuleBacked) Score(ctx context.Context, batch []domain.ScoreInput) ([]domain.ScoringResult, error) {
	results := make([]domain.ScoringResult, len(batch))
	for i, in := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, _ := r.engine.Score(ctx, in.Record)
		results[i] = domain.ScoringResult{Probability: score}.Relabel(r.threshold)
	}
	return results, nil
}
