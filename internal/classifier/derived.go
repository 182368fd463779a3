package classifier

import (
	"context"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Probabilities synthesized for label-only scoring capabilities. A fraud
// label maps to high confidence and a legitimate label to low confidence.
// This is a documented approximation, selected at construction time rather
// than by inspecting the scorer's capabilities at call time.
const (
	derivedFraudProbability      = 0.95
	derivedLegitimateProbability = 0.05
)

// Derived adapts a LabelScorer into a domain.Classifier by attaching the
// synthetic probabilities above to its hard labels.
type Derived struct {
	inner LabelScorer
}

// NewDerived wraps a label-only scorer with derived probabilities.
func NewDerived(inner LabelScorer) *Derived {
	return &Derived{inner: inner}
}

// Name identifies the backend, marking the derived-probability wrapping.
func (d *Derived) Name() string { return d.inner.Name() + "+derived" }

// Fingerprint delegates to the wrapped scorer.
func (d *Derived) Fingerprint() string { return d.inner.Fingerprint() }

// Score maps each hard label to its synthetic probability. The derived
// probabilities sit on either side of any threshold in (0.05, 0.95], so
// label and probability stay monotonically consistent.
func (d *Derived) Score(ctx context.Context, batch []domain.ScoreInput) ([]domain.ScoringResult, error) {
	labels, err := d.inner.Labels(ctx, batch)
	if err != nil {
		return nil, err
	}

	results := make([]domain.ScoringResult, len(labels))
	for i, label := range labels {
		if label == domain.LabelFraud {
			results[i] = domain.ScoringResult{Label: domain.LabelFraud, Probability: derivedFraudProbability}
		} else {
			results[i] = domain.ScoringResult{Label: domain.LabelLegitimate, Probability: derivedLegitimateProbability}
		}
	}
	return results, nil
}
