// Package domain defines the core types and interfaces for FraudShield.
package domain

import (
	"context"
)

// FeatureVector is a fixed-width numeric encoding of one transaction.
// The feature name scheme is owned by the features package; every vector in
// a batch has the same width regardless of which source columns were present.
type FeatureVector []float64

// Label is the classifier's hard decision for a transaction.
type Label int

const (
	LabelLegitimate Label = 0
	LabelFraud      Label = 1
)

// ScoringResult pairs the hard label with the fraud probability for one
// transaction. Probability is always in [0,1]; Label is fraud iff the
// probability crossed the decision threshold in force.
type ScoringResult struct {
	Label       Label   `json:"label"`
	Probability float64 `json:"probability"`
}

// ScoreInput is one row of a scoring batch: the numeric feature vector for
// model-backed classifiers and the raw record for the rule evaluator. Both
// views describe the same transaction.
type ScoreInput struct {
	Record   *Transaction
	Features FeatureVector
}

// Classifier scores a batch of transactions. Implementations must preserve
// batch order, never mutate the inputs, and be safe for concurrent use: the
// classifier is constructed once at startup and shared read-only across
// requests.
type Classifier interface {
	// Score returns one result per input row, in input order.
	Score(ctx context.Context, batch []ScoreInput) ([]ScoringResult, error)

	// Name identifies the scoring backend ("mixture", "centroid", "rules").
	Name() string

	// Fingerprint identifies the exact scoring configuration in force.
	// It changes whenever the backend would score differently, so cached
	// reports keyed on it go stale the moment rules are reloaded.
	Fingerprint() string
}

// Relabel re-derives the hard label from the probability against the given
// decision threshold. The supplied threshold governs the label for every
// classifier variant; this is the single place the contract is applied.
func (r ScoringResult) Relabel(threshold float64) ScoringResult {
	out := r
	if r.Probability >= threshold {
		out.Label = LabelFraud
	} else {
		out.Label = LabelLegitimate
	}
	return out
}
