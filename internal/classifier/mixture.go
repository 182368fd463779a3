package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Mixture scores transactions with a trained Gaussian mixture model with
// diagonal covariances. The fraud probability is the posterior
// responsibility of the fraud component, so this backend exposes a native
// probability. Immutable after construction.
type Mixture struct {
	components []Component
	fraudIdx   int
	scaler     *Scaler
	threshold  float64
	version    string

	// Precomputed per-component log weight and log normalization constant.
	logWeights []float64
	logNorms   []float64
}

// NewMixture builds a mixture scorer from a validated "gmm" artifact.
func NewMixture(a *Artifact, threshold float64) (*Mixture, error) {
	if a.Kind != "gmm" {
		return nil, fmt.Errorf("artifact kind %q is not a mixture model", a.Kind)
	}

	m := &Mixture{
		components: a.Components,
		fraudIdx:   a.FraudComponent,
		scaler:     a.Scaler,
		threshold:  threshold,
		version:    a.Version,
		logWeights: make([]float64, len(a.Components)),
		logNorms:   make([]float64, len(a.Components)),
	}

	for k, c := range a.Components {
		m.logWeights[k] = math.Log(c.Weight)
		norm := 0.0
		for _, v := range c.Variances {
			if v <= 0 {
				v = 1e-9
			}
			norm += math.Log(2 * math.Pi * v)
		}
		m.logNorms[k] = -0.5 * norm
	}
	return m, nil
}

// Name identifies the backend.
func (m *Mixture) Name() string { return "mixture" }

// Fingerprint is constant for the process lifetime: the artifact is loaded
// once at startup and never swapped.
func (m *Mixture) Fingerprint() string { return "mixture:" + m.version }

// Score computes the posterior fraud probability per row. Order is
// preserved and inputs are never modified.
func (m *Mixture) Score(ctx context.Context, batch []domain.ScoreInput) ([]domain.ScoringResult, error) {
	results := make([]domain.ScoringResult, len(batch))
	for i, in := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(in.Features) != len(m.components[0].Means) {
			return nil, fmt.Errorf("row %d: feature width %d does not match model", i, len(in.Features))
		}

		prob := m.posterior(in.Features)
		results[i] = domain.ScoringResult{Probability: prob}.Relabel(m.threshold)
	}
	return results, nil
}

// posterior returns the responsibility of the fraud component for x,
// computed in log space for numerical stability.
func (m *Mixture) posterior(x []float64) float64 {
	v := []float64(x)
	if m.scaler != nil {
		v = m.scaler.Apply(v)
	}

	logs := make([]float64, len(m.components))
	for k, c := range m.components {
		sum := 0.0
		for d := range v {
			variance := c.Variances[d]
			if variance <= 0 {
				variance = 1e-9
			}
			diff := v[d] - c.Means[d]
			sum += diff * diff / variance
		}
		logs[k] = m.logWeights[k] + m.logNorms[k] - 0.5*sum
	}

	// log-sum-exp
	maxLog := logs[0]
	for _, l := range logs[1:] {
		if l > maxLog {
			maxLog = l
		}
	}
	total := 0.0
	for _, l := range logs {
		total += math.Exp(l - maxLog)
	}
	return math.Exp(logs[m.fraudIdx]-maxLog) / total
}
