package classifier

import (
	"context"
	"fmt"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// LabelScorer is a scoring capability that exposes hard labels only.
// Wrap one in Derived to satisfy domain.Classifier with an explicit
// synthesized probability.
type LabelScorer interface {
	Labels(ctx context.Context, batch []domain.ScoreInput) ([]domain.Label, error)
	Name() string
	Fingerprint() string
}

// Centroid assigns each row to its nearest cluster center. Artifacts of
// kind "centroids" carry no probabilistic parameters, so this backend only
// produces labels.
type Centroid struct {
	centroids [][]float64
	fraudIdx  int
	scaler    *Scaler
	version   string
}

// NewCentroid builds a centroid labeler from a validated "centroids" artifact.
func NewCentroid(a *Artifact) (*Centroid, error) {
	if a.Kind != "centroids" {
		return nil, fmt.Errorf("artifact kind %q is not a centroid model", a.Kind)
	}
	return &Centroid{
		centroids: a.Centroids,
		fraudIdx:  a.FraudCluster,
		scaler:    a.Scaler,
		version:   a.Version,
	}, nil
}

// Name identifies the backend.
func (c *Centroid) Name() string { return "centroid" }

// Fingerprint is constant for the process lifetime: the artifact is loaded
// once at startup and never swapped.
func (c *Centroid) Fingerprint() string { return "centroid:" + c.version }

// Labels assigns each row to the nearest centroid by squared Euclidean
// distance and maps membership in the fraud cluster to LabelFraud.
func (c *Centroid) Labels(ctx context.Context, batch []domain.ScoreInput) ([]domain.Label, error) {
	labels := make([]domain.Label, len(batch))
	for i, in := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(in.Features) != len(c.centroids[0]) {
			return nil, fmt.Errorf("row %d: feature width %d does not match model", i, len(in.Features))
		}

		v := []float64(in.Features)
		if c.scaler != nil {
			v = c.scaler.Apply(v)
		}

		best, bestDist := 0, -1.0
		for k, center := range c.centroids {
			dist := 0.0
			for d := range v {
				diff := v[d] - center[d]
				dist += diff * diff
			}
			if bestDist < 0 || dist < bestDist {
				best, bestDist = k, dist
			}
		}

		if best == c.fraudIdx {
			labels[i] = domain.LabelFraud
		} else {
			labels[i] = domain.LabelLegitimate
		}
	}
	return labels, nil
}
