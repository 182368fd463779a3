// Package classifier provides the fraud scoring backends behind the
// domain.Classifier interface: a trained mixture model, a centroid model
// with derived probabilities, and the CEL rule evaluator fallback.
package classifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Artifact is the serialized trained model. Kind selects the scoring
// backend: "gmm" artifacts carry full mixture components and yield a native
// probability, "centroids" artifacts carry cluster centers only and yield a
// hard label that gets a derived probability.
type Artifact struct {
	Kind    string `json:"kind"`
	Version string `json:"version"`

	// FeatureNames is the feature scheme the model was trained on. It must
	// match the extractor's scheme exactly, in order.
	FeatureNames []string `json:"featureNames"`

	// Scaler holds per-feature standardization parameters applied before
	// scoring, mirroring the training pipeline. Optional.
	Scaler *Scaler `json:"scaler,omitempty"`

	// Mixture parameters (kind "gmm").
	Components     []Component `json:"components,omitempty"`
	FraudComponent int         `json:"fraudComponent"`

	// Centroid parameters (kind "centroids").
	Centroids    [][]float64 `json:"centroids,omitempty"`
	FraudCluster int         `json:"fraudCluster"`
}

// Component is one Gaussian mixture component with diagonal covariance.
type Component struct {
	Weight    float64   `json:"weight"`
	Means     []float64 `json:"means"`
	Variances []float64 `json:"variances"`
}

// Scaler standardizes features: (x - mean) / std per dimension.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// Apply returns the standardized copy of v. The input is not modified.
func (s *Scaler) Apply(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		std := 1.0
		if i < len(s.Stds) && s.Stds[i] != 0 {
			std = s.Stds[i]
		}
		mean := 0.0
		if i < len(s.Means) {
			mean = s.Means[i]
		}
		out[i] = (v[i] - mean) / std
	}
	return out
}

// LoadArtifact reads and validates a model artifact from disk.
func LoadArtifact(path string, featureNames []string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}

	if err := a.validate(featureNames); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", path, err)
	}
	return &a, nil
}

func (a *Artifact) validate(featureNames []string) error {
	if len(a.FeatureNames) != len(featureNames) {
		return fmt.Errorf("feature scheme mismatch: artifact has %d features, extractor produces %d",
			len(a.FeatureNames), len(featureNames))
	}
	for i, name := range a.FeatureNames {
		if name != featureNames[i] {
			return fmt.Errorf("feature scheme mismatch at index %d: artifact %q, extractor %q",
				i, name, featureNames[i])
		}
	}

	width := len(featureNames)
	switch a.Kind {
	case "gmm":
		if len(a.Components) < 2 {
			return fmt.Errorf("gmm artifact needs at least 2 components, got %d", len(a.Components))
		}
		if a.FraudComponent < 0 || a.FraudComponent >= len(a.Components) {
			return fmt.Errorf("fraudComponent %d out of range", a.FraudComponent)
		}
		for i, c := range a.Components {
			if len(c.Means) != width || len(c.Variances) != width {
				return fmt.Errorf("component %d has wrong dimensionality", i)
			}
			if c.Weight <= 0 {
				return fmt.Errorf("component %d has non-positive weight", i)
			}
		}
	case "centroids":
		if len(a.Centroids) < 2 {
			return fmt.Errorf("centroid artifact needs at least 2 centroids, got %d", len(a.Centroids))
		}
		if a.FraudCluster < 0 || a.FraudCluster >= len(a.Centroids) {
			return fmt.Errorf("fraudCluster %d out of range", a.FraudCluster)
		}
		for i, c := range a.Centroids {
			if len(c) != width {
				return fmt.Errorf("centroid %d has wrong dimensionality", i)
			}
		}
	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}

	if a.Scaler != nil {
		if len(a.Scaler.Means) != width || len(a.Scaler.Stds) != width {
			return fmt.Errorf("scaler has wrong dimensionality")
		}
	}
	return nil
}
