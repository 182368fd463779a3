package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/features"
	"github.com/fraudshield/fraudshield/internal/rules"
)

// New selects the scoring backend at startup. A present, valid artifact
// yields a model-backed classifier (mixture for native probabilities,
// centroid wrapped in derived probabilities); a missing artifact falls back
// to the rule engine. A present but invalid artifact is an error - silent
// degradation would hide a broken deployment.
func New(cfg domain.ModelConfig, scoring domain.ScoringConfig, engine *rules.Engine) (domain.Classifier, error) {
	threshold := scoring.DefaultThreshold

	if cfg.ArtifactPath == "" {
		slog.Info("no model artifact configured, using rule-backed classifier")
		return NewRuleBacked(engine, threshold), nil
	}

	artifact, err := LoadArtifact(cfg.ArtifactPath, features.FeatureNames())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("model artifact not found, falling back to rule-backed classifier",
				"path", cfg.ArtifactPath,
			)
			return NewRuleBacked(engine, threshold), nil
		}
		return nil, err
	}

	switch artifact.Kind {
	case "gmm":
		m, err := NewMixture(artifact, threshold)
		if err != nil {
			return nil, err
		}
		slog.Info("loaded mixture model artifact",
			"path", cfg.ArtifactPath,
			"components", len(artifact.Components),
		)
		return m, nil

	case "centroids":
		c, err := NewCentroid(artifact)
		if err != nil {
			return nil, err
		}
		slog.Info("loaded centroid model artifact, probabilities are derived",
			"path", cfg.ArtifactPath,
			"centroids", len(artifact.Centroids),
		)
		return NewDerived(c), nil
	}

	return nil, fmt.Errorf("unsupported artifact kind %q", artifact.Kind)
}
