package classifier

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/features"
	"github.com/fraudshield/fraudshield/internal/rules"
)

// testArtifact builds a two-cluster artifact over the real feature scheme.
// Cluster 0 sits at the origin, cluster 1 (fraud) at 100 on every axis.
func testArtifact(kind string) *Artifact {
	width := features.Width()
	low := make([]float64, width)
	high := make([]float64, width)
	ones := make([]float64, width)
	for i := 0; i < width; i++ {
		high[i] = 100
		ones[i] = 1
	}

	a := &Artifact{
		Kind:         kind,
		Version:      "test",
		FeatureNames: features.FeatureNames(),
	}
	switch kind {
	case "gmm":
		a.Components = []Component{
			{Weight: 0.9, Means: low, Variances: ones},
			{Weight: 0.1, Means: high, Variances: ones},
		}
		a.FraudComponent = 1
	case "centroids":
		a.Centroids = [][]float64{low, high}
		a.FraudCluster = 1
	}
	return a
}

// vectorNear returns a feature vector with every dimension set to value.
func vectorNear(value float64) domain.FeatureVector {
	v := make(domain.FeatureVector, features.Width())
	for i := range v {
		v[i] = value
	}
	return v
}

func writeArtifact(t *testing.T, a *Artifact) string {
	t.Helper()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("failed to marshal artifact: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	return path
}

func TestMixtureScore(t *testing.T) {
	m, err := NewMixture(testArtifact("gmm"), 0.5)
	if err != nil {
		t.Fatalf("failed to build mixture: %v", err)
	}
	if m.Name() != "mixture" {
		t.Errorf("expected name mixture, got %s", m.Name())
	}

	batch := []domain.ScoreInput{
		{Features: vectorNear(0)},   // at the legitimate component
		{Features: vectorNear(100)}, // at the fraud component
	}
	results, err := m.Score(context.Background(), batch)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Probability > 0.01 {
		t.Errorf("expected near-zero probability at legitimate component, got %.4f", results[0].Probability)
	}
	if results[0].Label != domain.LabelLegitimate {
		t.Errorf("expected legitimate label, got %v", results[0].Label)
	}
	if results[1].Probability < 0.99 {
		t.Errorf("expected near-one probability at fraud component, got %.4f", results[1].Probability)
	}
	if results[1].Label != domain.LabelFraud {
		t.Errorf("expected fraud label, got %v", results[1].Label)
	}
}

func TestMixtureProbabilityInRange(t *testing.T) {
	m, _ := NewMixture(testArtifact("gmm"), 0.5)

	for _, value := range []float64{-1000, -1, 0, 1, 50, 100, 1e6} {
		results, err := m.Score(context.Background(), []domain.ScoreInput{{Features: vectorNear(value)}})
		if err != nil {
			t.Fatalf("score failed at %v: %v", value, err)
		}
		p := results[0].Probability
		if math.IsNaN(p) || p < 0 || p > 1 {
			t.Errorf("probability out of range at %v: %v", value, p)
		}
	}
}

func TestMixtureRejectsWrongWidth(t *testing.T) {
	m, _ := NewMixture(testArtifact("gmm"), 0.5)

	_, err := m.Score(context.Background(), []domain.ScoreInput{
		{Features: domain.FeatureVector{1, 2, 3}},
	})
	if err == nil {
		t.Error("expected error for wrong feature width")
	}
}

func TestCentroidLabels(t *testing.T) {
	c, err := NewCentroid(testArtifact("centroids"))
	if err != nil {
		t.Fatalf("failed to build centroid labeler: %v", err)
	}

	labels, err := c.Labels(context.Background(), []domain.ScoreInput{
		{Features: vectorNear(10)}, // nearer the origin
		{Features: vectorNear(90)}, // nearer the fraud cluster
	})
	if err != nil {
		t.Fatalf("labels failed: %v", err)
	}

	if labels[0] != domain.LabelLegitimate {
		t.Errorf("expected legitimate near origin, got %v", labels[0])
	}
	if labels[1] != domain.LabelFraud {
		t.Errorf("expected fraud near fraud cluster, got %v", labels[1])
	}
}

func TestDerivedProbabilities(t *testing.T) {
	c, _ := NewCentroid(testArtifact("centroids"))
	d := NewDerived(c)

	if d.Name() != "centroid+derived" {
		t.Errorf("expected name centroid+derived, got %s", d.Name())
	}

	results, err := d.Score(context.Background(), []domain.ScoreInput{
		{Features: vectorNear(0)},
		{Features: vectorNear(100)},
	})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if results[0].Probability != derivedLegitimateProbability {
		t.Errorf("expected derived probability %.2f, got %.2f", derivedLegitimateProbability, results[0].Probability)
	}
	if results[0].Label != domain.LabelLegitimate {
		t.Errorf("expected legitimate label, got %v", results[0].Label)
	}
	if results[1].Probability != derivedFraudProbability {
		t.Errorf("expected derived probability %.2f, got %.2f", derivedFraudProbability, results[1].Probability)
	}
	if results[1].Label != domain.LabelFraud {
		t.Errorf("expected fraud label, got %v", results[1].Label)
	}
}

func TestScalerApply(t *testing.T) {
	s := &Scaler{Means: []float64{10, 0}, Stds: []float64{2, 0}}
	out := s.Apply([]float64{14, 5})

	if out[0] != 2 {
		t.Errorf("expected standardized 2, got %.2f", out[0])
	}
	// Zero std falls back to 1 instead of dividing by zero.
	if out[1] != 5 {
		t.Errorf("expected passthrough 5 for zero std, got %.2f", out[1])
	}
}

func TestArtifactValidation(t *testing.T) {
	t.Run("FeatureSchemeMismatch", func(t *testing.T) {
		a := testArtifact("gmm")
		a.FeatureNames = append([]string{"bogus"}, a.FeatureNames[1:]...)
		path := writeArtifact(t, a)

		if _, err := LoadArtifact(path, features.FeatureNames()); err == nil {
			t.Error("expected error for feature scheme mismatch")
		}
	})

	t.Run("UnknownKind", func(t *testing.T) {
		a := testArtifact("gmm")
		a.Kind = "forest"
		path := writeArtifact(t, a)

		if _, err := LoadArtifact(path, features.FeatureNames()); err == nil {
			t.Error("expected error for unknown kind")
		}
	})

	t.Run("FraudComponentOutOfRange", func(t *testing.T) {
		a := testArtifact("gmm")
		a.FraudComponent = 5
		path := writeArtifact(t, a)

		if _, err := LoadArtifact(path, features.FeatureNames()); err == nil {
			t.Error("expected error for out-of-range fraud component")
		}
	})

	t.Run("ValidRoundTrip", func(t *testing.T) {
		path := writeArtifact(t, testArtifact("centroids"))
		a, err := LoadArtifact(path, features.FeatureNames())
		if err != nil {
			t.Fatalf("expected valid artifact, got %v", err)
		}
		if a.Kind != "centroids" {
			t.Errorf("expected kind centroids, got %s", a.Kind)
		}
	})
}

func TestFactorySelection(t *testing.T) {
	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("rules engine: %v", err)
	}
	engine.LoadRules(rules.BuiltinRules())
	scoring := domain.ScoringConfig{DefaultThreshold: 0.5}

	t.Run("NoArtifactPath", func(t *testing.T) {
		c, err := New(domain.ModelConfig{}, scoring, engine)
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		if c.Name() != "rules" {
			t.Errorf("expected rules backend, got %s", c.Name())
		}
	})

	t.Run("MissingArtifactFallsBack", func(t *testing.T) {
		cfg := domain.ModelConfig{ArtifactPath: filepath.Join(t.TempDir(), "absent.json")}
		c, err := New(cfg, scoring, engine)
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		if c.Name() != "rules" {
			t.Errorf("expected rules fallback, got %s", c.Name())
		}
	})

	t.Run("InvalidArtifactIsAnError", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := New(domain.ModelConfig{ArtifactPath: path}, scoring, engine); err == nil {
			t.Error("expected error for unparseable artifact")
		}
	})

	t.Run("MixtureArtifact", func(t *testing.T) {
		path := writeArtifact(t, testArtifact("gmm"))
		c, err := New(domain.ModelConfig{ArtifactPath: path}, scoring, engine)
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		if c.Name() != "mixture" {
			t.Errorf("expected mixture backend, got %s", c.Name())
		}
	})

	t.Run("CentroidArtifact", func(t *testing.T) {
		path := writeArtifact(t, testArtifact("centroids"))
		c, err := New(domain.ModelConfig{ArtifactPath: path}, scoring, engine)
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		if c.Name() != "centroid+derived" {
			t.Errorf("expected derived centroid backend, got %s", c.Name())
		}
	})
}

func TestRuleBackedScore(t *testing.T) {
	engine, _ := rules.NewEngine()
	engine.LoadRules(rules.BuiltinRules())
	c := NewRuleBacked(engine, 0.5)

	batch := []domain.ScoreInput{
		{Record: &domain.Transaction{ID: "a", Fields: map[string]string{domain.ColAmount: "25"}}},
		{Record: &domain.Transaction{ID: "b", Fields: map[string]string{domain.ColAmount: "6000", domain.ColSource: "online"}}},
	}
	results, err := c.Score(context.Background(), batch)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if results[0].Probability != 0 || results[0].Label != domain.LabelLegitimate {
		t.Errorf("expected clean row unscored, got %+v", results[0])
	}
	if results[1].Probability != 0.8 || results[1].Label != domain.LabelFraud {
		t.Errorf("expected probability 0.8 and fraud label, got %+v", results[1])
	}
}
