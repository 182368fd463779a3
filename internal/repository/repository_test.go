package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fraudshield/fraudshield/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "fraudshield-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetReport", func(t *testing.T) {
		report := &domain.Report{
			ID:                "report-001",
			CreatedAt:         time.Now().UTC(),
			TotalTransactions: 3,
			FraudCount:        1,
			LegitimateCount:   2,
			FraudPercentage:   33.33,
			Threshold:         0.5,
			ClassifierName:    "rules",
			TransactionResults: []domain.TransactionResult{
				{
					Transaction: map[string]string{domain.ColCardNumber: "************1111"},
					Prediction:  1,
					RiskScore:   95,
					FraudType:   "High-Value Fraud",
					Reasons: []domain.Reason{
						{Factor: "High Transaction Amount", RiskContribution: domain.RiskHigh},
						{Factor: "Model Risk Score", RiskContribution: domain.RiskHigh},
					},
				},
			},
		}

		if err := repo.SaveReport(ctx, report); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}

		retrieved, err := repo.GetReport(ctx, report.ID)
		if err != nil {
			t.Fatalf("GetReport failed: %v", err)
		}

		if retrieved.ID != report.ID {
			t.Errorf("expected ID %s, got %s", report.ID, retrieved.ID)
		}
		if retrieved.FraudCount != 1 || retrieved.TotalTransactions != 3 {
			t.Errorf("summary counts lost: %+v", retrieved)
		}
		if len(retrieved.TransactionResults) != 1 {
			t.Fatalf("expected 1 transaction result, got %d", len(retrieved.TransactionResults))
		}
		if got := retrieved.TransactionResults[0].Transaction[domain.ColCardNumber]; got != "************1111" {
			t.Errorf("masked card number lost: %q", got)
		}
	})

	t.Run("SaveAndGetRuleConfig", func(t *testing.T) {
		rule := &domain.RuleConfig{
			ID:         "high-amount",
			Name:       "High Amount",
			Version:    "1.0.0",
			Expression: "amount > 5000.0",
			Weight:     0.5,
			Enabled:    true,
		}

		if err := repo.SaveRuleConfig(ctx, rule); err != nil {
			t.Fatalf("SaveRuleConfig failed: %v", err)
		}

		retrieved, err := repo.GetRuleConfig(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetRuleConfig failed: %v", err)
		}
		if retrieved.Expression != rule.Expression || retrieved.Weight != rule.Weight {
			t.Errorf("rule fields lost: %+v", retrieved)
		}
		if retrieved.Override {
			t.Errorf("override should default to false")
		}
	})

	t.Run("UpsertRuleConfig", func(t *testing.T) {
		rule := &domain.RuleConfig{
			ID:         "high-amount",
			Name:       "High Amount",
			Version:    "1.0.0",
			Expression: "amount > 6000.0",
			Weight:     0.6,
			Enabled:    true,
		}

		if err := repo.SaveRuleConfig(ctx, rule); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		retrieved, err := repo.GetRuleConfig(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetRuleConfig failed: %v", err)
		}
		if retrieved.Expression != "amount > 6000.0" {
			t.Errorf("expected updated expression, got %q", retrieved.Expression)
		}
	})

	t.Run("ListRuleConfigs", func(t *testing.T) {
		override := &domain.RuleConfig{
			ID:         "labeled-fraud",
			Name:       "Labeled Fraud",
			Version:    "1.0.0",
			Expression: "fraud_flag",
			Weight:     1.0,
			Override:   true,
			Enabled:    true,
		}
		if err := repo.SaveRuleConfig(ctx, override); err != nil {
			t.Fatalf("SaveRuleConfig failed: %v", err)
		}

		disabled := &domain.RuleConfig{
			ID:         "disabled-rule",
			Name:       "Disabled",
			Version:    "1.0.0",
			Expression: "amount > 0.0",
			Enabled:    false,
		}
		if err := repo.SaveRuleConfig(ctx, disabled); err != nil {
			t.Fatalf("SaveRuleConfig failed: %v", err)
		}

		configs, err := repo.ListRuleConfigs(ctx)
		if err != nil {
			t.Fatalf("ListRuleConfigs failed: %v", err)
		}
		if len(configs) != 2 {
			t.Fatalf("expected 2 enabled rules, got %d", len(configs))
		}
		for _, cfg := range configs {
			if cfg.ID == "disabled-rule" {
				t.Errorf("disabled rule should not be listed")
			}
			if cfg.ID == "labeled-fraud" && !cfg.Override {
				t.Errorf("override flag lost on round trip")
			}
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetReport(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetRuleConfig(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := repo.SaveReport(ctx, &domain.Report{}); err == nil {
			t.Error("expected error for report without ID")
		}
		if _, err := repo.GetReport(ctx, ""); err == nil {
			t.Error("expected error for empty reportID")
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
