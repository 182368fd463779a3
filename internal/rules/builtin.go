package rules

import "github.com/fraudshield/fraudshield/internal/domain"

// BuiltinRules returns the default weighted rule set. These load at startup
// when the repository holds no rules, so the rule-backed classifier works
// out of the box in environments without a trained model.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          "high-amount",
			Name:        "High Transaction Amount",
			Description: "Transaction amount above 5000",
			Version:     "1.0.0",
			Expression:  `amount > 5000.0`,
			Weight:      0.5,
			Enabled:     true,
		},
		{
			ID:          "online-channel",
			Name:        "Online Transaction Risk",
			Description: "Card-not-present channel",
			Version:     "1.0.0",
			Expression:  `source == "online"`,
			Weight:      0.3,
			Enabled:     true,
		},
		{
			ID:          "suspicious-note",
			Name:        "Suspicious Note Marker",
			Description: "Free-text notes explicitly marked suspicious",
			Version:     "1.0.0",
			Expression:  `notes.contains("suspicious")`,
			Weight:      0.8,
			Enabled:     true,
		},
		{
			ID:          "labeled-fraud",
			Name:        "Ground-Truth Fraud Label",
			Description: "Input row carries an explicit fraud flag",
			Version:     "1.0.0",
			Expression:  `fraud_flag`,
			Weight:      1.0,
			Override:    true,
			Enabled:     true,
		},
	}
}
