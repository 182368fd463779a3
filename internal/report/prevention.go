package report

import "github.com/fraudshield/fraudshield/internal/domain"

// PreventionMethods returns the recommendation section for a batch. Three
// baseline methods always apply; two more are added when the flagged
// transactions show high-value or foreign-currency activity.
func PreventionMethods(records []*domain.Transaction, results []domain.ScoringResult) []domain.PreventionMethod {
	methods := []domain.PreventionMethod{
		{
			Title:       "Multi-Factor Authentication",
			Description: "Require a second verification factor for card-not-present transactions.",
			Steps: []string{
				"Enable 3-D Secure for all online purchases",
				"Send one-time passcodes for transactions above routine amounts",
				"Require re-authentication after repeated declines",
			},
		},
		{
			Title:       "Real-Time Transaction Monitoring",
			Description: "Score every transaction as it happens and alert on anomalies.",
			Steps: []string{
				"Stream authorizations through the scoring pipeline",
				"Alert cardholders immediately on high-risk activity",
				"Review velocity spikes across cards and merchants",
			},
		},
		{
			Title:       "Card Security Controls",
			Description: "Give cardholders direct control over how their card can be used.",
			Steps: []string{
				"Allow instant card freezing from the mobile app",
				"Support per-channel enable and disable toggles",
				"Rotate card numbers after any confirmed compromise",
			},
		},
	}

	var highValue, international bool
	for i, tx := range records {
		if results[i].Label != domain.LabelFraud {
			continue
		}
		if tx.Amount() > 5000 {
			highValue = true
		}
		if c := tx.Currency(); c != "" && c != "USD" {
			international = true
		}
	}

	if highValue {
		methods = append(methods, domain.PreventionMethod{
			Title:       "Transaction Limits",
			Description: "Cap single-transaction and daily spend to contain high-value fraud.",
			Steps: []string{
				"Set per-transaction amount ceilings",
				"Apply rolling daily spend limits",
				"Require manual review above the ceiling",
			},
		})
	}
	if international {
		methods = append(methods, domain.PreventionMethod{
			Title:       "International Transaction Security",
			Description: "Add friction to cross-border activity on affected cards.",
			Steps: []string{
				"Notify cardholders of foreign-currency charges in real time",
				"Require travel notices before enabling foreign use",
				"Block currencies the cardholder has never transacted in",
			},
		})
	}

	return methods
}
