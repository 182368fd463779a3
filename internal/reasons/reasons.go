// Package reasons produces the human-readable explanation list for flagged
// transactions. Reasons evaluate against the raw record, not the feature
// vector, so the wording stays meaningful to an analyst.
package reasons

import (
	"fmt"
	"strings"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// highAmountThreshold is the amount above which a transaction is flagged
// as unusually large.
const highAmountThreshold = 5000.0

// cardCurrencies is the fixed card-network/currency compatibility table,
// keyed by lower-cased network name. A currency outside a network's list is
// treated as a mismatch; unknown networks are never flagged.
var cardCurrencies = map[string][]string{
	"visa":       {"USD", "EUR"},
	"mastercard": {"USD", "EUR"},
	"amex":       {"USD"},
	"jcb":        {"JPY"},
	"interac":    {"CAD"},
}

// Explain returns the ordered reason list for one scored transaction.
// Legitimate transactions get an empty list. Flagged transactions get the
// fixed checklist in evaluation order, then the score summary, then - when
// fewer than two reasons accumulated - a generic risk-profile entry, so
// every flagged transaction carries at least two explanations.
func Explain(tx *domain.Transaction, label domain.Label, probability float64) []domain.Reason {
	if label != domain.LabelFraud {
		return []domain.Reason{}
	}

	out := make([]domain.Reason, 0, 4)

	if amount := tx.Amount(); amount > highAmountThreshold {
		out = append(out, domain.Reason{
			Factor:           "High Transaction Amount",
			Details:          fmt.Sprintf("Transaction amount of $%.2f is unusually high", amount),
			RiskContribution: domain.RiskHigh,
		})
	}

	if currency := tx.Currency(); currency != "" && currency != "USD" {
		out = append(out, domain.Reason{
			Factor:           "Foreign Currency",
			Details:          fmt.Sprintf("Transaction in %s is unusual", currency),
			RiskContribution: domain.RiskMedium,
		})
	}

	if tx.Has(domain.ColMCC) {
		out = append(out, domain.Reason{
			Factor:           "Merchant Category",
			Details:          fmt.Sprintf("Merchant category %s has elevated risk", tx.Get(domain.ColMCC)),
			RiskContribution: domain.RiskLow,
		})
	}

	if ts, ok := tx.Timestamp(); ok {
		if hour := ts.Hour(); hour < 6 || hour > 22 {
			out = append(out, domain.Reason{
				Factor:           "Unusual Transaction Time",
				Details:          fmt.Sprintf("Transaction occurred at %s", tx.Get(domain.ColTimestamp)),
				RiskContribution: domain.RiskMedium,
			})
		}
	}

	if tx.Has(domain.ColResponseCode) && tx.Int(domain.ColResponseCode) != 200 {
		out = append(out, domain.Reason{
			Factor:           "Unusual Response Code",
			Details:          fmt.Sprintf("Response code %s indicates potential issues", tx.Get(domain.ColResponseCode)),
			RiskContribution: domain.RiskHigh,
		})
	}

	if cardType, currency := tx.CardType(), tx.Currency(); cardType != "" && currency != "" {
		if allowed, known := cardCurrencies[strings.ToLower(cardType)]; known && !contains(allowed, currency) {
			out = append(out, domain.Reason{
				Factor:           "Card and Currency Mismatch",
				Details:          fmt.Sprintf("%s card used with %s currency", cardType, currency),
				RiskContribution: domain.RiskHigh,
			})
		}
	}

	if strings.Contains(strings.ToLower(tx.Notes()), "suspicious") {
		out = append(out, domain.Reason{
			Factor:           "Suspicious Note Marker",
			Details:          "Transaction notes explicitly marked as suspicious",
			RiskContribution: domain.RiskHigh,
		})
	}

	out = append(out, scoreSummary(probability))

	// Explanation floor: every flagged transaction gets at least two entries.
	if len(out) < 2 {
		out = append(out, domain.Reason{
			Factor:           "Risk Profile Analysis",
			Details:          fmt.Sprintf("Transaction pattern matches known fraud patterns (risk score: %.1f%%)", probability*100),
			RiskContribution: domain.RiskMedium,
		})
	}

	return out
}

// scoreSummary renders the classifier's own probability as a reason.
func scoreSummary(probability float64) domain.Reason {
	weight := domain.RiskLow
	switch {
	case probability > 0.9:
		weight = domain.RiskHigh
	case probability > 0.7:
		weight = domain.RiskMedium
	}
	return domain.Reason{
		Factor:           "Model Risk Score",
		Details:          fmt.Sprintf("The scoring model assigned a fraud probability of %.1f%%", probability*100),
		RiskContribution: weight,
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
