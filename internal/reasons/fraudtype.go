package reasons

import (
	"strings"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// highValueThreshold is the amount above which a flagged transaction is
// classified as high-value fraud regardless of notes.
const highValueThreshold = 10000.0

// FraudType buckets a flagged transaction into a named fraud category.
// The checks form a ladder and the first match wins; legitimate
// transactions always get an empty string.
func FraudType(tx *domain.Transaction, label domain.Label) string {
	if label != domain.LabelFraud {
		return ""
	}

	notes := strings.ToLower(tx.Notes())
	switch {
	case strings.Contains(notes, "suspicious"):
		return "Suspicious Activity"
	case strings.Contains(notes, "high-value") || tx.Amount() > highValueThreshold:
		return "High-Value Fraud"
	case tx.Source() == "online" || tx.Source() == "mobile":
		return "Card Not Present"
	case strings.Contains(notes, "in-store") && strings.Contains(notes, "international"):
		return "Card Skimming"
	case strings.Contains(notes, "subscription"):
		return "Subscription Fraud"
	case strings.Contains(notes, "routine"):
		return "Routine Fraud"
	default:
		return "General Fraud"
	}
}
