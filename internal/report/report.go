// Package report aggregates scored transactions into the response payload,
// masking card numbers and attaching summary statistics.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/reasons"
)

// Options controls report assembly.
type Options struct {
	// Threshold is the decision threshold the labels were derived with,
	// recorded on the report for auditability.
	Threshold float64

	// IncludePrevention appends the prevention-method section.
	IncludePrevention bool

	// ClassifierName records which scoring backend produced the labels.
	ClassifierName string
}

// Build assembles the report for one analysis batch. records and results
// are parallel slices in upload order, and the report preserves that order.
// Card numbers are masked here, at the single point where raw fields cross
// into an outward-facing payload.
func Build(records []*domain.Transaction, results []domain.ScoringResult, opts Options) *domain.Report {
	rep := &domain.Report{
		ID:                 uuid.NewString(),
		CreatedAt:          time.Now().UTC(),
		TotalTransactions:  len(records),
		TransactionResults: make([]domain.TransactionResult, 0, len(records)),
		Threshold:          opts.Threshold,
		ClassifierName:     opts.ClassifierName,
	}

	for i, tx := range records {
		res := results[i]
		if res.Label == domain.LabelFraud {
			rep.FraudCount++
		}
		rep.TransactionResults = append(rep.TransactionResults, domain.TransactionResult{
			Transaction: tx.MaskedFields(),
			Prediction:  int(res.Label),
			RiskScore:   res.Probability * 100,
			FraudType:   reasons.FraudType(tx, res.Label),
			Reasons:     reasons.Explain(tx, res.Label, res.Probability),
		})
	}

	rep.LegitimateCount = rep.TotalTransactions - rep.FraudCount
	if rep.TotalTransactions > 0 {
		rep.FraudPercentage = 100 * float64(rep.FraudCount) / float64(rep.TotalTransactions)
	}

	if opts.IncludePrevention {
		rep.PreventionMethods = PreventionMethods(records, results)
	}

	return rep
}
