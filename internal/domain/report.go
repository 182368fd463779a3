package domain

import (
	"time"
)

// RiskWeight is the qualitative contribution of a reason to a fraud label.
type RiskWeight string

const (
	RiskLow    RiskWeight = "Low"
	RiskMedium RiskWeight = "Medium"
	RiskHigh   RiskWeight = "High"
)

// Reason is one human-readable factor contributing to a fraud label.
type Reason struct {
	Factor           string     `json:"factor"`
	Details          string     `json:"details"`
	RiskContribution RiskWeight `json:"riskContribution"`
}

// TransactionResult is the scored view of one transaction in a report.
// Transaction holds the original fields with the card number masked.
type TransactionResult struct {
	Transaction map[string]string `json:"transaction"`
	Prediction  int               `json:"prediction"`
	RiskScore   float64           `json:"riskScore"` // probability scaled to 0-100
	FraudType   string            `json:"fraudType,omitempty"`
	Reasons     []Reason          `json:"reasons"`
}

// PreventionMethod is a static prevention recommendation appended to
// reports when the caller asks for the extended section.
type PreventionMethod struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

// Report is the aggregated outcome of one analysis batch. Reports are built
// once per request and are immutable afterwards.
type Report struct {
	ID        string    `json:"reportId"`
	CreatedAt time.Time `json:"createdAt"`

	TotalTransactions int     `json:"totalTransactions"`
	FraudCount        int     `json:"fraudCount"`
	LegitimateCount   int     `json:"legitimateCount"`
	FraudPercentage   float64 `json:"fraudPercentage"`

	TransactionResults []TransactionResult `json:"transactionResults"`
	PreventionMethods  []PreventionMethod  `json:"preventionMethods,omitempty"`

	// Threshold is the decision threshold the labels were derived with.
	Threshold float64 `json:"threshold"`

	// ClassifierName records which scoring backend produced the labels.
	ClassifierName string `json:"classifier"`
}
