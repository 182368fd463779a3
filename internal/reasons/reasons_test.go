package reasons

import (
	"testing"

	"github.com/fraudshield/fraudshield/internal/domain"
)

func record(fields map[string]string) *domain.Transaction {
	return &domain.Transaction{ID: "tx-1", Fields: fields}
}

func hasFactor(reasons []domain.Reason, factor string) bool {
	for _, r := range reasons {
		if r.Factor == factor {
			return true
		}
	}
	return false
}

func TestExplainLegitimateIsEmpty(t *testing.T) {
	tx := record(map[string]string{
		domain.ColAmount: "12000",
	})
	got := Explain(tx, domain.LabelLegitimate, 0.95)
	if len(got) != 0 {
		t.Fatalf("expected no reasons for legitimate transaction, got %d", len(got))
	}
}

func TestExplainHighAmount(t *testing.T) {
	tx := record(map[string]string{
		domain.ColAmount:   "12000",
		domain.ColCurrency: "USD",
	})
	got := Explain(tx, domain.LabelFraud, 0.95)
	if !hasFactor(got, "High Transaction Amount") {
		t.Fatalf("missing high amount reason: %+v", got)
	}
	for _, r := range got {
		if r.Factor == "High Transaction Amount" && r.RiskContribution != domain.RiskHigh {
			t.Fatalf("high amount should contribute High risk, got %s", r.RiskContribution)
		}
	}
}

func TestExplainChecklistOrder(t *testing.T) {
	tx := record(map[string]string{
		domain.ColAmount:    "6000",
		domain.ColCurrency:  "EUR",
		domain.ColMCC:       "7995",
		domain.ColTimestamp: "2024-03-01 23:30:00",
		domain.ColNotes:     "Suspicious purchase",
	})
	got := Explain(tx, domain.LabelFraud, 0.8)
	want := []string{
		"High Transaction Amount",
		"Foreign Currency",
		"Merchant Category",
		"Unusual Transaction Time",
		"Suspicious Note Marker",
		"Model Risk Score",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d reasons, got %d: %+v", len(want), len(got), got)
	}
	for i, factor := range want {
		if got[i].Factor != factor {
			t.Fatalf("reason %d: want %q, got %q", i, factor, got[i].Factor)
		}
	}
}

func TestExplainCardCurrencyMismatch(t *testing.T) {
	tx := record(map[string]string{
		domain.ColCardType: "Amex",
		domain.ColCurrency: "JPY",
	})
	got := Explain(tx, domain.LabelFraud, 0.6)
	if !hasFactor(got, "Card and Currency Mismatch") {
		t.Fatalf("missing mismatch reason: %+v", got)
	}
	if hasFactor(got, "High Transaction Amount") {
		t.Fatalf("unexpected amount reason for small transaction")
	}
}

func TestExplainCompatibleCardCurrency(t *testing.T) {
	tx := record(map[string]string{
		domain.ColCardType: "JCB",
		domain.ColCurrency: "JPY",
	})
	got := Explain(tx, domain.LabelFraud, 0.6)
	if hasFactor(got, "Card and Currency Mismatch") {
		t.Fatalf("JCB/JPY should be compatible: %+v", got)
	}
}

func TestExplainResponseCode(t *testing.T) {
	tx := record(map[string]string{
		domain.ColResponseCode: "503",
		domain.ColCurrency:     "USD",
	})
	got := Explain(tx, domain.LabelFraud, 0.6)
	if !hasFactor(got, "Unusual Response Code") {
		t.Fatalf("missing response code reason: %+v", got)
	}

	ok := record(map[string]string{
		domain.ColResponseCode: "200",
		domain.ColCurrency:     "USD",
	})
	got = Explain(ok, domain.LabelFraud, 0.6)
	if hasFactor(got, "Unusual Response Code") {
		t.Fatalf("code 200 should not produce a reason: %+v", got)
	}
}

func TestExplainFloorOfTwo(t *testing.T) {
	// Nothing in the record trips the checklist, only the score summary
	// fires, so the generic risk-profile reason fills the floor.
	tx := record(map[string]string{
		domain.ColAmount:   "20",
		domain.ColCurrency: "USD",
	})
	got := Explain(tx, domain.LabelFraud, 0.55)
	if len(got) != 2 {
		t.Fatalf("expected exactly 2 reasons, got %d: %+v", len(got), got)
	}
	if got[0].Factor != "Model Risk Score" || got[1].Factor != "Risk Profile Analysis" {
		t.Fatalf("unexpected floor composition: %+v", got)
	}
}

func TestScoreSummaryWeightBands(t *testing.T) {
	cases := []struct {
		probability float64
		want        domain.RiskWeight
	}{
		{0.95, domain.RiskHigh},
		{0.85, domain.RiskMedium},
		{0.55, domain.RiskLow},
	}
	for _, tc := range cases {
		if got := scoreSummary(tc.probability); got.RiskContribution != tc.want {
			t.Errorf("probability %.2f: want %s, got %s", tc.probability, tc.want, got.RiskContribution)
		}
	}
}

func TestFraudTypeLadder(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{"suspicious note wins", map[string]string{
			domain.ColNotes:  "suspicious in-store international",
			domain.ColAmount: "20000",
		}, "Suspicious Activity"},
		{"high value by amount", map[string]string{
			domain.ColAmount: "15000",
			domain.ColSource: "Online",
		}, "High-Value Fraud"},
		{"high value by note", map[string]string{
			domain.ColNotes: "High-value purchase",
		}, "High-Value Fraud"},
		{"card not present online", map[string]string{
			domain.ColSource: "Online",
		}, "Card Not Present"},
		{"card not present mobile", map[string]string{
			domain.ColSource: "mobile",
		}, "Card Not Present"},
		{"skimming", map[string]string{
			domain.ColNotes: "in-store international purchase",
		}, "Card Skimming"},
		{"subscription", map[string]string{
			domain.ColNotes: "monthly subscription renewal",
		}, "Subscription Fraud"},
		{"routine", map[string]string{
			domain.ColNotes: "routine grocery run",
		}, "Routine Fraud"},
		{"default", map[string]string{}, "General Fraud"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FraudType(record(tc.fields), domain.LabelFraud); got != tc.want {
				t.Fatalf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFraudTypeLegitimate(t *testing.T) {
	tx := record(map[string]string{domain.ColSource: "online"})
	if got := FraudType(tx, domain.LabelLegitimate); got != "" {
		t.Fatalf("legitimate transaction should have empty fraud type, got %q", got)
	}
}
