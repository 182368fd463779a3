package analysis

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fraudshield/fraudshield/internal/bus"
	"github.com/fraudshield/fraudshield/internal/cache"
	"github.com/fraudshield/fraudshield/internal/classifier"
	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/repository"
	"github.com/fraudshield/fraudshield/internal/rules"
)

const csvHeader = "Transaction ID,Cardholder Name,Card Number,Card Type,Transaction Amount,Transaction Date and Time,Transaction Currency,Transaction Source,Transaction Notes,Fraud Flag or Label"

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, _, _ := newTestStack(t)
	return svc
}

// newTestStack exposes the rule engine and event bus alongside the service
// for tests that reload rules or observe published events.
func newTestStack(t *testing.T) (*Service, *rules.Engine, domain.EventBus) {
	t.Helper()

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("rules engine: %v", err)
	}
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		t.Fatalf("load rules: %v", err)
	}

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	svc := NewService(
		classifier.NewRuleBacked(engine, 0.5),
		repo,
		cache.NewLRUCache(100),
		eventBus,
		domain.ScoringConfig{DefaultThreshold: 0.5},
		time.Minute,
		nil,
	)
	return svc, engine, eventBus
}

func csvUpload(rows ...string) []byte {
	return []byte(csvHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func TestAnalyzeHighAmountFlagged(t *testing.T) {
	svc := newTestService(t)

	data := csvUpload(
		"tx-1,Alice Smith,4111111111111111,Visa,12000,2024-03-01 14:00:00,USD,in-store,,",
	)

	rep, err := svc.AnalyzeCSV(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("AnalyzeCSV failed: %v", err)
	}

	if rep.FraudCount != 1 || rep.LegitimateCount != 0 {
		t.Fatalf("expected 1 flagged transaction, got %+v", rep)
	}

	result := rep.TransactionResults[0]
	if result.Prediction != 1 {
		t.Fatalf("expected fraud prediction, got %d", result.Prediction)
	}
	if result.RiskScore != 50 {
		t.Fatalf("expected risk score 50, got %v", result.RiskScore)
	}
	var found bool
	for _, r := range result.Reasons {
		if r.Factor == "High Transaction Amount" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing high amount reason: %+v", result.Reasons)
	}
}

func TestAnalyzeOnlineThresholds(t *testing.T) {
	svc := newTestService(t)

	data := csvUpload(
		"tx-1,Bob Jones,5500000000000004,Mastercard,40,2024-03-01 14:00:00,USD,online,,",
	)
	ctx := context.Background()

	// Online channel alone scores 0.3, below the default threshold.
	rep, err := svc.AnalyzeCSV(ctx, data, Options{})
	if err != nil {
		t.Fatalf("AnalyzeCSV failed: %v", err)
	}
	if rep.FraudCount != 0 {
		t.Fatalf("expected no flags at default threshold, got %d", rep.FraudCount)
	}

	// A stricter request threshold flips the same upload to flagged.
	rep, err = svc.AnalyzeCSV(ctx, data, Options{Threshold: 0.25})
	if err != nil {
		t.Fatalf("AnalyzeCSV failed: %v", err)
	}
	if rep.FraudCount != 1 {
		t.Fatalf("expected 1 flag at threshold 0.25, got %d", rep.FraudCount)
	}
	if rep.Threshold != 0.25 {
		t.Fatalf("report should record the request threshold, got %v", rep.Threshold)
	}
}

func TestAnalyzeSuspiciousNote(t *testing.T) {
	svc := newTestService(t)

	data := csvUpload(
		"tx-1,Carol White,340000000000009,Amex,60,2024-03-01 14:00:00,USD,in-store,Suspicious purchase pattern,",
	)

	rep, err := svc.AnalyzeCSV(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("AnalyzeCSV failed: %v", err)
	}
	if rep.FraudCount != 1 {
		t.Fatalf("suspicious note should flag the transaction: %+v", rep)
	}
	if got := rep.TransactionResults[0].RiskScore; got != 80 {
		t.Fatalf("expected risk score 80, got %v", got)
	}
	if rep.TransactionResults[0].FraudType != "Suspicious Activity" {
		t.Fatalf("expected Suspicious Activity type, got %q", rep.TransactionResults[0].FraudType)
	}
}

func TestAnalyzeLabeledFraudOverride(t *testing.T) {
	svc := newTestService(t)

	data := csvUpload(
		"tx-1,Dan Green,4111111111111111,Visa,15,2024-03-01 14:00:00,USD,in-store,,1",
	)

	rep, err := svc.AnalyzeCSV(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("AnalyzeCSV failed: %v", err)
	}
	if rep.FraudCount != 1 {
		t.Fatalf("labeled fraud should always flag: %+v", rep)
	}
	if got := rep.TransactionResults[0].RiskScore; got != 100 {
		t.Fatalf("override should force score 100, got %v", got)
	}
}

func TestAnalyzeEmptyUpload(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.AnalyzeCSV(context.Background(), []byte(csvHeader+"\n"), Options{})
	if err != nil {
		t.Fatalf("header-only upload should be a valid empty batch: %v", err)
	}
	if rep.TotalTransactions != 0 || rep.FraudCount != 0 || rep.FraudPercentage != 0 {
		t.Fatalf("expected zeroed summary, got %+v", rep)
	}
	if len(rep.TransactionResults) != 0 {
		t.Fatalf("expected no results, got %d", len(rep.TransactionResults))
	}
}

func TestAnalyzeMalformedCSV(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AnalyzeCSV(context.Background(), []byte(""), Options{})
	if err == nil {
		t.Fatal("expected error for empty upload")
	}
	if !strings.Contains(err.Error(), "invalid CSV") {
		t.Fatalf("expected input error, got: %v", err)
	}
}

func TestAnalyzeMasksCardNumbers(t *testing.T) {
	svc := newTestService(t)

	data := csvUpload(
		"tx-1,Eve Black,4111111111111111,Visa,12000,2024-03-01 14:00:00,USD,in-store,,",
	)

	rep, err := svc.AnalyzeCSV(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("AnalyzeCSV failed: %v", err)
	}

	masked := rep.TransactionResults[0].Transaction[domain.ColCardNumber]
	if strings.Contains(masked, "41111111") {
		t.Fatalf("card number leaked into report: %q", masked)
	}
}

func TestAnalyzeReportCached(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	data := csvUpload(
		"tx-1,Frank Gray,4111111111111111,Visa,12000,2024-03-01 14:00:00,USD,in-store,,",
	)

	first, err := svc.AnalyzeCSV(ctx, data, Options{})
	if err != nil {
		t.Fatalf("first AnalyzeCSV failed: %v", err)
	}

	second, err := svc.AnalyzeCSV(ctx, data, Options{})
	if err != nil {
		t.Fatalf("second AnalyzeCSV failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("identical upload should hit the cache: %s vs %s", first.ID, second.ID)
	}

	// Different options must not share a cache entry.
	third, err := svc.AnalyzeCSV(ctx, data, Options{Threshold: 0.3})
	if err != nil {
		t.Fatalf("third AnalyzeCSV failed: %v", err)
	}
	if third.ID == first.ID {
		t.Fatal("different threshold should bypass the cached report")
	}
}

func TestAnalyzeCacheHitStillPublishesCompletion(t *testing.T) {
	svc, _, eventBus := newTestStack(t)
	ctx := context.Background()

	events := make(chan CompletedEvent, 2)
	_, err := eventBus.Subscribe(ctx, domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
		var evt CompletedEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return err
		}
		events <- evt
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	data := csvUpload(
		"tx-1,Ida Jones,4111111111111111,Visa,12000,2024-03-01 14:00:00,USD,in-store,,",
	)

	first, err := svc.AnalyzeCSV(ctx, data, Options{})
	if err != nil {
		t.Fatalf("first AnalyzeCSV failed: %v", err)
	}

	// Same bytes, so this one is served from the report cache. A queued
	// caller still needs a completion event carrying its request ID.
	if _, err := svc.AnalyzeCSV(ctx, data, Options{RequestID: "req-42"}); err != nil {
		t.Fatalf("second AnalyzeCSV failed: %v", err)
	}

	wait := func() CompletedEvent {
		select {
		case evt := <-events:
			return evt
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for completion event")
			return CompletedEvent{}
		}
	}

	wait()
	evt := wait()
	if evt.RequestID != "req-42" {
		t.Fatalf("cached completion carries request ID %q, want %q", evt.RequestID, "req-42")
	}
	if evt.ReportID != first.ID {
		t.Fatalf("cached completion references report %q, want %q", evt.ReportID, first.ID)
	}
}

func TestAnalyzeRuleReloadInvalidatesCache(t *testing.T) {
	svc, engine, _ := newTestStack(t)
	ctx := context.Background()

	data := csvUpload(
		"tx-1,Jo King,4111111111111111,Visa,40,2024-03-01 14:00:00,CAD,in-store,,",
	)

	first, err := svc.AnalyzeCSV(ctx, data, Options{})
	if err != nil {
		t.Fatalf("first AnalyzeCSV failed: %v", err)
	}
	if first.FraudCount != 0 {
		t.Fatalf("expected clean batch before reload, got %d flags", first.FraudCount)
	}

	reload := append(rules.BuiltinRules(), &domain.RuleConfig{
		ID:         "cad-watch",
		Name:       "CAD Watch",
		Version:    "1",
		Expression: `currency == "CAD"`,
		Weight:     0.6,
		Enabled:    true,
	})
	if err := engine.ReloadRules(reload); err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}

	// Identical bytes and options, but the rule set changed, so the cached
	// report must not be served.
	second, err := svc.AnalyzeCSV(ctx, data, Options{})
	if err != nil {
		t.Fatalf("second AnalyzeCSV failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("rule reload should invalidate the cached report")
	}
	if second.FraudCount != 1 {
		t.Fatalf("expected the reloaded rule to flag the transaction, got %d", second.FraudCount)
	}
}

func TestAnalyzeReportPersisted(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	data := csvUpload(
		"tx-1,Gina Hill,4111111111111111,Visa,12000,2024-03-01 14:00:00,USD,in-store,,",
	)

	rep, err := svc.AnalyzeCSV(ctx, data, Options{})
	if err != nil {
		t.Fatalf("AnalyzeCSV failed: %v", err)
	}

	stored, err := svc.GetReport(ctx, rep.ID)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if stored.FraudCount != rep.FraudCount {
		t.Fatalf("stored report differs: %+v vs %+v", stored, rep)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	records := func() []*domain.Transaction {
		recs, err := ParseCSV(strings.NewReader(string(csvUpload(
			"tx-1,Hal Ives,4111111111111111,Visa,12000,2024-03-01 14:00:00,USD,in-store,,",
			"tx-2,Hal Ives,4111111111111111,Visa,30,2024-03-01 15:00:00,USD,online,,",
		))))
		if err != nil {
			t.Fatalf("ParseCSV failed: %v", err)
		}
		return recs
	}

	first, err := svc.Analyze(ctx, records(), Options{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	second, err := svc.Analyze(ctx, records(), Options{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	for i := range first.TransactionResults {
		a, b := first.TransactionResults[i], second.TransactionResults[i]
		if a.Prediction != b.Prediction || a.RiskScore != b.RiskScore {
			t.Fatalf("result %d differs between runs: %+v vs %+v", i, a, b)
		}
	}
}

func TestParseCSVAssignsIDs(t *testing.T) {
	records, err := ParseCSV(strings.NewReader("Transaction Amount,Transaction Currency\n100,USD\n200,EUR\n"))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID == "" || records[0].ID == records[1].ID {
		t.Fatalf("records without a Transaction ID column need distinct generated IDs")
	}
}

func TestParseCSVShortRow(t *testing.T) {
	records, err := ParseCSV(strings.NewReader("Transaction ID,Transaction Amount,Transaction Currency\ntx-1,100\n"))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if records[0].Has(domain.ColCurrency) {
		t.Fatal("missing trailing column should stay absent")
	}
	if records[0].Amount() != 100 {
		t.Fatalf("amount lost on short row: %v", records[0].Amount())
	}
}
