package analysis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/features"
	"github.com/fraudshield/fraudshield/internal/report"
)

// Options controls one analysis run.
type Options struct {
	// Threshold is the decision threshold for this run. Zero means use
	// the service default.
	Threshold float64

	// IncludePrevention appends the prevention-method section.
	IncludePrevention bool

	// RequestID is the caller's correlation ID for queued analyses. It is
	// echoed on the completion event so async callers can match the event
	// to their upload. Not part of the report cache key.
	RequestID string
}

// Request is the queued form of an analysis, published on the event bus
// when the caller asks for asynchronous processing.
type Request struct {
	RequestID         string  `json:"requestId"`
	CSV               []byte  `json:"csv"`
	Threshold         float64 `json:"threshold"`
	IncludePrevention bool    `json:"includePrevention"`
}

// CompletedEvent announces a finished analysis.
type CompletedEvent struct {
	ReportID          string  `json:"reportId"`
	RequestID         string  `json:"requestId,omitempty"`
	TotalTransactions int     `json:"totalTransactions"`
	FraudCount        int     `json:"fraudCount"`
	FraudPercentage   float64 `json:"fraudPercentage"`
}

// AlertEvent announces one flagged transaction.
type AlertEvent struct {
	ReportID      string  `json:"reportId"`
	TransactionID string  `json:"transactionId"`
	RiskScore     float64 `json:"riskScore"`
	FraudType     string  `json:"fraudType"`
}

// Service runs the scoring pipeline. The classifier is injected once at
// construction and never swapped afterwards.
type Service struct {
	classifier domain.Classifier
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	logger     *slog.Logger

	defaultThreshold float64
	reportTTL        time.Duration
}

// NewService wires the pipeline stages together.
func NewService(
	classifier domain.Classifier,
	repo domain.Repository,
	cache domain.Cache,
	bus domain.EventBus,
	scoring domain.ScoringConfig,
	reportTTL time.Duration,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := scoring.DefaultThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	if reportTTL <= 0 {
		reportTTL = 15 * time.Minute
	}
	return &Service{
		classifier:       classifier,
		repo:             repo,
		cache:            cache,
		bus:              bus,
		logger:           logger,
		defaultThreshold: threshold,
		reportTTL:        reportTTL,
	}
}

// ClassifierName reports which scoring backend the service was built with.
func (s *Service) ClassifierName() string {
	return s.classifier.Name()
}

// DefaultThreshold reports the decision threshold used when a request does
// not carry its own.
func (s *Service) DefaultThreshold() float64 {
	return s.defaultThreshold
}

// AnalyzeCSV scores a raw CSV upload. Identical uploads with identical
// options are served from the report cache.
func (s *Service) AnalyzeCSV(ctx context.Context, data []byte, opts Options) (*domain.Report, error) {
	digest := s.digest(data, opts)

	if cached, err := s.cache.GetReport(ctx, digest); err != nil {
		s.logger.Warn("report cache lookup failed", "error", err)
	} else if cached != nil {
		s.logger.Info("report served from cache", "report_id", cached.ID, "digest", digest)
		// Async callers still need a completion to correlate against.
		s.publishCompleted(ctx, cached, opts.RequestID)
		return cached, nil
	}

	records, err := ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	rep, err := s.Analyze(ctx, records, opts)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetReport(ctx, digest, rep, s.reportTTL); err != nil {
		s.logger.Warn("report cache write failed", "error", err)
	}

	return rep, nil
}

// Analyze scores a batch of already-parsed transactions and assembles the
// report. Output order always matches input order.
func (s *Service) Analyze(ctx context.Context, records []*domain.Transaction, opts Options) (*domain.Report, error) {
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = s.defaultThreshold
	}

	started := time.Now()
	vectors := features.ExtractBatch(records)

	batch := make([]domain.ScoreInput, len(records))
	for i := range records {
		batch[i] = domain.ScoreInput{Record: records[i], Features: vectors[i]}
	}

	results, err := s.classifier.Score(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("classifier %s: %w", s.classifier.Name(), err)
	}
	if len(results) != len(records) {
		return nil, fmt.Errorf("classifier %s returned %d results for %d records",
			s.classifier.Name(), len(results), len(records))
	}

	// The request threshold governs the hard label for every backend.
	for i := range results {
		results[i] = results[i].Relabel(threshold)
	}

	rep := report.Build(records, results, report.Options{
		Threshold:         threshold,
		IncludePrevention: opts.IncludePrevention,
		ClassifierName:    s.classifier.Name(),
	})

	if err := s.repo.SaveReport(ctx, rep); err != nil {
		s.logger.Warn("report persistence failed", "report_id", rep.ID, "error", err)
	}

	s.publishEvents(ctx, rep, records, results, opts.RequestID)

	s.logger.Info("analysis complete",
		"report_id", rep.ID,
		"transactions", rep.TotalTransactions,
		"flagged", rep.FraudCount,
		"threshold", threshold,
		"classifier", s.classifier.Name(),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return rep, nil
}

// GetReport loads a stored report by ID.
func (s *Service) GetReport(ctx context.Context, reportID string) (*domain.Report, error) {
	return s.repo.GetReport(ctx, reportID)
}

func (s *Service) publishEvents(ctx context.Context, rep *domain.Report, records []*domain.Transaction, results []domain.ScoringResult, requestID string) {
	for i, res := range results {
		if res.Label != domain.LabelFraud {
			continue
		}
		alert := AlertEvent{
			ReportID:      rep.ID,
			TransactionID: records[i].ID,
			RiskScore:     res.Probability * 100,
			FraudType:     rep.TransactionResults[i].FraudType,
		}
		payload, _ := json.Marshal(alert)
		if err := s.bus.Publish(ctx, domain.TopicFraudAlert, payload); err != nil {
			s.logger.Warn("alert publish failed", "transaction_id", records[i].ID, "error", err)
		}
	}

	s.publishCompleted(ctx, rep, requestID)
}

func (s *Service) publishCompleted(ctx context.Context, rep *domain.Report, requestID string) {
	completed := CompletedEvent{
		ReportID:          rep.ID,
		RequestID:         requestID,
		TotalTransactions: rep.TotalTransactions,
		FraudCount:        rep.FraudCount,
		FraudPercentage:   rep.FraudPercentage,
	}
	payload, _ := json.Marshal(completed)
	if err := s.bus.Publish(ctx, domain.TopicAnalysisCompleted, payload); err != nil {
		s.logger.Warn("completion publish failed", "report_id", rep.ID, "error", err)
	}
}

// digest keys the report cache on the exact upload bytes, the options that
// shape the output, and the classifier fingerprint. Including the
// fingerprint means a rule reload invalidates every report cached under the
// previous rule set.
func (s *Service) digest(data []byte, opts Options) string {
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|t=%.4f|p=%t|c=%s", opts.Threshold, opts.IncludePrevention, s.classifier.Fingerprint())
	return fmt.Sprintf("%x", h.Sum(nil))
}
