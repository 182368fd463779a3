// Package worker provides async analysis processing off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/fraudshield/fraudshield/internal/analysis"
	"github.com/fraudshield/fraudshield/internal/domain"
)

// Worker consumes queued analysis requests from the EventBus and runs them
// through the scoring pipeline.
type Worker struct {
	bus domain.EventBus
	svc *analysis.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, svc *analysis.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		svc:    svc,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes the worker to the analysis request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicAnalysisRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("analysis worker started", "topic", domain.TopicAnalysisRequested)
	return nil
}

// handleMessage runs one queued analysis request. In-flight requests are
// tracked so Stop can wait for them to drain.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	start := time.Now()

	var req analysis.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse analysis request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing queued analysis",
		"request_id", req.RequestID,
		"bytes", len(req.CSV),
	)

	report, err := w.svc.AnalyzeCSV(ctx, req.CSV, analysis.Options{
		Threshold:         req.Threshold,
		IncludePrevention: req.IncludePrevention,
		RequestID:         req.RequestID,
	})
	if err != nil {
		slog.Error("queued analysis failed",
			"request_id", req.RequestID,
			"error", err,
		)
		return err
	}

	slog.Info("queued analysis completed",
		"request_id", req.RequestID,
		"report_id", report.ID,
		"transactions", report.TotalTransactions,
		"flagged", report.FraudCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("analysis worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
