// Package worker consumes completed-recommendation events and feeds the
// quality monitor off the serving path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-retail/harrier/internal/domain"
	"github.com/opensource-retail/harrier/internal/monitor"
)

// Worker subscribes to the completion topic, records each event with the
// monitor, and republishes any triggered alerts on the alert topic.
type Worker struct {
	bus     domain.EventBus
	monitor *monitor.Monitor

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a monitoring worker.
func NewWorker(bus domain.EventBus, mon *monitor.Monitor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		monitor: mon,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the completion topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicRecommendationCompleted, w.handleCompleted)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("monitoring worker started",
		"topic", domain.TopicRecommendationCompleted,
	)
	return nil
}

// handleCompleted records one completed recommendation with the monitor.
func (w *Worker) handleCompleted(ctx context.Context, msg *domain.Message) error {
	var event domain.RecommendationCompleted
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse completion event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	record := buildRecord(&event)
	w.monitor.RecordRecommendation(record)

	alerts := w.monitor.TriggerAlerts(record)
	for _, alert := range alerts {
		payload, err := json.Marshal(alert)
		if err != nil {
			continue
		}
		if err := w.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"request_id", event.RequestID,
				"metric", alert.MetricName,
				"error", err,
			)
		}
	}

	slog.Debug("completion event recorded",
		"request_id", event.RequestID,
		"member_code", event.MemberCode,
		"alerts", len(alerts),
	)
	return nil
}

// buildRecord flattens the event into a monitoring record. Missing score
// or metrics sections leave their fields zero.
func buildRecord(event *domain.RecommendationCompleted) domain.MonitoringRecord {
	record := domain.MonitoringRecord{
		RequestID:           event.RequestID,
		MemberCode:          event.MemberCode,
		Timestamp:           time.Now().UTC(),
		RecommendationCount: event.RecommendationCount,
		StrategyUsed:        event.StrategyUsed,
		IsDegraded:          event.IsDegraded,
	}

	if event.Score != nil {
		record.OverallScore = event.Score.OverallScore
		record.RelevanceScore = event.Score.RelevanceScore
		record.NoveltyScore = event.Score.NoveltyScore
		record.ExplainabilityScore = event.Score.ExplainabilityScore
		record.DiversityScore = event.Score.DiversityScore
	}

	if event.Metrics != nil {
		record.TotalTimeMs = event.Metrics.TotalTimeMs
		record.FeatureLoadingMs = event.Metrics.StageTimes[domain.StageFeatureLoading]
		record.ModelInferenceMs = event.Metrics.StageTimes[domain.StageModelInference]
		record.ReasonGenerationMs = event.Metrics.StageTimes[domain.StageReasonGeneration]
		record.QualityEvaluationMs = event.Metrics.StageTimes[domain.StageQualityEvaluation]
	}

	return record
}

// Stop unsubscribes from all topics.
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

	slog.Info("monitoring worker stopped")
	return nil
}

// Stats reports the worker's active subscriptions.
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
