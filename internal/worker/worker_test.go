package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-retail/harrier/internal/bus"
	"github.com/opensource-retail/harrier/internal/domain"
	"github.com/opensource-retail/harrier/internal/monitor"
)

func healthyEvent(requestID string) domain.RecommendationCompleted {
	return domain.RecommendationCompleted{
		RequestID:  requestID,
		MemberCode: "CU000001",
		Score: &domain.ReferenceValueScore{
			OverallScore:        72,
			RelevanceScore:      75,
			NoveltyScore:        60,
			ExplainabilityScore: 85,
			DiversityScore:      65,
		},
		Metrics: &domain.PerformanceMetrics{
			RequestID:   requestID,
			TotalTimeMs: 150,
			StageTimes: map[string]float64{
				domain.StageFeatureLoading:    40,
				domain.StageModelInference:    80,
				domain.StageReasonGeneration:  15,
				domain.StageQualityEvaluation: 10,
			},
		},
		RecommendationCount: 5,
		StrategyUsed:        domain.StrategyHybrid,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, monitor.New())

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicRecommendationCompleted {
			t.Errorf("unexpected topic %s", stats.Topics[0])
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
		if got := w.GetStats().SubscriptionCount; got != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", got)
		}
	})

	t.Run("RecordsCompletionEvent", func(t *testing.T) {
		mon := monitor.New()
		w := NewWorker(eventBus, mon)
		w.Start()
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(healthyEvent("req-001"))
		if err := eventBus.Publish(context.Background(), domain.TopicRecommendationCompleted, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		waitFor(t, time.Second, func() bool { return mon.RecordCount() == 1 })

		records := mon.GetRecords(0, "", 1)
		rec := records[0]
		if rec.RequestID != "req-001" {
			t.Errorf("expected request req-001, got %s", rec.RequestID)
		}
		if rec.OverallScore != 72 {
			t.Errorf("expected overall score 72, got %f", rec.OverallScore)
		}
		if rec.FeatureLoadingMs != 40 || rec.ModelInferenceMs != 80 {
			t.Errorf("stage times not mapped: feature=%f inference=%f", rec.FeatureLoadingMs, rec.ModelInferenceMs)
		}
		if mon.AlertCount() != 0 {
			t.Errorf("healthy event should not alert, got %d alerts", mon.AlertCount())
		}
	})

	t.Run("AlertPublishedForPoorQuality", func(t *testing.T) {
		mon := monitor.New()
		w := NewWorker(eventBus, mon)
		w.Start()
		defer w.Stop()

		var alertCount atomic.Int32
		var lastAlert atomic.Value

		eventBus.Subscribe(context.Background(), domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			var alert domain.Alert
			if err := json.Unmarshal(msg.Payload, &alert); err != nil {
				return err
			}
			lastAlert.Store(alert)
			alertCount.Add(1)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		event := healthyEvent("req-poor")
		event.Score.OverallScore = 25
		payload, _ := json.Marshal(event)
		eventBus.Publish(context.Background(), domain.TopicRecommendationCompleted, payload)

		waitFor(t, time.Second, func() bool { return alertCount.Load() >= 1 })

		alert := lastAlert.Load().(domain.Alert)
		if alert.Level != domain.AlertCritical {
			t.Errorf("expected critical alert, got %s", alert.Level)
		}
		if alert.MetricName != "overall_score" {
			t.Errorf("expected overall_score alert, got %s", alert.MetricName)
		}
	})

	t.Run("MalformedPayloadIgnored", func(t *testing.T) {
		mon := monitor.New()
		w := NewWorker(eventBus, mon)
		w.Start()
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		eventBus.Publish(context.Background(), domain.TopicRecommendationCompleted, []byte("not json"))
		payload, _ := json.Marshal(healthyEvent("req-after-bad"))
		eventBus.Publish(context.Background(), domain.TopicRecommendationCompleted, payload)

		waitFor(t, time.Second, func() bool { return mon.RecordCount() == 1 })

		if got := mon.GetRecords(0, "", 1)[0].RequestID; got != "req-after-bad" {
			t.Errorf("expected req-after-bad, got %s", got)
		}
	})
}

func TestBuildRecord(t *testing.T) {
	t.Run("NilSections", func(t *testing.T) {
		event := domain.RecommendationCompleted{
			RequestID:    "req-nil",
			MemberCode:   "CU000002",
			StrategyUsed: domain.StrategyDegraded,
			IsDegraded:   true,
		}
		rec := buildRecord(&event)

		if rec.RequestID != "req-nil" || !rec.IsDegraded {
			t.Errorf("metadata not carried: %+v", rec)
		}
		if rec.OverallScore != 0 || rec.TotalTimeMs != 0 {
			t.Errorf("expected zero scores and timings, got %+v", rec)
		}
		if rec.Timestamp.IsZero() {
			t.Error("expected a timestamp")
		}
	})

	t.Run("FullEvent", func(t *testing.T) {
		event := healthyEvent("req-full")
		rec := buildRecord(&event)

		if rec.DiversityScore != 65 {
			t.Errorf("expected diversity 65, got %f", rec.DiversityScore)
		}
		if rec.ReasonGenerationMs != 15 || rec.QualityEvaluationMs != 10 {
			t.Errorf("stage times not mapped: %+v", rec)
		}
		if rec.RecommendationCount != 5 || rec.StrategyUsed != domain.StrategyHybrid {
			t.Errorf("metadata not carried: %+v", rec)
		}
	})
}
