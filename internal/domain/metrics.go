package domain

import (
	"time"
)

// Stage names tracked by the performance tracker. Handlers may track
// additional ad-hoc stages; these are the ones the pipeline emits and
// the monitor checks thresholds for.
const (
	StageFeatureLoading    = "feature_loading"
	StageModelInference    = "model_inference"
	StageMerging           = "recommendation_merging"
	StageReasonGeneration  = "reason_generation"
	StageQualityEvaluation = "quality_evaluation"
)

// PerformanceMetrics is the timing ledger of one finished request.
// Stage durations are deltas between consecutive checkpoints, so they
// sum to within measurement overhead of TotalTimeMs.
type PerformanceMetrics struct {
	RequestID   string             `json:"requestId"`
	TotalTimeMs float64            `json:"totalTimeMs"`
	StageTimes  map[string]float64 `json:"stageTimes"`
	IsSlowQuery bool               `json:"isSlowQuery"`
	Timestamp   time.Time          `json:"timestamp"`
}

// PerformanceStats aggregates completed requests over a time window.
// Percentiles satisfy P50 <= P95 <= P99 for any non-empty window.
type PerformanceStats struct {
	TimeWindow     time.Duration      `json:"timeWindowNs"`
	TotalRequests  int                `json:"totalRequests"`
	AvgTimeMs      float64            `json:"avgTimeMs"`
	P50TimeMs      float64            `json:"p50TimeMs"`
	P95TimeMs      float64            `json:"p95TimeMs"`
	P99TimeMs      float64            `json:"p99TimeMs"`
	SlowQueryCount int                `json:"slowQueryCount"`
	SlowQueryRate  float64            `json:"slowQueryRate"`
	StageAvgTimes  map[string]float64 `json:"stageAvgTimes"`
	Timestamp      time.Time          `json:"timestamp"`
}
