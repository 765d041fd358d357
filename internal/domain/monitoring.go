package domain

import (
	"time"
)

// AlertLevel is the severity of a monitoring alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// MonitoringRecord is the denormalized snapshot of one request's quality
// and performance. Records are immutable once appended.
type MonitoringRecord struct {
	RequestID  string    `json:"requestId"`
	MemberCode string    `json:"memberCode"`
	Timestamp  time.Time `json:"timestamp"`

	// Quality
	OverallScore        float64 `json:"overallScore"`
	RelevanceScore      float64 `json:"relevanceScore"`
	NoveltyScore        float64 `json:"noveltyScore"`
	ExplainabilityScore float64 `json:"explainabilityScore"`
	DiversityScore      float64 `json:"diversityScore"`

	// Performance
	TotalTimeMs         float64 `json:"totalTimeMs"`
	FeatureLoadingMs    float64 `json:"featureLoadingMs"`
	ModelInferenceMs    float64 `json:"modelInferenceMs"`
	ReasonGenerationMs  float64 `json:"reasonGenerationMs"`
	QualityEvaluationMs float64 `json:"qualityEvaluationMs"`

	// Metadata
	RecommendationCount int      `json:"recommendationCount"`
	StrategyUsed        Strategy `json:"strategyUsed"`
	IsDegraded          bool     `json:"isDegraded"`
}

// Alert is emitted when a quality or performance metric breaches a
// threshold. Alerts are immutable.
type Alert struct {
	Level          AlertLevel `json:"level"`
	MetricName     string     `json:"metricName"`
	CurrentValue   float64    `json:"currentValue"`
	ThresholdValue float64    `json:"thresholdValue"`
	Message        string     `json:"message"`
	Timestamp      time.Time  `json:"timestamp"`
}

// QualityCheckResult is the outcome of checking a score against the
// quality threshold table.
type QualityCheckResult struct {
	Passed        bool      `json:"passed"`
	OverallScore  float64   `json:"overallScore"`
	FailedMetrics []string  `json:"failedMetrics"`
	Warnings      []string  `json:"warnings"`
	Timestamp     time.Time `json:"timestamp"`
}

// PerformanceCheckResult is the outcome of checking request timings
// against the performance threshold table.
type PerformanceCheckResult struct {
	Passed        bool      `json:"passed"`
	TotalTimeMs   float64   `json:"totalTimeMs"`
	FailedMetrics []string  `json:"failedMetrics"`
	Warnings      []string  `json:"warnings"`
	Timestamp     time.Time `json:"timestamp"`
}

// Trend labels the direction of a metric between the two halves of a
// report window.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// MonitoringReport is an on-demand aggregate over a fixed time window.
type MonitoringReport struct {
	ReportType string    `json:"reportType"` // "hourly" or "daily"
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`

	// Volume
	TotalRecommendations        int     `json:"totalRecommendations"`
	UniqueMembers               int     `json:"uniqueMembers"`
	AvgRecommendationsPerMember float64 `json:"avgRecommendationsPerMember"`

	// Quality averages
	AvgOverallScore        float64 `json:"avgOverallScore"`
	AvgRelevanceScore      float64 `json:"avgRelevanceScore"`
	AvgNoveltyScore        float64 `json:"avgNoveltyScore"`
	AvgExplainabilityScore float64 `json:"avgExplainabilityScore"`
	AvgDiversityScore      float64 `json:"avgDiversityScore"`

	// Performance
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	P50ResponseTimeMs float64 `json:"p50ResponseTimeMs"`
	P95ResponseTimeMs float64 `json:"p95ResponseTimeMs"`
	P99ResponseTimeMs float64 `json:"p99ResponseTimeMs"`

	// Incidents
	TotalAlerts      int `json:"totalAlerts"`
	CriticalAlerts   int `json:"criticalAlerts"`
	WarningAlerts    int `json:"warningAlerts"`
	DegradationCount int `json:"degradationCount"`

	ScoreTrend       Trend `json:"scoreTrend"`
	PerformanceTrend Trend `json:"performanceTrend"`

	ImprovementSuggestions []string `json:"improvementSuggestions"`

	Timestamp time.Time `json:"timestamp"`
}
