// Package monitor accumulates per-request quality and performance
// records and evaluates them against the alerting thresholds.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-retail/harrier/internal/domain"
)

// qualityThreshold is one row of the quality threshold table. A metric
// below Critical fails the check; below Warning it only warns; Target
// is the aspirational level reports measure suggestions against.
type qualityThreshold struct {
	Critical float64
	Warning  float64
	Target   float64
}

var qualityThresholds = map[string]qualityThreshold{
	"overall_score":        {Critical: 40, Warning: 50, Target: 60},
	"relevance_score":      {Critical: 50, Warning: 60, Target: 70},
	"novelty_score":        {Critical: 15, Warning: 20, Target: 30},
	"explainability_score": {Critical: 60, Warning: 70, Target: 80},
	"diversity_score":      {Critical: 40, Warning: 50, Target: 60},
}

// Performance thresholds in milliseconds. Total time breaching the p99
// bound fails the check; the p95 bound only warns. Stage bounds are
// warn-only.
const (
	totalTimeP50Ms = 200
	totalTimeP95Ms = 500
	totalTimeP99Ms = 1000

	featureLoadingMaxMs = 100
	modelInferenceMaxMs = 200
)

// Monitor holds the in-memory record and alert history. All methods are
// safe for concurrent use and never fail; an unobservable request is
// worse than an unbounded slice.
type Monitor struct {
	mu      sync.RWMutex
	records []domain.MonitoringRecord
	alerts  []domain.Alert
}

// New creates an empty monitor.
func New() *Monitor {
	return &Monitor{}
}

// RecordRecommendation appends one request snapshot to the history.
// A zero timestamp is stamped with the current time.
func (m *Monitor) RecordRecommendation(record domain.MonitoringRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	m.records = append(m.records, record)
	m.mu.Unlock()
}

// CheckQualityThreshold evaluates one record's dimension scores against
// the quality threshold table.
func (m *Monitor) CheckQualityThreshold(record domain.MonitoringRecord) domain.QualityCheckResult {
	result := domain.QualityCheckResult{
		Passed:       true,
		OverallScore: record.OverallScore,
		Timestamp:    time.Now().UTC(),
	}

	for name, value := range map[string]float64{
		"overall_score":        record.OverallScore,
		"relevance_score":      record.RelevanceScore,
		"novelty_score":        record.NoveltyScore,
		"explainability_score": record.ExplainabilityScore,
		"diversity_score":      record.DiversityScore,
	} {
		threshold := qualityThresholds[name]
		switch {
		case value < threshold.Critical:
			result.Passed = false
			result.FailedMetrics = append(result.FailedMetrics, name)
		case value < threshold.Warning:
			result.Warnings = append(result.Warnings, name)
		}
	}

	return result
}

// CheckPerformanceThreshold evaluates one record's timings. Only the
// total time can fail the check; stage breaches are warnings.
func (m *Monitor) CheckPerformanceThreshold(record domain.MonitoringRecord) domain.PerformanceCheckResult {
	result := domain.PerformanceCheckResult{
		Passed:      true,
		TotalTimeMs: record.TotalTimeMs,
		Timestamp:   time.Now().UTC(),
	}

	switch {
	case record.TotalTimeMs > totalTimeP99Ms:
		result.Passed = false
		result.FailedMetrics = append(result.FailedMetrics, "total_time")
	case record.TotalTimeMs > totalTimeP95Ms:
		result.Warnings = append(result.Warnings, "total_time")
	}

	if record.FeatureLoadingMs > featureLoadingMaxMs {
		result.Warnings = append(result.Warnings, domain.StageFeatureLoading)
	}
	if record.ModelInferenceMs > modelInferenceMaxMs {
		result.Warnings = append(result.Warnings, domain.StageModelInference)
	}

	return result
}

// TriggerAlerts runs both checks on a record, stores any resulting
// alerts and returns them.
func (m *Monitor) TriggerAlerts(record domain.MonitoringRecord) []domain.Alert {
	now := time.Now().UTC()
	var alerts []domain.Alert

	quality := m.CheckQualityThreshold(record)
	for _, name := range quality.FailedMetrics {
		threshold := qualityThresholds[name]
		alerts = append(alerts, domain.Alert{
			Level:          domain.AlertCritical,
			MetricName:     name,
			CurrentValue:   qualityMetricValue(record, name),
			ThresholdValue: threshold.Critical,
			Message:        fmt.Sprintf("%s %.1f below critical threshold %.1f", name, qualityMetricValue(record, name), threshold.Critical),
			Timestamp:      now,
		})
	}
	for _, name := range quality.Warnings {
		threshold := qualityThresholds[name]
		alerts = append(alerts, domain.Alert{
			Level:          domain.AlertWarning,
			MetricName:     name,
			CurrentValue:   qualityMetricValue(record, name),
			ThresholdValue: threshold.Warning,
			Message:        fmt.Sprintf("%s %.1f below warning threshold %.1f", name, qualityMetricValue(record, name), threshold.Warning),
			Timestamp:      now,
		})
	}

	perf := m.CheckPerformanceThreshold(record)
	for _, name := range perf.FailedMetrics {
		alerts = append(alerts, domain.Alert{
			Level:          domain.AlertCritical,
			MetricName:     name,
			CurrentValue:   record.TotalTimeMs,
			ThresholdValue: totalTimeP99Ms,
			Message:        fmt.Sprintf("total time %.1fms above threshold %dms", record.TotalTimeMs, totalTimeP99Ms),
			Timestamp:      now,
		})
	}
	for _, name := range perf.Warnings {
		current, bound := perfMetricValue(record, name)
		alerts = append(alerts, domain.Alert{
			Level:          domain.AlertWarning,
			MetricName:     name,
			CurrentValue:   current,
			ThresholdValue: bound,
			Message:        fmt.Sprintf("%s %.1fms above threshold %.0fms", name, current, bound),
			Timestamp:      now,
		})
	}

	if len(alerts) > 0 {
		m.mu.Lock()
		m.alerts = append(m.alerts, alerts...)
		m.mu.Unlock()

		for _, alert := range alerts {
			slog.Warn("monitoring alert",
				"level", alert.Level,
				"metric", alert.MetricName,
				"current", alert.CurrentValue,
				"threshold", alert.ThresholdValue,
			)
		}
	}

	return alerts
}

func qualityMetricValue(record domain.MonitoringRecord, name string) float64 {
	switch name {
	case "overall_score":
		return record.OverallScore
	case "relevance_score":
		return record.RelevanceScore
	case "novelty_score":
		return record.NoveltyScore
	case "explainability_score":
		return record.ExplainabilityScore
	case "diversity_score":
		return record.DiversityScore
	}
	return 0
}

func perfMetricValue(record domain.MonitoringRecord, name string) (current, bound float64) {
	switch name {
	case "total_time":
		return record.TotalTimeMs, totalTimeP95Ms
	case domain.StageFeatureLoading:
		return record.FeatureLoadingMs, featureLoadingMaxMs
	case domain.StageModelInference:
		return record.ModelInferenceMs, modelInferenceMaxMs
	}
	return 0, 0
}

// GetRecords returns stored records, newest last. A positive window
// restricts to the last window of wall-clock time; a non-empty
// memberCode keeps only that member's records; a positive limit keeps
// only the newest matches.
func (m *Monitor) GetRecords(window time.Duration, memberCode string, limit int) []domain.MonitoringRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().UTC().Add(-window)
	}

	out := make([]domain.MonitoringRecord, 0, len(m.records))
	for _, r := range m.records {
		if window > 0 && r.Timestamp.Before(cutoff) {
			continue
		}
		if memberCode != "" && r.MemberCode != memberCode {
			continue
		}
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// GetAlerts returns stored alerts, newest last. A positive window
// restricts to the last window of wall-clock time; a non-empty level
// keeps only alerts at that level; a positive limit keeps only the
// newest matches.
func (m *Monitor) GetAlerts(window time.Duration, level domain.AlertLevel, limit int) []domain.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().UTC().Add(-window)
	}

	out := make([]domain.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if window > 0 && a.Timestamp.Before(cutoff) {
			continue
		}
		if level != "" && a.Level != level {
			continue
		}
		out = append(out, a)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// RecordCount reports the stored record count.
func (m *Monitor) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// AlertCount reports the stored alert count.
func (m *Monitor) AlertCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}

// ClearHistory drops all records and alerts.
func (m *Monitor) ClearHistory() {
	m.mu.Lock()
	m.records = nil
	m.alerts = nil
	m.mu.Unlock()
}
