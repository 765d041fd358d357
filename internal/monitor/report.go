package monitor

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-retail/harrier/internal/domain"
)

// Trend detection compares the chronological halves of a window. Small
// half-to-half movement within the deadband counts as stable, and fewer
// than trendMinRecords records is too little signal to call a direction.
const (
	trendMinRecords   = 10
	scoreDeadband     = 5.0  // points
	latencyDeadbandMs = 50.0 // milliseconds
)

// GenerateHourlyReport aggregates the last hour of records.
func (m *Monitor) GenerateHourlyReport() domain.MonitoringReport {
	return m.generateReport("hourly", time.Hour)
}

// GenerateDailyReport aggregates the last 24 hours of records.
func (m *Monitor) GenerateDailyReport() domain.MonitoringReport {
	return m.generateReport("daily", 24*time.Hour)
}

func (m *Monitor) generateReport(reportType string, window time.Duration) domain.MonitoringReport {
	now := time.Now().UTC()
	cutoff := now.Add(-window)

	m.mu.RLock()
	var records []domain.MonitoringRecord
	for _, r := range m.records {
		if !r.Timestamp.Before(cutoff) {
			records = append(records, r)
		}
	}
	var totalAlerts, criticalAlerts, warningAlerts int
	for _, a := range m.alerts {
		if a.Timestamp.Before(cutoff) {
			continue
		}
		totalAlerts++
		switch a.Level {
		case domain.AlertCritical:
			criticalAlerts++
		case domain.AlertWarning:
			warningAlerts++
		}
	}
	m.mu.RUnlock()

	report := domain.MonitoringReport{
		ReportType:       reportType,
		StartTime:        cutoff,
		EndTime:          now,
		TotalAlerts:      totalAlerts,
		CriticalAlerts:   criticalAlerts,
		WarningAlerts:    warningAlerts,
		ScoreTrend:       domain.TrendStable,
		PerformanceTrend: domain.TrendStable,
		Timestamp:        now,
	}
	if len(records) == 0 {
		return report
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	members := make(map[string]bool)
	times := make([]float64, 0, len(records))
	for _, r := range records {
		members[r.MemberCode] = true
		times = append(times, r.TotalTimeMs)
		report.AvgOverallScore += r.OverallScore
		report.AvgRelevanceScore += r.RelevanceScore
		report.AvgNoveltyScore += r.NoveltyScore
		report.AvgExplainabilityScore += r.ExplainabilityScore
		report.AvgDiversityScore += r.DiversityScore
		report.AvgResponseTimeMs += r.TotalTimeMs
		if r.IsDegraded {
			report.DegradationCount++
		}
	}

	n := float64(len(records))
	report.TotalRecommendations = len(records)
	report.UniqueMembers = len(members)
	report.AvgRecommendationsPerMember = n / float64(len(members))
	report.AvgOverallScore /= n
	report.AvgRelevanceScore /= n
	report.AvgNoveltyScore /= n
	report.AvgExplainabilityScore /= n
	report.AvgDiversityScore /= n
	report.AvgResponseTimeMs /= n

	sort.Float64s(times)
	report.P50ResponseTimeMs = percentile(times, 50)
	report.P95ResponseTimeMs = percentile(times, 95)
	report.P99ResponseTimeMs = percentile(times, 99)

	report.ScoreTrend = scoreTrend(records)
	report.PerformanceTrend = performanceTrend(records)
	report.ImprovementSuggestions = suggestions(report)

	return report
}

// scoreTrend splits the chronological record list in half and compares
// average overall scores. Higher is better.
func scoreTrend(records []domain.MonitoringRecord) domain.Trend {
	if len(records) < trendMinRecords {
		return domain.TrendStable
	}

	mid := len(records) / 2
	var first, second float64
	for _, r := range records[:mid] {
		first += r.OverallScore
	}
	for _, r := range records[mid:] {
		second += r.OverallScore
	}
	first /= float64(mid)
	second /= float64(len(records) - mid)

	delta := second - first
	switch {
	case delta > scoreDeadband:
		return domain.TrendImproving
	case delta < -scoreDeadband:
		return domain.TrendDeclining
	}
	return domain.TrendStable
}

// performanceTrend is the same half-split over total times. Lower is
// better.
func performanceTrend(records []domain.MonitoringRecord) domain.Trend {
	if len(records) < trendMinRecords {
		return domain.TrendStable
	}

	mid := len(records) / 2
	var first, second float64
	for _, r := range records[:mid] {
		first += r.TotalTimeMs
	}
	for _, r := range records[mid:] {
		second += r.TotalTimeMs
	}
	first /= float64(mid)
	second /= float64(len(records) - mid)

	delta := second - first
	switch {
	case delta < -latencyDeadbandMs:
		return domain.TrendImproving
	case delta > latencyDeadbandMs:
		return domain.TrendDeclining
	}
	return domain.TrendStable
}

// suggestions emits one entry per quality dimension averaging below its
// target, overall score included, plus one for any critical alerts and
// one for any degraded responses in the window.
func suggestions(report domain.MonitoringReport) []string {
	var out []string

	if report.AvgOverallScore < qualityThresholds["overall_score"].Target {
		out = append(out, "overall score below target: review the dimension scores and candidate sourcing mix")
	}
	if report.AvgRelevanceScore < qualityThresholds["relevance_score"].Target {
		out = append(out, "relevance below target: refresh member features and retrain the ranking model")
	}
	if report.AvgNoveltyScore < qualityThresholds["novelty_score"].Target {
		out = append(out, "novelty below target: raise the weight of unseen categories in candidate sourcing")
	}
	if report.AvgExplainabilityScore < qualityThresholds["explainability_score"].Target {
		out = append(out, "explainability below target: expand the reason templates and reduce duplicates")
	}
	if report.AvgDiversityScore < qualityThresholds["diversity_score"].Target {
		out = append(out, "diversity below target: widen the category and price spread of candidates")
	}
	if report.P95ResponseTimeMs > totalTimeP95Ms {
		out = append(out, "p95 latency above target: profile feature loading and model inference stages")
	}
	if report.CriticalAlerts > 0 {
		out = append(out, "critical alerts in window: investigate the breached metrics and their thresholds")
	}
	if report.DegradationCount > 0 {
		out = append(out, "degraded responses served: inspect upstream model availability and quality thresholds")
	}

	return out
}

// percentile indexes a sorted slice at floor(p/100*n), clamped.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(p / 100 * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
