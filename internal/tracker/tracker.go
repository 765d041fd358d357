// Package tracker provides per-request stage timing and rolling
// latency statistics for the recommendation pipeline.
package tracker

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/opensource-retail/harrier/internal/domain"
)

// Protocol violations. These indicate a bug in the caller's sequencing,
// not a runtime condition to recover from.
var (
	ErrAlreadyTracking = errors.New("request already tracking")
	ErrNotTracking     = errors.New("request not tracking")
)

// DefaultSlowQueryThresholdMs flags requests slower than one second.
const DefaultSlowQueryThresholdMs = 1000

// Tracker records wall-clock checkpoints per request and keeps a
// history of completed requests for percentile statistics.
type Tracker struct {
	mu                   sync.Mutex
	slowQueryThresholdMs float64
	inflight             map[string]*tracking
	history              []*domain.PerformanceMetrics
}

type tracking struct {
	start  time.Time
	stages []stageMark
}

type stageMark struct {
	name string
	at   time.Time
}

// New creates a tracker with the given slow-query threshold in
// milliseconds. A non-positive threshold falls back to the default.
func New(slowQueryThresholdMs float64) *Tracker {
	if slowQueryThresholdMs <= 0 {
		slowQueryThresholdMs = DefaultSlowQueryThresholdMs
	}
	return &Tracker{
		slowQueryThresholdMs: slowQueryThresholdMs,
		inflight:             make(map[string]*tracking),
	}
}

// StartTracking begins timing a request.
func (t *Tracker) StartTracking(requestID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.inflight[requestID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyTracking, requestID)
	}

	t.inflight[requestID] = &tracking{start: time.Now()}
	return nil
}

// TrackStage records a checkpoint under the given stage name. The
// stage's duration is the delta from the previous checkpoint, or from
// the start for the first stage.
func (t *Tracker) TrackStage(requestID, stage string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.inflight[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracking, requestID)
	}

	tr.stages = append(tr.stages, stageMark{name: stage, at: time.Now()})
	return nil
}

// EndTracking finalizes a request, appends its metrics to the history,
// and releases the in-flight entry.
func (t *Tracker) EndTracking(requestID string) (*domain.PerformanceMetrics, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.inflight[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTracking, requestID)
	}

	now := time.Now()
	totalMs := float64(now.Sub(tr.start)) / float64(time.Millisecond)

	stageTimes := make(map[string]float64, len(tr.stages))
	prev := tr.start
	for _, mark := range tr.stages {
		stageTimes[mark.name] = float64(mark.at.Sub(prev)) / float64(time.Millisecond)
		prev = mark.at
	}

	metrics := &domain.PerformanceMetrics{
		RequestID:   requestID,
		TotalTimeMs: totalMs,
		StageTimes:  stageTimes,
		IsSlowQuery: totalMs > t.slowQueryThresholdMs,
		Timestamp:   now,
	}

	t.history = append(t.history, metrics)
	delete(t.inflight, requestID)

	return metrics, nil
}

// GetStatistics aggregates the completed-request history. A positive
// window restricts the history to the last window of wall-clock time;
// a non-positive window includes everything and is reported back as a
// zero TimeWindow. An empty filtered set yields all-zero statistics.
func (t *Tracker) GetStatistics(window time.Duration) *domain.PerformanceStats {
	t.mu.Lock()
	snapshot := make([]*domain.PerformanceMetrics, len(t.history))
	copy(snapshot, t.history)
	t.mu.Unlock()

	now := time.Now()
	reportWindow := window
	if reportWindow < 0 {
		reportWindow = 0
	}

	var filtered []*domain.PerformanceMetrics
	if window > 0 {
		cutoff := now.Add(-window)
		for _, m := range snapshot {
			if !m.Timestamp.Before(cutoff) {
				filtered = append(filtered, m)
			}
		}
	} else {
		filtered = snapshot
	}

	stats := &domain.PerformanceStats{
		TimeWindow:    reportWindow,
		StageAvgTimes: map[string]float64{},
		Timestamp:     now,
	}
	if len(filtered) == 0 {
		return stats
	}

	totals := make([]float64, 0, len(filtered))
	slowCount := 0
	stageSums := map[string]float64{}
	stageCounts := map[string]int{}

	var sum float64
	for _, m := range filtered {
		totals = append(totals, m.TotalTimeMs)
		sum += m.TotalTimeMs
		if m.IsSlowQuery {
			slowCount++
		}
		for stage, d := range m.StageTimes {
			stageSums[stage] += d
			stageCounts[stage]++
		}
	}
	sort.Float64s(totals)

	stats.TotalRequests = len(filtered)
	stats.AvgTimeMs = sum / float64(len(filtered))
	stats.P50TimeMs = percentile(totals, 50)
	stats.P95TimeMs = percentile(totals, 95)
	stats.P99TimeMs = percentile(totals, 99)
	stats.SlowQueryCount = slowCount
	stats.SlowQueryRate = float64(slowCount) / float64(len(filtered))
	for stage, total := range stageSums {
		stats.StageAvgTimes[stage] = total / float64(stageCounts[stage])
	}

	return stats
}

// ClearHistory drops all completed-request metrics.
func (t *Tracker) ClearHistory() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
}

// HistoryCount returns the number of completed requests retained.
func (t *Tracker) HistoryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

// InflightCount returns the number of requests currently tracking.
func (t *Tracker) InflightCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// percentile returns sorted[floor(p/100 * n)], clamped to the last
// index. sorted must be ascending and non-empty.
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Floor(p / 100 * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
