// Package degrade decides when to abandon the primary recommendation
// list and generates the popularity fallback that replaces it.
package degrade

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/opensource-retail/harrier/internal/domain"
)

// FallbackExplanation is the fixed reason attached to every degraded
// recommendation.
const FallbackExplanation = "popular item"

// Thresholds is the runtime-mutable degradation configuration.
type Thresholds struct {
	MinQualityScore   float64 `json:"minQualityScore"`
	MaxResponseTimeMs float64 `json:"maxResponseTimeMs"`
}

// DefaultThresholds returns the stock degradation thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinQualityScore:   40,
		MaxResponseTimeMs: 2000,
	}
}

// Strategy holds the thresholds and the catalog used for fallback
// generation. Threshold reads and updates are safe for concurrent use.
type Strategy struct {
	mu         sync.RWMutex
	thresholds Thresholds
	features   domain.FeatureStore
}

// New creates a degradation strategy over the given feature store. A
// nil store is allowed; fallback generation then returns empty lists.
func New(features domain.FeatureStore, cfg domain.DegradationConfig) *Strategy {
	thresholds := DefaultThresholds()
	if cfg.MinQualityScore > 0 {
		thresholds.MinQualityScore = cfg.MinQualityScore
	}
	if cfg.MaxResponseTimeMs > 0 {
		thresholds.MaxResponseTimeMs = cfg.MaxResponseTimeMs
	}
	return &Strategy{
		thresholds: thresholds,
		features:   features,
	}
}

// ShouldDegrade reports whether either signal breaches its threshold.
// Quality uses strict less-than; latency uses strict greater-than.
// Either signal alone is sufficient; nil signals are skipped.
func (s *Strategy) ShouldDegrade(score *domain.ReferenceValueScore, metrics *domain.PerformanceMetrics) bool {
	s.mu.RLock()
	thresholds := s.thresholds
	s.mu.RUnlock()

	if score != nil && score.OverallScore < thresholds.MinQualityScore {
		slog.Warn("quality below degradation threshold",
			"overall_score", score.OverallScore,
			"min_quality_score", thresholds.MinQualityScore,
		)
		return true
	}

	if metrics != nil && metrics.TotalTimeMs > thresholds.MaxResponseTimeMs {
		slog.Warn("response time above degradation threshold",
			"total_time_ms", metrics.TotalTimeMs,
			"max_response_time_ms", thresholds.MaxResponseTimeMs,
		)
		return true
	}

	return false
}

// ExecuteDegradation returns the top n catalog products by popularity,
// excluding the member's recent purchases. It never fails: without a
// catalog it returns an empty list, and without popularity scores it
// samples uniformly.
func (s *Strategy) ExecuteDegradation(member *domain.MemberInfo, n int) []domain.Recommendation {
	if s.features == nil || n <= 0 {
		return nil
	}

	purchased := make(map[string]bool, len(member.RecentPurchases))
	for _, id := range member.RecentPurchases {
		purchased[id] = true
	}

	var available []*domain.Product
	hasPopularity := false
	for _, product := range s.features.Products() {
		if purchased[product.ID] {
			continue
		}
		if product.PopularityScore > 0 {
			hasPopularity = true
		}
		available = append(available, product)
	}
	if len(available) == 0 {
		slog.Warn("no catalog available for degraded recommendations",
			"member_code", member.MemberCode,
		)
		return nil
	}

	if hasPopularity {
		sort.Slice(available, func(i, j int) bool {
			if available[i].PopularityScore != available[j].PopularityScore {
				return available[i].PopularityScore > available[j].PopularityScore
			}
			return available[i].ID < available[j].ID
		})
	} else {
		rand.Shuffle(len(available), func(i, j int) {
			available[i], available[j] = available[j], available[i]
		})
	}

	if n > len(available) {
		n = len(available)
	}

	recs := make([]domain.Recommendation, 0, n)
	for rank, product := range available[:n] {
		name := product.Description
		if name == "" {
			name = product.ID
		}
		popularity := product.PopularityScore
		if popularity == 0 {
			popularity = 50
		}
		recs = append(recs, domain.Recommendation{
			ProductID:       product.ID,
			ProductName:     name,
			ConfidenceScore: math.Min(100, math.Max(0, popularity)),
			Explanation:     FallbackExplanation,
			Rank:            rank + 1,
			Source:          domain.SourcePopularity,
			RawScore:        product.PopularityScore,
		})
	}

	slog.Info("degraded recommendations generated",
		"member_code", member.MemberCode,
		"count", len(recs),
	)
	return recs
}

// GetThresholds returns a copy of the current thresholds.
func (s *Strategy) GetThresholds() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// UpdateThresholds applies a partial update; nil fields are untouched.
func (s *Strategy) UpdateThresholds(minQualityScore, maxResponseTimeMs *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if minQualityScore != nil {
		s.thresholds.MinQualityScore = *minQualityScore
		slog.Info("degradation threshold updated", "min_quality_score", *minQualityScore)
	}
	if maxResponseTimeMs != nil {
		s.thresholds.MaxResponseTimeMs = *maxResponseTimeMs
		slog.Info("degradation threshold updated", "max_response_time_ms", *maxResponseTimeMs)
	}
}
