package domain

import (
	"time"
)

// RecommendationSource identifies which candidate generator produced a
// recommendation.
type RecommendationSource string

const (
	SourceMLModel       RecommendationSource = "ml_model"
	SourceCollaborative RecommendationSource = "collaborative_filtering"
	SourcePopularity    RecommendationSource = "popularity"
	SourceDiversity     RecommendationSource = "diversity"
	SourceRuleBased     RecommendationSource = "rule_based"
	SourceContentBased  RecommendationSource = "content_based"
	SourceFallback      RecommendationSource = "fallback"
)

// Strategy selects how candidates are generated for a request.
type Strategy string

const (
	StrategyHybrid Strategy = "hybrid"
	StrategyMLOnly Strategy = "ml_only"
	StrategyCFOnly Strategy = "cf_only"

	// StrategyDegraded is never requested; it marks responses whose
	// primary list was replaced by the fallback list.
	StrategyDegraded Strategy = "degraded"
)

// Valid reports whether the strategy is one a caller may request.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyHybrid, StrategyMLOnly, StrategyCFOnly:
		return true
	}
	return false
}

// Recommendation is one recommended product within a response.
// Within one response ranks are contiguous 1..n, confidence scores are
// non-increasing by rank, and product ids are unique.
type Recommendation struct {
	ProductID       string               `json:"productId"`
	ProductName     string               `json:"productName"`
	ConfidenceScore float64              `json:"confidenceScore"` // 0-100
	Explanation     string               `json:"explanation"`
	Rank            int                  `json:"rank"` // 1-based
	Source          RecommendationSource `json:"source"`
	RawScore        float64              `json:"rawScore"`
}

// QualityLevel is the coarse grade derived from the overall reference
// value score.
type QualityLevel string

const (
	QualityExcellent  QualityLevel = "excellent"  // >= 80
	QualityGood       QualityLevel = "good"       // >= 60
	QualityAcceptable QualityLevel = "acceptable" // >= 40
	QualityPoor       QualityLevel = "poor"       // < 40
)

// QualityLevelFor maps an overall score to its quality level.
func QualityLevelFor(overallScore float64) QualityLevel {
	switch {
	case overallScore >= 80:
		return QualityExcellent
	case overallScore >= 60:
		return QualityGood
	case overallScore >= 40:
		return QualityAcceptable
	default:
		return QualityPoor
	}
}

// RecommendationRequest is the API request payload.
type RecommendationRequest struct {
	Member   MemberInfo `json:"member"`
	N        int        `json:"n,omitempty"`
	Strategy Strategy   `json:"strategy,omitempty"`
}

// RecommendationResponse is the composite result of one recommend call.
type RecommendationResponse struct {
	RequestID           string               `json:"requestId"`
	MemberCode          string               `json:"memberCode"`
	Recommendations     []Recommendation     `json:"recommendations"`
	ReferenceValueScore *ReferenceValueScore `json:"referenceValueScore"`
	PerformanceMetrics  *PerformanceMetrics  `json:"performanceMetrics"`
	TotalCount          int                  `json:"totalCount"`
	StrategyUsed        Strategy             `json:"strategyUsed"`
	ModelVersion        string               `json:"modelVersion"`
	QualityLevel        QualityLevel         `json:"qualityLevel"`
	IsDegraded          bool                 `json:"isDegraded"`
	Timestamp           time.Time            `json:"timestamp"`
}
