package domain

import (
	"time"
)

// Reference value dimension weights. They sum to 1.0 and the overall
// score is always the weighted sum of the four dimension scores.
const (
	RelevanceWeight      = 0.40
	NoveltyWeight        = 0.25
	ExplainabilityWeight = 0.20
	DiversityWeight      = 0.15
)

// DimensionScore is one entry of the score breakdown.
type DimensionScore struct {
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ReferenceValueScore grades a finished recommendation list across four
// dimensions, each 0-100.
type ReferenceValueScore struct {
	OverallScore        float64                   `json:"overallScore"`
	RelevanceScore      float64                   `json:"relevanceScore"`
	NoveltyScore        float64                   `json:"noveltyScore"`
	ExplainabilityScore float64                   `json:"explainabilityScore"`
	DiversityScore      float64                   `json:"diversityScore"`
	Breakdown           map[string]DimensionScore `json:"scoreBreakdown"`
	Timestamp           time.Time                 `json:"timestamp"`
}

// ZeroScore returns the all-zero score used for empty recommendation
// lists and failed requests.
func ZeroScore() *ReferenceValueScore {
	return &ReferenceValueScore{
		Breakdown: map[string]DimensionScore{},
		Timestamp: time.Now().UTC(),
	}
}
