package source

import (
	"context"
	"sort"

	"github.com/opensource-retail/harrier/internal/domain"
)

// Exploration candidates carry a flat moderate confidence; they exist
// to widen the list, not to compete with model scores.
const (
	diversityConfidence = 60
	diversityRawScore   = 0.6
)

// DiversitySource generates exploration candidates from categories the
// member has never purchased, at most one per category.
type DiversitySource struct {
	features domain.FeatureStore
}

// NewDiversitySource creates the diversity candidate source.
func NewDiversitySource(features domain.FeatureStore) *DiversitySource {
	return &DiversitySource{features: features}
}

func (s *DiversitySource) Name() domain.RecommendationSource {
	return domain.SourceDiversity
}

// Generate picks the most popular product from up to n unseen
// categories.
func (s *DiversitySource) Generate(ctx context.Context, member *domain.MemberInfo, history *domain.MemberHistory, n int) ([]domain.Recommendation, error) {
	seen := make(map[string]bool)
	purchased := make(map[string]bool)
	if history != nil {
		for _, c := range history.PurchasedCategories {
			seen[c] = true
		}
		for _, id := range history.PurchasedProducts {
			purchased[id] = true
		}
	}

	// Best product per unseen category.
	best := make(map[string]*domain.Product)
	for _, p := range s.features.Products() {
		if p.Category == "" || seen[p.Category] || purchased[p.ID] {
			continue
		}
		cur, ok := best[p.Category]
		if !ok || p.PopularityScore > cur.PopularityScore ||
			(p.PopularityScore == cur.PopularityScore && p.ID < cur.ID) {
			best[p.Category] = p
		}
	}

	picks := make([]*domain.Product, 0, len(best))
	for _, p := range best {
		picks = append(picks, p)
	}
	sort.Slice(picks, func(i, j int) bool {
		if picks[i].PopularityScore != picks[j].PopularityScore {
			return picks[i].PopularityScore > picks[j].PopularityScore
		}
		return picks[i].ID < picks[j].ID
	})

	if n > len(picks) {
		n = len(picks)
	}

	recs := make([]domain.Recommendation, 0, n)
	for _, p := range picks[:n] {
		recs = append(recs, domain.Recommendation{
			ProductID:       p.ID,
			ProductName:     productName(s.features, p.ID),
			ConfidenceScore: diversityConfidence,
			Source:          domain.SourceDiversity,
			RawScore:        diversityRawScore,
		})
	}
	return recs, nil
}
