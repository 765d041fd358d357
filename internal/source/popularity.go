package source

import (
	"context"
	"sort"

	"github.com/opensource-retail/harrier/internal/domain"
)

// PopularitySource generates candidates by catalog popularity.
type PopularitySource struct {
	features domain.FeatureStore
}

// NewPopularitySource creates the popularity candidate source.
func NewPopularitySource(features domain.FeatureStore) *PopularitySource {
	return &PopularitySource{features: features}
}

func (s *PopularitySource) Name() domain.RecommendationSource {
	return domain.SourcePopularity
}

// Generate returns the top n unpurchased products by popularity score.
func (s *PopularitySource) Generate(ctx context.Context, member *domain.MemberInfo, history *domain.MemberHistory, n int) ([]domain.Recommendation, error) {
	purchased := make(map[string]bool)
	if history != nil {
		for _, id := range history.PurchasedProducts {
			purchased[id] = true
		}
	}

	var products []*domain.Product
	for _, p := range s.features.Products() {
		if !purchased[p.ID] {
			products = append(products, p)
		}
	}

	sort.Slice(products, func(i, j int) bool {
		if products[i].PopularityScore != products[j].PopularityScore {
			return products[i].PopularityScore > products[j].PopularityScore
		}
		return products[i].ID < products[j].ID
	})

	if n > len(products) {
		n = len(products)
	}

	recs := make([]domain.Recommendation, 0, n)
	for _, p := range products[:n] {
		recs = append(recs, domain.Recommendation{
			ProductID:       p.ID,
			ProductName:     productName(s.features, p.ID),
			ConfidenceScore: clampScore(p.PopularityScore),
			Source:          domain.SourcePopularity,
			RawScore:        p.PopularityScore,
		})
	}
	return recs, nil
}
