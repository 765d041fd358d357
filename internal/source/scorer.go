package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/opensource-retail/harrier/internal/domain"
)

// BaselineScorer is the built-in ranking model used when no trained
// artifact is deployed. It blends catalog popularity with a
// deterministic per-member affinity, so identical inputs always produce
// identical rankings.
type BaselineScorer struct {
	features domain.FeatureStore
}

// NewBaselineScorer creates the heuristic scorer over the catalog.
func NewBaselineScorer(features domain.FeatureStore) *BaselineScorer {
	return &BaselineScorer{features: features}
}

// Score returns candidates ordered by descending score in [0, 1].
func (s *BaselineScorer) Score(ctx context.Context, memberCode string, productIDs []string) ([]domain.ScoredProduct, error) {
	scored := make([]domain.ScoredProduct, 0, len(productIDs))
	for _, id := range productIDs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		popularity := 0.0
		if p, ok := s.features.Product(id); ok {
			popularity = p.PopularityScore / 100
		}
		scored = append(scored, domain.ScoredProduct{
			ProductID: id,
			Score:     0.6*popularity + 0.4*affinity(memberCode, id),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ProductID < scored[j].ProductID
	})
	return scored, nil
}

// Version identifies the heuristic artifact.
func (s *BaselineScorer) Version() string {
	return "baseline-v1"
}

// Ping verifies the catalog backing the scorer is loaded.
func (s *BaselineScorer) Ping(ctx context.Context) error {
	if s.features == nil || s.features.ProductCount() == 0 {
		return fmt.Errorf("baseline scorer: no catalog loaded")
	}
	return nil
}

// affinity hashes (member, product) into [0, 1).
func affinity(memberCode, productID string) float64 {
	h := fnv.New32a()
	h.Write([]byte(memberCode))
	h.Write([]byte{'|'})
	h.Write([]byte(productID))
	return float64(h.Sum32()) / float64(^uint32(0))
}
