package source

import (
	"context"
	"fmt"

	"github.com/opensource-retail/harrier/internal/domain"
)

// MLSource generates candidates from the trained ranking model. Model
// scores are probabilities in [0, 1] and map to confidence by *100.
type MLSource struct {
	scorer        domain.Scorer
	features      domain.FeatureStore
	candidatePool int
}

// NewMLSource creates the model-backed candidate source.
func NewMLSource(scorer domain.Scorer, features domain.FeatureStore, candidatePool int) *MLSource {
	if candidatePool <= 0 {
		candidatePool = 100
	}
	return &MLSource{
		scorer:        scorer,
		features:      features,
		candidatePool: candidatePool,
	}
}

func (s *MLSource) Name() domain.RecommendationSource {
	return domain.SourceMLModel
}

// Generate scores unpurchased candidates and returns the top n.
func (s *MLSource) Generate(ctx context.Context, member *domain.MemberInfo, history *domain.MemberHistory, n int) ([]domain.Recommendation, error) {
	if s.scorer == nil {
		return nil, fmt.Errorf("ml source: no scorer configured")
	}

	ids := candidateIDs(s.features, history, s.candidatePool)
	if len(ids) == 0 {
		return nil, nil
	}

	scored, err := s.scorer.Score(ctx, member.MemberCode, ids)
	if err != nil {
		return nil, fmt.Errorf("ml source: %w", err)
	}

	if n > len(scored) {
		n = len(scored)
	}

	recs := make([]domain.Recommendation, 0, n)
	for _, sp := range scored[:n] {
		recs = append(recs, domain.Recommendation{
			ProductID:       sp.ProductID,
			ProductName:     productName(s.features, sp.ProductID),
			ConfidenceScore: clampScore(sp.Score * 100),
			Source:          domain.SourceMLModel,
			RawScore:        sp.Score,
		})
	}
	return recs, nil
}
