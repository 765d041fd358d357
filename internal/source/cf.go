package source

import (
	"context"
	"fmt"

	"github.com/opensource-retail/harrier/internal/domain"
)

// CFSource generates candidates from a collaborative filtering artifact.
// CF similarity scores live on a 0-10 scale and map to confidence by
// *10.
type CFSource struct {
	scorer        domain.Scorer
	features      domain.FeatureStore
	candidatePool int
}

// NewCFSource creates the collaborative filtering candidate source. A
// nil scorer is allowed; the source then produces nothing, which the
// engine treats like any other empty source.
func NewCFSource(scorer domain.Scorer, features domain.FeatureStore, candidatePool int) *CFSource {
	if candidatePool <= 0 {
		candidatePool = 100
	}
	return &CFSource{
		scorer:        scorer,
		features:      features,
		candidatePool: candidatePool,
	}
}

func (s *CFSource) Name() domain.RecommendationSource {
	return domain.SourceCollaborative
}

// Generate scores unpurchased candidates and returns the top n.
func (s *CFSource) Generate(ctx context.Context, member *domain.MemberInfo, history *domain.MemberHistory, n int) ([]domain.Recommendation, error) {
	if s.scorer == nil {
		return nil, nil
	}

	ids := candidateIDs(s.features, history, s.candidatePool)
	if len(ids) == 0 {
		return nil, nil
	}

	scored, err := s.scorer.Score(ctx, member.MemberCode, ids)
	if err != nil {
		return nil, fmt.Errorf("cf source: %w", err)
	}

	if n > len(scored) {
		n = len(scored)
	}

	recs := make([]domain.Recommendation, 0, n)
	for _, sp := range scored[:n] {
		recs = append(recs, domain.Recommendation{
			ProductID:       sp.ProductID,
			ProductName:     productName(s.features, sp.ProductID),
			ConfidenceScore: clampScore(sp.Score * 10),
			Source:          domain.SourceCollaborative,
			RawScore:        sp.Score,
		})
	}
	return recs, nil
}
