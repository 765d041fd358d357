// Package source provides the candidate recommendation generators the
// engine fans out to. Each source proposes scored candidates; merging,
// ranking and explanation happen downstream.
package source

import (
	"context"
	"sort"

	"github.com/opensource-retail/harrier/internal/domain"
)

// Source is one candidate generator.
type Source interface {
	// Name tags candidates produced by this source.
	Name() domain.RecommendationSource

	// Generate proposes up to n candidates for the member. Explanations
	// are left empty; the reason generator fills them in.
	Generate(ctx context.Context, member *domain.MemberInfo, history *domain.MemberHistory, n int) ([]domain.Recommendation, error)
}

// candidateIDs returns product ids the member has not purchased, sorted
// for deterministic scoring, capped at pool.
func candidateIDs(features domain.FeatureStore, history *domain.MemberHistory, pool int) []string {
	purchased := make(map[string]bool)
	if history != nil {
		for _, id := range history.PurchasedProducts {
			purchased[id] = true
		}
	}

	ids := make([]string, 0, features.ProductCount())
	for _, id := range features.ProductIDs() {
		if !purchased[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if pool > 0 && len(ids) > pool {
		ids = ids[:pool]
	}
	return ids
}

func productName(features domain.FeatureStore, productID string) string {
	if p, ok := features.Product(productID); ok && p.Description != "" {
		return p.Description
	}
	return productID
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
