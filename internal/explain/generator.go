// Package explain builds the per-recommendation reason strings.
package explain

import (
	"fmt"

	"github.com/opensource-retail/harrier/internal/domain"
)

// FallbackReason is used when every applicable template has already
// appeared in the response.
const FallbackReason = "a recommended choice for you"

// Price within this band of the member average counts as matching
// their consumption level.
const priceBandRatio = 0.3

// Generator produces explanation strings from member history, product
// features and the candidate's source. It is stateless; duplicate
// avoidance lives in the used set the caller threads through one
// response.
type Generator struct{}

// New creates a reason generator.
func New() *Generator {
	return &Generator{}
}

// GenerateReason returns the first applicable reason not yet present in
// used, and records it there. The fallback is exempt from dedup so a
// response can never run out of reasons.
func (g *Generator) GenerateReason(history *domain.MemberHistory, rec domain.Recommendation, product *domain.Product, used map[string]bool) string {
	for _, reason := range g.candidates(history, rec, product) {
		if used[reason] {
			continue
		}
		used[reason] = true
		return reason
	}
	return FallbackReason
}

// candidates lists applicable reasons, most specific first.
func (g *Generator) candidates(history *domain.MemberHistory, rec domain.Recommendation, product *domain.Product) []string {
	var reasons []string

	if product != nil && history != nil {
		if product.Brand != "" && contains(history.PurchasedBrands, product.Brand) {
			reasons = append(reasons, fmt.Sprintf("from %s, a brand you prefer to purchase", product.Brand))
		}
		if product.Category != "" && contains(history.PurchasedCategories, product.Category) {
			reasons = append(reasons, fmt.Sprintf("similar to your favorite purchases in %s", product.Category))
		}
		if history.AvgPurchasePrice > 0 && product.AvgPrice > 0 {
			low := history.AvgPurchasePrice * (1 - priceBandRatio)
			high := history.AvgPurchasePrice * (1 + priceBandRatio)
			if product.AvgPrice >= low && product.AvgPrice <= high {
				reasons = append(reasons, "suits your usual consumption level")
			}
		}
	}

	if rec.ConfidenceScore >= 80 {
		reasons = append(reasons, "a strong match for your purchase preferences")
	}

	switch rec.Source {
	case domain.SourcePopularity:
		reasons = append(reasons, "a popular choice among members")
	case domain.SourceDiversity:
		reasons = append(reasons, "a fresh choice from a category new to you")
	case domain.SourceCollaborative:
		reasons = append(reasons, "members with similar purchases also chose this")
	case domain.SourceRuleBased:
		reasons = append(reasons, "a curated recommendation that matches your profile")
	default:
		reasons = append(reasons, "recommended to match your preferences")
	}

	return reasons
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
