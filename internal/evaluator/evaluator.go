// Package evaluator grades a finished recommendation list across
// relevance, novelty, explainability, and diversity.
package evaluator

import (
	"math"
	"strings"
	"time"

	"github.com/opensource-retail/harrier/internal/domain"
)

// Sub-metric weights within each dimension.
const (
	purchaseHistoryWeight     = 0.33
	browsingPreferenceWeight  = 0.33
	consumptionLevelWeight    = 0.34
	newCategoryWeight         = 0.5
	newBrandWeight            = 0.3
	newProductWeight          = 0.2
	reasonCompletenessWeight  = 0.4
	reasonKeywordWeight       = 0.4
	reasonDiversityWeight     = 0.2
	categoryDiversityWeight   = 0.4
	priceDiversityWeight      = 0.3
	brandDiversityWeight      = 0.3
)

// neutralScore is used whenever product metadata or member history is
// missing; absent data never fails an evaluation.
const neutralScore = 0.5

// DefaultKeywords mark an explanation as grounded in member features.
// The set is configurable because it is domain vocabulary, not logic.
var DefaultKeywords = []string{
	"purchase", "prefer", "favorite", "consumption", "brand", "category",
	"similar", "suits", "recommend", "popular", "choice", "match",
}

// Evaluator computes reference value scores.
type Evaluator struct {
	keywords []string
}

// New creates an evaluator with the default explanation keyword set.
func New() *Evaluator {
	return NewWithKeywords(DefaultKeywords)
}

// NewWithKeywords creates an evaluator with a custom keyword set.
func NewWithKeywords(keywords []string) *Evaluator {
	return &Evaluator{keywords: keywords}
}

// Evaluate scores a recommendation list. An empty list yields the
// all-zero score; it never returns an error.
func (e *Evaluator) Evaluate(
	recs []domain.Recommendation,
	member *domain.MemberInfo,
	history *domain.MemberHistory,
	products map[string]*domain.Product,
) *domain.ReferenceValueScore {
	if len(recs) == 0 {
		return domain.ZeroScore()
	}

	relevance := e.CalculateRelevance(recs, member, history, products)
	novelty := e.CalculateNovelty(recs, history, products)
	explainability := e.CalculateExplainability(recs)
	diversity := e.CalculateDiversity(recs, products)

	overall := relevance*domain.RelevanceWeight +
		novelty*domain.NoveltyWeight +
		explainability*domain.ExplainabilityWeight +
		diversity*domain.DiversityWeight

	return &domain.ReferenceValueScore{
		OverallScore:        overall,
		RelevanceScore:      relevance,
		NoveltyScore:        novelty,
		ExplainabilityScore: explainability,
		DiversityScore:      diversity,
		Breakdown: map[string]domain.DimensionScore{
			"relevance": {
				Score:        relevance,
				Weight:       domain.RelevanceWeight,
				Contribution: relevance * domain.RelevanceWeight,
			},
			"novelty": {
				Score:        novelty,
				Weight:       domain.NoveltyWeight,
				Contribution: novelty * domain.NoveltyWeight,
			},
			"explainability": {
				Score:        explainability,
				Weight:       domain.ExplainabilityWeight,
				Contribution: explainability * domain.ExplainabilityWeight,
			},
			"diversity": {
				Score:        diversity,
				Weight:       domain.DiversityWeight,
				Contribution: diversity * domain.DiversityWeight,
			},
		},
		Timestamp: time.Now().UTC(),
	}
}

// CalculateRelevance blends purchase history match, browsing preference
// match, and consumption level match into a 0-100 score.
func (e *Evaluator) CalculateRelevance(
	recs []domain.Recommendation,
	member *domain.MemberInfo,
	history *domain.MemberHistory,
	products map[string]*domain.Product,
) float64 {
	if len(recs) == 0 {
		return 0
	}

	score := (e.purchaseHistoryMatch(recs, history, products)*purchaseHistoryWeight +
		e.browsingPreferenceMatch(recs, history, products)*browsingPreferenceWeight +
		e.consumptionLevelMatch(recs, history, products)*consumptionLevelWeight) * 100

	return clampScore(score)
}

// purchaseHistoryMatch measures category/brand overlap with the
// member's purchase history, 0.5 category + 0.5 brand.
func (e *Evaluator) purchaseHistoryMatch(
	recs []domain.Recommendation,
	history *domain.MemberHistory,
	products map[string]*domain.Product,
) float64 {
	if !history.HasPurchaseHistory() || len(products) == 0 {
		return neutralScore
	}

	categories := stringSet(history.PurchasedCategories)
	brands := stringSet(history.PurchasedBrands)

	categoryMatches := 0
	brandMatches := 0
	for _, rec := range recs {
		product, ok := products[rec.ProductID]
		if !ok {
			continue
		}
		if product.Category != "" && categories[product.Category] {
			categoryMatches++
		}
		if brands[productBrand(product)] {
			brandMatches++
		}
	}

	total := float64(len(recs))
	return (float64(categoryMatches)/total)*0.5 + (float64(brandMatches)/total)*0.5
}

// browsingPreferenceMatch averages, over the recommendations, the best
// similarity to any browsed (or purchased, as fallback) product.
func (e *Evaluator) browsingPreferenceMatch(
	recs []domain.Recommendation,
	history *domain.MemberHistory,
	products map[string]*domain.Product,
) float64 {
	browsed := history.BrowsedProducts
	if len(browsed) == 0 {
		browsed = history.PurchasedProducts
	}
	if len(browsed) == 0 {
		return neutralScore
	}

	if len(products) == 0 {
		// No metadata: score by direct overlap with the browsed set.
		browsedSet := stringSet(browsed)
		overlap := 0
		for _, rec := range recs {
			if browsedSet[rec.ProductID] {
				overlap++
			}
		}
		return math.Min(1, float64(overlap)/float64(len(recs))*2)
	}

	var scores []float64
	for _, rec := range recs {
		recProduct, ok := products[rec.ProductID]
		if !ok {
			continue
		}
		best := 0.0
		for _, browsedID := range browsed {
			browsedProduct, ok := products[browsedID]
			if !ok {
				continue
			}
			if sim := productSimilarity(recProduct, browsedProduct); sim > best {
				best = sim
			}
		}
		scores = append(scores, best)
	}

	if len(scores) == 0 {
		return neutralScore
	}
	return mean(scores)
}

// productSimilarity combines category match (0.6) with price closeness
// (0.4).
func productSimilarity(a, b *domain.Product) float64 {
	similarity := 0.0
	if a.Category != "" && a.Category == b.Category {
		similarity += 0.6
	}
	if a.AvgPrice > 0 && b.AvgPrice > 0 {
		diffRatio := math.Abs(a.AvgPrice-b.AvgPrice) / math.Max(a.AvgPrice, b.AvgPrice)
		similarity += math.Max(0, 1-diffRatio) * 0.4
	}
	return similarity
}

// consumptionLevelMatch scores each recommendation's price against the
// member's historical spend with a Gaussian kernel.
func (e *Evaluator) consumptionLevelMatch(
	recs []domain.Recommendation,
	history *domain.MemberHistory,
	products map[string]*domain.Product,
) float64 {
	if len(products) == 0 || history.AvgPurchasePrice <= 0 {
		return neutralScore
	}

	avgPrice := history.AvgPurchasePrice
	sigma := history.PriceStd
	if sigma <= 0 {
		sigma = avgPrice * 0.3
	}

	var scores []float64
	for _, rec := range recs {
		product, ok := products[rec.ProductID]
		if !ok || product.AvgPrice <= 0 {
			continue
		}
		diff := math.Abs(product.AvgPrice - avgPrice)
		scores = append(scores, math.Exp(-(diff*diff)/(2*sigma*sigma)))
	}

	if len(scores) == 0 {
		return neutralScore
	}
	return mean(scores)
}

// CalculateNovelty blends new-category, new-brand, and new-product
// ratios into a 0-100 score.
func (e *Evaluator) CalculateNovelty(
	recs []domain.Recommendation,
	history *domain.MemberHistory,
	products map[string]*domain.Product,
) float64 {
	if len(recs) == 0 {
		return 0
	}

	score := (e.newCategoryRatio(recs, history, products)*newCategoryWeight +
		e.newBrandRatio(recs, history, products)*newBrandWeight +
		e.newProductRatio(recs, history)*newProductWeight) * 100

	return clampScore(score)
}

func (e *Evaluator) newCategoryRatio(
	recs []domain.Recommendation,
	history *domain.MemberHistory,
	products map[string]*domain.Product,
) float64 {
	if len(products) == 0 {
		return 0.3
	}

	purchased := stringSet(history.PurchasedCategories)
	newCount := 0
	for _, rec := range recs {
		product, ok := products[rec.ProductID]
		if ok && product.Category != "" && !purchased[product.Category] {
			newCount++
		}
	}
	return float64(newCount) / float64(len(recs))
}

func (e *Evaluator) newBrandRatio(
	recs []domain.Recommendation,
	history *domain.MemberHistory,
	products map[string]*domain.Product,
) float64 {
	if len(products) == 0 {
		return 0.3
	}

	purchased := stringSet(history.PurchasedBrands)
	newCount := 0
	for _, rec := range recs {
		product, ok := products[rec.ProductID]
		if !ok {
			continue
		}
		if !purchased[productBrand(product)] {
			newCount++
		}
	}
	return float64(newCount) / float64(len(recs))
}

func (e *Evaluator) newProductRatio(
	recs []domain.Recommendation,
	history *domain.MemberHistory,
) float64 {
	purchased := stringSet(history.PurchasedProducts)
	newCount := 0
	for _, rec := range recs {
		if !purchased[rec.ProductID] {
			newCount++
		}
	}
	return float64(newCount) / float64(len(recs))
}

// CalculateExplainability blends explanation completeness, keyword
// relevance, and explanation diversity into a 0-100 score.
func (e *Evaluator) CalculateExplainability(recs []domain.Recommendation) float64 {
	if len(recs) == 0 {
		return 0
	}

	score := (e.reasonCompleteness(recs)*reasonCompletenessWeight +
		e.reasonKeywordRelevance(recs)*reasonKeywordWeight +
		e.reasonDiversity(recs)*reasonDiversityWeight) * 100

	return clampScore(score)
}

func (e *Evaluator) reasonCompleteness(recs []domain.Recommendation) float64 {
	withReason := 0
	for _, rec := range recs {
		if strings.TrimSpace(rec.Explanation) != "" {
			withReason++
		}
	}
	return float64(withReason) / float64(len(recs))
}

// reasonKeywordRelevance scores 0.5 per matched keyword, capped at two
// keywords per explanation.
func (e *Evaluator) reasonKeywordRelevance(recs []domain.Recommendation) float64 {
	var scores []float64
	for _, rec := range recs {
		if rec.Explanation == "" {
			scores = append(scores, 0)
			continue
		}
		lower := strings.ToLower(rec.Explanation)
		count := 0
		for _, keyword := range e.keywords {
			if strings.Contains(lower, keyword) {
				count++
			}
		}
		scores = append(scores, math.Min(1, float64(count)*0.5))
	}
	return mean(scores)
}

func (e *Evaluator) reasonDiversity(recs []domain.Recommendation) float64 {
	unique := map[string]struct{}{}
	total := 0
	for _, rec := range recs {
		if rec.Explanation == "" {
			continue
		}
		unique[rec.Explanation] = struct{}{}
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(len(unique)) / float64(total)
}

// CalculateDiversity blends category, price, and brand spread into a
// 0-100 score.
func (e *Evaluator) CalculateDiversity(
	recs []domain.Recommendation,
	products map[string]*domain.Product,
) float64 {
	if len(recs) == 0 {
		return 0
	}

	score := (e.categoryDiversity(recs, products)*categoryDiversityWeight +
		e.priceDiversity(recs, products)*priceDiversityWeight +
		e.brandDiversity(recs, products)*brandDiversityWeight) * 100

	return clampScore(score)
}

func (e *Evaluator) categoryDiversity(
	recs []domain.Recommendation,
	products map[string]*domain.Product,
) float64 {
	if len(products) == 0 {
		return neutralScore
	}

	categories := map[string]struct{}{}
	for _, rec := range recs {
		product, ok := products[rec.ProductID]
		if ok && product.Category != "" {
			categories[product.Category] = struct{}{}
		}
	}
	return float64(len(categories)) / float64(len(recs))
}

// priceDiversity maps the coefficient of variation of prices to 0-1;
// a CV of 0.5 or more counts as fully diverse.
func (e *Evaluator) priceDiversity(
	recs []domain.Recommendation,
	products map[string]*domain.Product,
) float64 {
	if len(products) == 0 {
		return neutralScore
	}

	var prices []float64
	for _, rec := range recs {
		product, ok := products[rec.ProductID]
		if ok && product.AvgPrice > 0 {
			prices = append(prices, product.AvgPrice)
		}
	}
	if len(prices) < 2 {
		return 0
	}

	meanPrice := mean(prices)
	var variance float64
	for _, p := range prices {
		variance += (p - meanPrice) * (p - meanPrice)
	}
	variance /= float64(len(prices))
	stdDev := math.Sqrt(variance)

	if meanPrice <= 0 {
		return 0
	}
	return math.Min(1, (stdDev/meanPrice)/0.5)
}

func (e *Evaluator) brandDiversity(
	recs []domain.Recommendation,
	products map[string]*domain.Product,
) float64 {
	if len(products) == 0 {
		return neutralScore
	}

	brands := map[string]struct{}{}
	for _, rec := range recs {
		product, ok := products[rec.ProductID]
		if !ok {
			continue
		}
		if brand := productBrand(product); brand != "" {
			brands[brand] = struct{}{}
		}
	}
	return float64(len(brands)) / float64(len(recs))
}

// productBrand prefers the explicit brand field, falling back to the
// first token of the description.
func productBrand(p *domain.Product) string {
	if p.Brand != "" {
		return p.Brand
	}
	fields := strings.Fields(p.Description)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = true
		}
	}
	return set
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clampScore(score float64) float64 {
	return math.Min(100, math.Max(0, score))
}
