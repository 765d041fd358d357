package evaluator

import (
	"math"
	"testing"

	"github.com/opensource-retail/harrier/internal/domain"
)

func testProducts() map[string]*domain.Product {
	return map[string]*domain.Product{
		"P1": {ID: "P1", Description: "Aurora vitamin C serum", Brand: "Aurora", Category: "skincare", AvgPrice: 450},
		"P2": {ID: "P2", Description: "Borealis collagen drink", Brand: "Borealis", Category: "health", AvgPrice: 800},
		"P3": {ID: "P3", Description: "Cascade herbal tea", Brand: "Cascade", Category: "beverage", AvgPrice: 120},
		"P4": {ID: "P4", Description: "Aurora night cream", Brand: "Aurora", Category: "skincare", AvgPrice: 520},
		"P5": {ID: "P5", Description: "Derma facial mask", Brand: "Derma", Category: "skincare", AvgPrice: 300},
	}
}

func testHistory() *domain.MemberHistory {
	return &domain.MemberHistory{
		MemberCode:          "CU000001",
		PurchasedProducts:   []string{"P1", "P2"},
		PurchasedCategories: []string{"skincare", "health"},
		PurchasedBrands:     []string{"Aurora", "Borealis"},
		AvgPurchasePrice:    625,
		PriceStd:            175,
	}
}

func testRecs() []domain.Recommendation {
	return []domain.Recommendation{
		{ProductID: "P3", ConfidenceScore: 90, Rank: 1, Source: domain.SourceMLModel, Explanation: "matches your favorite beverage category"},
		{ProductID: "P4", ConfidenceScore: 80, Rank: 2, Source: domain.SourceMLModel, Explanation: "similar to your recent purchase"},
		{ProductID: "P5", ConfidenceScore: 70, Rank: 3, Source: domain.SourceMLModel, Explanation: "popular choice among members"},
	}
}

func TestEvaluateEmptyList(t *testing.T) {
	e := New()
	score := e.Evaluate(nil, &domain.MemberInfo{MemberCode: "CU000001"}, testHistory(), testProducts())

	if score.OverallScore != 0 {
		t.Errorf("expected zero overall, got %f", score.OverallScore)
	}
	if score.RelevanceScore != 0 || score.NoveltyScore != 0 ||
		score.ExplainabilityScore != 0 || score.DiversityScore != 0 {
		t.Error("expected all dimensions zero for empty list")
	}
	if len(score.Breakdown) != 0 {
		t.Errorf("expected empty breakdown, got %v", score.Breakdown)
	}
}

func TestWeightedSumInvariant(t *testing.T) {
	e := New()
	member := &domain.MemberInfo{MemberCode: "CU000001", TotalConsumption: 17400}
	score := e.Evaluate(testRecs(), member, testHistory(), testProducts())

	want := 0.40*score.RelevanceScore +
		0.25*score.NoveltyScore +
		0.20*score.ExplainabilityScore +
		0.15*score.DiversityScore
	if math.Abs(score.OverallScore-want) >= 1e-6 {
		t.Errorf("overall %f does not match weighted sum %f", score.OverallScore, want)
	}

	for name, dim := range score.Breakdown {
		if math.Abs(dim.Contribution-dim.Score*dim.Weight) >= 1e-9 {
			t.Errorf("%s contribution %f != score*weight %f", name, dim.Contribution, dim.Score*dim.Weight)
		}
	}
}

func TestDimensionRanges(t *testing.T) {
	e := New()
	member := &domain.MemberInfo{MemberCode: "CU000001"}
	score := e.Evaluate(testRecs(), member, testHistory(), testProducts())

	for name, v := range map[string]float64{
		"overall":        score.OverallScore,
		"relevance":      score.RelevanceScore,
		"novelty":        score.NoveltyScore,
		"explainability": score.ExplainabilityScore,
		"diversity":      score.DiversityScore,
	} {
		if v < 0 || v > 100 {
			t.Errorf("%s score %f out of range", name, v)
		}
	}
}

func TestRelevanceNeutralDefaults(t *testing.T) {
	e := New()

	t.Run("NoHistory", func(t *testing.T) {
		history := &domain.MemberHistory{MemberCode: "CU000002"}
		got := e.purchaseHistoryMatch(testRecs(), history, testProducts())
		if got != 0.5 {
			t.Errorf("expected neutral 0.5 without history, got %f", got)
		}
	})

	t.Run("NoProducts", func(t *testing.T) {
		got := e.consumptionLevelMatch(testRecs(), testHistory(), nil)
		if got != 0.5 {
			t.Errorf("expected neutral 0.5 without products, got %f", got)
		}
	})
}

func TestConsumptionLevelGaussian(t *testing.T) {
	e := New()
	history := testHistory()

	// A product priced exactly at the member average scores 1.0.
	products := map[string]*domain.Product{
		"P9": {ID: "P9", Brand: "X", Category: "misc", AvgPrice: history.AvgPurchasePrice},
	}
	recs := []domain.Recommendation{{ProductID: "P9"}}
	got := e.consumptionLevelMatch(recs, history, products)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected 1.0 for exact price match, got %f", got)
	}

	// A far-off price scores close to zero.
	products["P9"].AvgPrice = history.AvgPurchasePrice * 20
	got = e.consumptionLevelMatch(recs, history, products)
	if got > 0.01 {
		t.Errorf("expected near-zero for distant price, got %f", got)
	}
}

func TestNoveltyAllNew(t *testing.T) {
	e := New()
	history := &domain.MemberHistory{MemberCode: "CU000003"}

	got := e.CalculateNovelty(testRecs(), history, testProducts())
	if math.Abs(got-100) > 1e-9 {
		t.Errorf("expected 100 for fully novel list, got %f", got)
	}
}

func TestNoveltyAllRepeat(t *testing.T) {
	e := New()
	history := testHistory()
	recs := []domain.Recommendation{
		{ProductID: "P1", Explanation: "a"},
		{ProductID: "P2", Explanation: "b"},
	}

	got := e.CalculateNovelty(recs, history, testProducts())
	if got != 0 {
		t.Errorf("expected 0 for fully repeated list, got %f", got)
	}
}

func TestExplainability(t *testing.T) {
	e := New()

	t.Run("CompleteUniqueKeywordRich", func(t *testing.T) {
		recs := []domain.Recommendation{
			{ProductID: "P1", Explanation: "matches your purchase and brand preference"},
			{ProductID: "P2", Explanation: "popular choice in a new category"},
		}
		got := e.CalculateExplainability(recs)
		// completeness 1.0, keyword relevance 1.0 (>=2 keywords each),
		// diversity 1.0 -> full marks.
		if math.Abs(got-100) > 1e-9 {
			t.Errorf("expected 100, got %f", got)
		}
	})

	t.Run("MissingExplanations", func(t *testing.T) {
		recs := []domain.Recommendation{
			{ProductID: "P1", Explanation: ""},
			{ProductID: "P2", Explanation: ""},
		}
		got := e.CalculateExplainability(recs)
		if got != 0 {
			t.Errorf("expected 0 for no explanations, got %f", got)
		}
	})

	t.Run("DuplicateExplanations", func(t *testing.T) {
		recs := []domain.Recommendation{
			{ProductID: "P1", Explanation: "popular item"},
			{ProductID: "P2", Explanation: "popular item"},
			{ProductID: "P3", Explanation: "popular item"},
		}
		unique := e.reasonDiversity(recs)
		if math.Abs(unique-1.0/3.0) > 1e-9 {
			t.Errorf("expected diversity 1/3, got %f", unique)
		}
	})
}

func TestDiversity(t *testing.T) {
	e := New()

	t.Run("DistinctCategoriesAndBrands", func(t *testing.T) {
		recs := []domain.Recommendation{
			{ProductID: "P1"}, {ProductID: "P2"}, {ProductID: "P3"},
		}
		got := e.categoryDiversity(recs, testProducts())
		if math.Abs(got-1.0) > 1e-9 {
			t.Errorf("expected category diversity 1.0, got %f", got)
		}
	})

	t.Run("SingleCategory", func(t *testing.T) {
		recs := []domain.Recommendation{
			{ProductID: "P1"}, {ProductID: "P4"}, {ProductID: "P5"},
		}
		got := e.categoryDiversity(recs, testProducts())
		if math.Abs(got-1.0/3.0) > 1e-9 {
			t.Errorf("expected category diversity 1/3, got %f", got)
		}
	})

	t.Run("PriceSpread", func(t *testing.T) {
		recs := []domain.Recommendation{
			{ProductID: "P1"}, {ProductID: "P2"}, {ProductID: "P3"},
		}
		got := e.priceDiversity(recs, testProducts())
		if got <= 0 || got > 1 {
			t.Errorf("expected price diversity in (0,1], got %f", got)
		}
	})

	t.Run("SinglePrice", func(t *testing.T) {
		recs := []domain.Recommendation{{ProductID: "P1"}}
		got := e.priceDiversity(recs, testProducts())
		if got != 0 {
			t.Errorf("expected 0 for fewer than two prices, got %f", got)
		}
	})
}
