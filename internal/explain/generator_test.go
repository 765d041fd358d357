package explain

import (
	"strings"
	"testing"

	"github.com/opensource-retail/harrier/internal/domain"
)

func testHistory() *domain.MemberHistory {
	return &domain.MemberHistory{
		MemberCode:          "CU000001",
		PurchasedCategories: []string{"skincare"},
		PurchasedBrands:     []string{"Aurora"},
		AvgPurchasePrice:    500,
	}
}

func TestGenerateReason(t *testing.T) {
	g := New()

	t.Run("BrandMatchFirst", func(t *testing.T) {
		product := &domain.Product{ID: "P1", Brand: "Aurora", Category: "skincare", AvgPrice: 480}
		rec := domain.Recommendation{ProductID: "P1", ConfidenceScore: 90, Source: domain.SourceMLModel}

		reason := g.GenerateReason(testHistory(), rec, product, map[string]bool{})
		if !strings.Contains(reason, "Aurora") {
			t.Errorf("expected brand reason, got %q", reason)
		}
	})

	t.Run("CategoryWhenBrandUnknown", func(t *testing.T) {
		product := &domain.Product{ID: "P2", Brand: "Borealis", Category: "skincare", AvgPrice: 2000}
		rec := domain.Recommendation{ProductID: "P2", ConfidenceScore: 50, Source: domain.SourceMLModel}

		reason := g.GenerateReason(testHistory(), rec, product, map[string]bool{})
		if !strings.Contains(reason, "skincare") {
			t.Errorf("expected category reason, got %q", reason)
		}
	})

	t.Run("ConsumptionLevel", func(t *testing.T) {
		product := &domain.Product{ID: "P3", Brand: "Cascade", Category: "beverage", AvgPrice: 520}
		rec := domain.Recommendation{ProductID: "P3", ConfidenceScore: 50, Source: domain.SourceMLModel}

		reason := g.GenerateReason(testHistory(), rec, product, map[string]bool{})
		if !strings.Contains(reason, "consumption level") {
			t.Errorf("expected consumption reason, got %q", reason)
		}
	})

	t.Run("SourceSpecific", func(t *testing.T) {
		product := &domain.Product{ID: "P4", Brand: "Derma", Category: "misc", AvgPrice: 5000}
		cases := map[domain.RecommendationSource]string{
			domain.SourcePopularity:    "popular",
			domain.SourceDiversity:     "new to you",
			domain.SourceCollaborative: "similar purchases",
			domain.SourceRuleBased:     "curated",
		}
		for src, fragment := range cases {
			rec := domain.Recommendation{ProductID: "P4", ConfidenceScore: 50, Source: src}
			reason := g.GenerateReason(testHistory(), rec, product, map[string]bool{})
			if !strings.Contains(reason, fragment) {
				t.Errorf("source %s: expected fragment %q, got %q", src, fragment, reason)
			}
		}
	})

	t.Run("DeduplicatesAcrossResponse", func(t *testing.T) {
		product := &domain.Product{ID: "P5", Brand: "Aurora", Category: "skincare", AvgPrice: 480}
		rec := domain.Recommendation{ProductID: "P5", ConfidenceScore: 90, Source: domain.SourceMLModel}

		used := map[string]bool{}
		first := g.GenerateReason(testHistory(), rec, product, used)
		second := g.GenerateReason(testHistory(), rec, product, used)
		if first == second {
			t.Errorf("expected distinct reasons, got %q twice", first)
		}
	})

	t.Run("FallbackWhenExhausted", func(t *testing.T) {
		product := &domain.Product{ID: "P6", Brand: "X", Category: "misc", AvgPrice: 9999}
		rec := domain.Recommendation{ProductID: "P6", ConfidenceScore: 10, Source: domain.SourceMLModel}

		used := map[string]bool{}
		_ = g.GenerateReason(nil, rec, product, used)
		reason := g.GenerateReason(nil, rec, product, used)
		if reason != FallbackReason {
			t.Errorf("expected fallback, got %q", reason)
		}

		// Fallback itself is reusable.
		again := g.GenerateReason(nil, rec, product, used)
		if again != FallbackReason {
			t.Errorf("expected fallback again, got %q", again)
		}
	})

	t.Run("NilHistoryAndProduct", func(t *testing.T) {
		rec := domain.Recommendation{ProductID: "P7", ConfidenceScore: 85, Source: domain.SourcePopularity}
		reason := g.GenerateReason(nil, rec, nil, map[string]bool{})
		if reason == "" {
			t.Error("expected a reason even without history")
		}
	})
}
