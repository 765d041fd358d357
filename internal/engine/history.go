package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/opensource-retail/harrier/internal/domain"
)

// historyTTL bounds how long a derived history snapshot stays cached.
// The key embeds the purchase count, so a member's new purchase rolls
// the key over immediately.
const historyTTL = 10 * time.Minute

func historyKey(member *domain.MemberInfo) string {
	return fmt.Sprintf("%s_%d", member.MemberCode, len(member.RecentPurchases))
}

// memberHistory returns the derived history for a member, consulting
// the cache first. Cache failures fall through to a fresh build.
func (e *Engine) memberHistory(ctx context.Context, member *domain.MemberInfo) *domain.MemberHistory {
	key := historyKey(member)
	if e.cache != nil {
		if h, err := e.cache.GetMemberHistory(ctx, key); err == nil && h != nil {
			return h
		}
	}

	h := buildHistory(member, e.features.Products())
	if e.cache != nil {
		_ = e.cache.SetMemberHistory(ctx, key, h, historyTTL)
	}
	return h
}

// buildHistory derives category, brand and price aggregates from the
// member's recent purchases joined against the product snapshot.
// Purchases missing from the snapshot contribute nothing.
func buildHistory(member *domain.MemberInfo, products map[string]*domain.Product) *domain.MemberHistory {
	h := &domain.MemberHistory{
		MemberCode:        member.MemberCode,
		PurchasedProducts: append([]string(nil), member.RecentPurchases...),
	}

	seenCategory := make(map[string]bool)
	seenBrand := make(map[string]bool)
	var prices []float64

	for _, id := range member.RecentPurchases {
		p, ok := products[id]
		if !ok {
			continue
		}
		if p.Category != "" && !seenCategory[p.Category] {
			seenCategory[p.Category] = true
			h.PurchasedCategories = append(h.PurchasedCategories, p.Category)
		}
		if brand := productBrand(p); brand != "" && !seenBrand[brand] {
			seenBrand[brand] = true
			h.PurchasedBrands = append(h.PurchasedBrands, brand)
		}
		if p.AvgPrice > 0 {
			prices = append(prices, p.AvgPrice)
		}
	}

	if len(prices) > 0 {
		var sum float64
		for _, v := range prices {
			sum += v
		}
		avg := sum / float64(len(prices))
		h.AvgPurchasePrice = avg

		var variance float64
		for _, v := range prices {
			variance += (v - avg) * (v - avg)
		}
		h.PriceStd = math.Sqrt(variance / float64(len(prices)))
	}

	return h
}

// productBrand is the explicit brand field, or the first token of the
// description when no brand is recorded.
func productBrand(p *domain.Product) string {
	if p.Brand != "" {
		return p.Brand
	}
	fields := strings.Fields(p.Description)
	if len(fields) > 0 {
		return fields[0]
	}
	return ""
}
