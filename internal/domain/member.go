// Package domain defines the core interfaces and types for Harrier.
package domain

// MemberInfo is the per-request view of a member. Immutable once a
// request enters the pipeline.
type MemberInfo struct {
	MemberCode       string   `json:"memberCode"`
	Phone            string   `json:"phone,omitempty"`
	TotalConsumption float64  `json:"totalConsumption"`
	AccumulatedBonus float64  `json:"accumulatedBonus"`
	RecentPurchases  []string `json:"recentPurchases,omitempty"`
}

// MemberHistory is derived from MemberInfo plus the product feature
// snapshot. Built once per distinct (member, purchase-set) and cached.
type MemberHistory struct {
	MemberCode          string   `json:"memberCode"`
	PurchasedProducts   []string `json:"purchasedProducts"`
	PurchasedCategories []string `json:"purchasedCategories"`
	PurchasedBrands     []string `json:"purchasedBrands"`
	AvgPurchasePrice    float64  `json:"avgPurchasePrice"`
	PriceStd            float64  `json:"priceStd"`
	BrowsedProducts     []string `json:"browsedProducts"`
}

// HasPurchaseHistory reports whether any category or brand history exists.
func (h *MemberHistory) HasPurchaseHistory() bool {
	return len(h.PurchasedCategories) > 0 || len(h.PurchasedBrands) > 0
}
