package domain

import (
	"context"
)

// Product is one row of the product feature snapshot.
type Product struct {
	ID              string  `json:"id"`
	Description     string  `json:"description"`
	Category        string  `json:"category,omitempty"`
	Brand           string  `json:"brand,omitempty"`
	AvgPrice        float64 `json:"avgPrice"`
	PopularityScore float64 `json:"popularityScore"`
}

// MemberFeatures is one row of the member feature snapshot. Produced by
// the offline pipeline; consumed read-only.
type MemberFeatures struct {
	MemberCode       string  `json:"memberCode"`
	TotalConsumption float64 `json:"totalConsumption"`
	AccumulatedBonus float64 `json:"accumulatedBonus"`
	Recency          int     `json:"recency"`   // days since last purchase
	Frequency        int     `json:"frequency"` // order count
	Monetary         float64 `json:"monetary"`  // average order value
}

// FeatureStore exposes the two read-only feature snapshots. A store that
// cannot produce a product snapshot must fail at construction, not per
// request.
type FeatureStore interface {
	// MemberFeatures returns the feature row for a member, or false if
	// the member is not in the snapshot.
	MemberFeatures(memberCode string) (*MemberFeatures, bool)

	// Product returns the feature row for a product, or false if absent.
	Product(productID string) (*Product, bool)

	// Products returns the full product snapshot keyed by product id.
	// The returned map must be treated as read-only.
	Products() map[string]*Product

	// ProductIDs returns all product ids in the snapshot.
	ProductIDs() []string

	// MemberCount and ProductCount report snapshot sizes.
	MemberCount() int
	ProductCount() int

	// Version identifies the loaded snapshot.
	Version() string

	// Lifecycle
	Close() error
}

// ScoredProduct is one (product, raw score) pair from a Scorer.
type ScoredProduct struct {
	ProductID string  `json:"productId"`
	Score     float64 `json:"score"`
}

// Scorer is a trained model artifact. Score is deterministic for
// identical inputs and model version, and returns candidates ordered by
// descending raw score.
type Scorer interface {
	Score(ctx context.Context, memberCode string, productIDs []string) ([]ScoredProduct, error)

	// Version identifies the trained artifact.
	Version() string

	// Ping checks the artifact is loadable independent of a request.
	Ping(ctx context.Context) error
}
