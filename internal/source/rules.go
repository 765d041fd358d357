package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-retail/harrier/internal/domain"
)

// BoostRule is a CEL predicate over member and product features. When
// it evaluates to true, the product becomes a rule_based candidate with
// the rule's confidence.
type BoostRule struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Expression  string  `json:"expression"`
	Confidence  float64 `json:"confidence"` // 0-100
}

type compiledBoost struct {
	rule    BoostRule
	program cel.Program
}

// RuleSource generates candidates from merchandising boost rules.
type RuleSource struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiled      []compiledBoost
	features      domain.FeatureStore
	candidatePool int
}

// NewRuleSource compiles the boost rules and returns the source. A rule
// that does not compile, or whose expression is not boolean, fails
// construction.
func NewRuleSource(features domain.FeatureStore, rules []BoostRule, candidatePool int) (*RuleSource, error) {
	if candidatePool <= 0 {
		candidatePool = 100
	}

	env, err := cel.NewEnv(
		cel.Variable("member_code", cel.StringType),
		cel.Variable("total_consumption", cel.DoubleType),
		cel.Variable("accumulated_bonus", cel.DoubleType),
		cel.Variable("purchased_categories", cel.ListType(cel.StringType)),
		cel.Variable("purchased_brands", cel.ListType(cel.StringType)),
		cel.Variable("avg_purchase_price", cel.DoubleType),
		cel.Variable("product_id", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("brand", cel.StringType),
		cel.Variable("avg_price", cel.DoubleType),
		cel.Variable("popularity", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	s := &RuleSource{
		env:           env,
		features:      features,
		candidatePool: candidatePool,
	}

	for _, rule := range rules {
		compiled, err := s.compile(rule)
		if err != nil {
			return nil, err
		}
		s.compiled = append(s.compiled, compiled)
	}

	return s, nil
}

func (s *RuleSource) compile(rule BoostRule) (compiledBoost, error) {
	ast, issues := s.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return compiledBoost{}, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return compiledBoost{}, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := s.env.Program(ast)
	if err != nil {
		return compiledBoost{}, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return compiledBoost{rule: rule, program: program}, nil
}

// ReloadRules replaces the loaded rule set atomically.
func (s *RuleSource) ReloadRules(rules []BoostRule) error {
	compiled := make([]compiledBoost, 0, len(rules))
	for _, rule := range rules {
		c, err := s.compile(rule)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}

	s.mu.Lock()
	s.compiled = compiled
	s.mu.Unlock()
	return nil
}

// RulesCount returns the number of loaded rules.
func (s *RuleSource) RulesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.compiled)
}

func (s *RuleSource) Name() domain.RecommendationSource {
	return domain.SourceRuleBased
}

// Generate evaluates every rule against every candidate product. A
// product matched by several rules keeps the highest confidence.
func (s *RuleSource) Generate(ctx context.Context, member *domain.MemberInfo, history *domain.MemberHistory, n int) ([]domain.Recommendation, error) {
	s.mu.RLock()
	compiled := s.compiled
	s.mu.RUnlock()

	if len(compiled) == 0 {
		return nil, nil
	}

	memberVars := map[string]any{
		"member_code":          member.MemberCode,
		"total_consumption":    member.TotalConsumption,
		"accumulated_bonus":    member.AccumulatedBonus,
		"purchased_categories": []string{},
		"purchased_brands":     []string{},
		"avg_purchase_price":   0.0,
	}
	if history != nil {
		memberVars["purchased_categories"] = history.PurchasedCategories
		memberVars["purchased_brands"] = history.PurchasedBrands
		memberVars["avg_purchase_price"] = history.AvgPurchasePrice
	}

	matched := make(map[string]float64)
	for _, id := range candidateIDs(s.features, history, s.candidatePool) {
		product, ok := s.features.Product(id)
		if !ok {
			continue
		}

		activation := map[string]any{
			"product_id": product.ID,
			"category":   product.Category,
			"brand":      product.Brand,
			"avg_price":  product.AvgPrice,
			"popularity": product.PopularityScore,
		}
		for k, v := range memberVars {
			activation[k] = v
		}

		for _, c := range compiled {
			out, _, err := c.program.Eval(activation)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", c.rule.ID, err)
			}
			if out == types.True && c.rule.Confidence > matched[id] {
				matched[id] = c.rule.Confidence
			}
		}
	}

	recs := make([]domain.Recommendation, 0, len(matched))
	for id, confidence := range matched {
		recs = append(recs, domain.Recommendation{
			ProductID:       id,
			ProductName:     productName(s.features, id),
			ConfidenceScore: clampScore(confidence),
			Source:          domain.SourceRuleBased,
			RawScore:        confidence / 100,
		})
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].ConfidenceScore != recs[j].ConfidenceScore {
			return recs[i].ConfidenceScore > recs[j].ConfidenceScore
		}
		return recs[i].ProductID < recs[j].ProductID
	})

	if n < len(recs) {
		recs = recs[:n]
	}
	return recs, nil
}

// DefaultBoostRules returns the stock merchandising rules.
func DefaultBoostRules() []BoostRule {
	return []BoostRule{
		{
			ID:          "brand-affinity",
			Description: "boost products from brands the member already buys",
			Expression:  `brand != "" && brand in purchased_brands`,
			Confidence:  75,
		},
		{
			ID:          "premium-member-premium-product",
			Description: "boost premium products for high spenders",
			Expression:  `total_consumption > 10000.0 && avg_price > avg_purchase_price`,
			Confidence:  65,
		},
		{
			ID:          "popular-in-known-category",
			Description: "boost popular products in categories the member buys",
			Expression:  `popularity > 70.0 && category in purchased_categories`,
			Confidence:  70,
		},
	}
}
