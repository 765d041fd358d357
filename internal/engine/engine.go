// Package engine orchestrates the recommendation pipeline: candidate
// generation, merging, explanation, quality evaluation, and the
// degradation fallback.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-retail/harrier/internal/degrade"
	"github.com/opensource-retail/harrier/internal/domain"
	"github.com/opensource-retail/harrier/internal/evaluator"
	"github.com/opensource-retail/harrier/internal/explain"
	"github.com/opensource-retail/harrier/internal/source"
	"github.com/opensource-retail/harrier/internal/tracker"
)

var tracer = otel.Tracer("harrier-engine")

// Single-source strategies over-fetch so that dedup and ranking still
// fill the list.
const singleSourceOverFetch = 3

// Engine is the recommendation orchestrator. A request always gets a
// response; when the pipeline fails the response carries the fallback
// list (possibly empty) marked as degraded.
type Engine struct {
	cfg      domain.EngineConfig
	features domain.FeatureStore
	cache    domain.Cache
	scorer   domain.Scorer
	strategy *degrade.Strategy
	sources  map[domain.RecommendationSource]source.Source

	tracker   *tracker.Tracker
	evaluator *evaluator.Evaluator
	explainer *explain.Generator
}

// New wires the pipeline together. The sources slice determines which
// generators are available; weights in cfg decide how hybrid requests
// are split across them.
func New(
	cfg domain.EngineConfig,
	features domain.FeatureStore,
	cache domain.Cache,
	scorer domain.Scorer,
	strategy *degrade.Strategy,
	sources []source.Source,
) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.SourceTimeoutMs <= 0 {
		cfg.SourceTimeoutMs = 800
	}

	byName := make(map[domain.RecommendationSource]source.Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}

	return &Engine{
		cfg:       cfg,
		features:  features,
		cache:     cache,
		scorer:    scorer,
		strategy:  strategy,
		sources:   byName,
		tracker:   tracker.New(cfg.SlowQueryThresholdMs),
		evaluator: evaluator.New(),
		explainer: explain.New(),
	}
}

// Recommend runs the full pipeline for one request. It never returns
// nil and never panics out.
func (e *Engine) Recommend(ctx context.Context, req *domain.RecommendationRequest) (resp *domain.RecommendationResponse) {
	requestID := uuid.New().String()
	member := &req.Member

	n := req.N
	if n <= 0 {
		n = e.cfg.TopK
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = domain.StrategyHybrid
	}

	ctx, span := tracer.Start(ctx, "engine.recommend")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("member.code", member.MemberCode),
		attribute.String("strategy", string(strategy)),
		attribute.Int("n", n),
	)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("recommendation pipeline panic",
				"request_id", requestID,
				"member_code", member.MemberCode,
				"panic", r,
			)
			// Release the tracking entry with whatever stages completed.
			metrics, err := e.tracker.EndTracking(requestID)
			if err != nil {
				metrics = &domain.PerformanceMetrics{RequestID: requestID, Timestamp: time.Now().UTC()}
			}
			resp = e.fallbackResponse(requestID, member, metrics)
		}
	}()

	if err := e.tracker.StartTracking(requestID); err != nil {
		slog.Warn("performance tracking unavailable", "request_id", requestID, "error", err)
	}

	history := e.memberHistory(ctx, member)
	_ = e.tracker.TrackStage(requestID, domain.StageFeatureLoading)

	candidates := e.generate(ctx, strategy, member, history, n)
	_ = e.tracker.TrackStage(requestID, domain.StageModelInference)

	recs := mergeCandidates(candidates, n)
	_ = e.tracker.TrackStage(requestID, domain.StageMerging)

	e.explainAll(recs, history)
	_ = e.tracker.TrackStage(requestID, domain.StageReasonGeneration)

	products := e.features.Products()
	score := e.evaluator.Evaluate(recs, member, history, products)
	_ = e.tracker.TrackStage(requestID, domain.StageQualityEvaluation)

	metrics, err := e.tracker.EndTracking(requestID)
	if err != nil {
		metrics = &domain.PerformanceMetrics{RequestID: requestID, Timestamp: time.Now().UTC()}
	}

	isDegraded := false
	strategyUsed := strategy
	if len(recs) == 0 || e.strategy.ShouldDegrade(score, metrics) {
		recs = e.strategy.ExecuteDegradation(member, n)
		score = e.evaluator.Evaluate(recs, member, history, products)
		strategyUsed = domain.StrategyDegraded
		isDegraded = true
		span.SetAttributes(attribute.Bool("degraded", true))
	}

	slog.Info("recommendation served",
		"request_id", requestID,
		"member_code", member.MemberCode,
		"strategy", strategyUsed,
		"count", len(recs),
		"overall_score", score.OverallScore,
		"total_time_ms", metrics.TotalTimeMs,
		"degraded", isDegraded,
	)

	return &domain.RecommendationResponse{
		RequestID:           requestID,
		MemberCode:          member.MemberCode,
		Recommendations:     recs,
		ReferenceValueScore: score,
		PerformanceMetrics:  metrics,
		TotalCount:          len(recs),
		StrategyUsed:        strategyUsed,
		ModelVersion:        e.modelVersion(),
		QualityLevel:        domain.QualityLevelFor(score.OverallScore),
		IsDegraded:          isDegraded,
		Timestamp:           time.Now().UTC(),
	}
}

// generate fans out to the candidate sources for the strategy. A source
// that fails or times out is skipped; the merge step works with what
// arrived.
func (e *Engine) generate(ctx context.Context, strategy domain.Strategy, member *domain.MemberInfo, history *domain.MemberHistory, n int) [][]domain.Recommendation {
	type quota struct {
		src   source.Source
		count int
	}

	var quotas []quota
	switch strategy {
	case domain.StrategyMLOnly:
		if s, ok := e.sources[domain.SourceMLModel]; ok {
			quotas = append(quotas, quota{s, n * singleSourceOverFetch})
		}
	case domain.StrategyCFOnly:
		if s, ok := e.sources[domain.SourceCollaborative]; ok {
			quotas = append(quotas, quota{s, n * singleSourceOverFetch})
		}
	default: // hybrid
		for name, weight := range e.cfg.SourceWeights {
			s, ok := e.sources[name]
			if !ok {
				continue
			}
			count := hybridQuota(n, weight)
			if count <= 0 {
				continue
			}
			quotas = append(quotas, quota{s, count})
		}
	}

	timeout := time.Duration(e.cfg.SourceTimeoutMs) * time.Millisecond
	results := make([][]domain.Recommendation, len(quotas))

	type generated struct {
		idx  int
		recs []domain.Recommendation
	}
	done := make(chan generated, len(quotas))

	for i, q := range quotas {
		go func(idx int, q quota) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("candidate source panic",
						"source", q.src.Name(),
						"member_code", member.MemberCode,
						"panic", r,
					)
					done <- generated{idx, nil}
				}
			}()

			srcCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			recs, err := q.src.Generate(srcCtx, member, history, q.count)
			if err != nil {
				slog.Warn("candidate source failed",
					"source", q.src.Name(),
					"member_code", member.MemberCode,
					"error", err,
				)
				recs = nil
			}
			done <- generated{idx, recs}
		}(i, q)
	}

	for range quotas {
		g := <-done
		results[g.idx] = g.recs
	}
	return results
}

// hybridQuota is a source's integer share of n under its weight. A
// share below one product means the source sits out the request.
func hybridQuota(n int, weight float64) int {
	return int(math.Floor(float64(n) * weight))
}

// mergeCandidates dedups by product id keeping the higher confidence,
// sorts by confidence descending, truncates to n, and reranks 1..n.
func mergeCandidates(candidates [][]domain.Recommendation, n int) []domain.Recommendation {
	best := make(map[string]domain.Recommendation)
	for _, list := range candidates {
		for _, rec := range list {
			if cur, ok := best[rec.ProductID]; !ok || rec.ConfidenceScore > cur.ConfidenceScore {
				best[rec.ProductID] = rec
			}
		}
	}

	merged := make([]domain.Recommendation, 0, len(best))
	for _, rec := range best {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].ConfidenceScore != merged[j].ConfidenceScore {
			return merged[i].ConfidenceScore > merged[j].ConfidenceScore
		}
		return merged[i].ProductID < merged[j].ProductID
	})

	if n < len(merged) {
		merged = merged[:n]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged
}

// explainAll fills in a reason for every recommendation, avoiding
// duplicate reasons within the response.
func (e *Engine) explainAll(recs []domain.Recommendation, history *domain.MemberHistory) {
	used := make(map[string]bool)
	for i := range recs {
		product, _ := e.features.Product(recs[i].ProductID)
		recs[i].Explanation = e.explainer.GenerateReason(history, recs[i], product, used)
	}
}

// fallbackResponse is the terminal safety net for pipeline failures:
// an empty, zero-scored response marked degraded.
func (e *Engine) fallbackResponse(requestID string, member *domain.MemberInfo, metrics *domain.PerformanceMetrics) *domain.RecommendationResponse {
	score := domain.ZeroScore()

	return &domain.RecommendationResponse{
		RequestID:           requestID,
		MemberCode:          member.MemberCode,
		Recommendations:     []domain.Recommendation{},
		ReferenceValueScore: score,
		PerformanceMetrics:  metrics,
		TotalCount:          0,
		StrategyUsed:        domain.StrategyDegraded,
		ModelVersion:        e.modelVersion(),
		QualityLevel:        domain.QualityLevelFor(score.OverallScore),
		IsDegraded:          true,
		Timestamp:           time.Now().UTC(),
	}
}

func (e *Engine) modelVersion() string {
	if e.scorer != nil {
		return e.scorer.Version()
	}
	return "none"
}

// ModelInfo describes the deployed artifacts and pipeline layout.
type ModelInfo struct {
	ModelVersion    string                                  `json:"modelVersion"`
	SnapshotVersion string                                  `json:"snapshotVersion"`
	MemberCount     int                                     `json:"memberCount"`
	ProductCount    int                                     `json:"productCount"`
	Sources         []string                                `json:"sources"`
	SourceWeights   map[domain.RecommendationSource]float64 `json:"sourceWeights"`
	TopK            int                                     `json:"topK"`
}

// GetModelInfo reports the deployed model and snapshot metadata.
func (e *Engine) GetModelInfo() ModelInfo {
	names := make([]string, 0, len(e.sources))
	for name := range e.sources {
		names = append(names, string(name))
	}
	sort.Strings(names)

	return ModelInfo{
		ModelVersion:    e.modelVersion(),
		SnapshotVersion: e.features.Version(),
		MemberCount:     e.features.MemberCount(),
		ProductCount:    e.features.ProductCount(),
		Sources:         names,
		SourceWeights:   e.cfg.SourceWeights,
		TopK:            e.cfg.TopK,
	}
}

// Ready reports whether the product snapshot is loaded and the engine
// can serve recommendations.
func (e *Engine) Ready() bool {
	return e.features != nil && e.features.ProductCount() > 0
}

// HealthCheck reports per-component health. The map always contains
// every checked component; values are "ok" or the failure text.
func (e *Engine) HealthCheck(ctx context.Context) map[string]string {
	health := make(map[string]string)

	if e.features.ProductCount() > 0 {
		health["feature_store"] = "ok"
	} else {
		health["feature_store"] = "empty product snapshot"
	}

	if e.cache != nil {
		if err := e.cache.Ping(ctx); err != nil {
			health["cache"] = err.Error()
		} else {
			health["cache"] = "ok"
		}
	}

	if e.scorer != nil {
		if err := e.scorer.Ping(ctx); err != nil {
			health["model"] = err.Error()
		} else {
			health["model"] = "ok"
		}
	}

	return health
}

// Statistics aggregates tracked request timings over the window.
func (e *Engine) Statistics(window time.Duration) *domain.PerformanceStats {
	return e.tracker.GetStatistics(window)
}

// Thresholds returns the current degradation thresholds.
func (e *Engine) Thresholds() degrade.Thresholds {
	return e.strategy.GetThresholds()
}

// UpdateThresholds applies a partial degradation threshold update.
func (e *Engine) UpdateThresholds(minQualityScore, maxResponseTimeMs *float64) {
	e.strategy.UpdateThresholds(minQualityScore, maxResponseTimeMs)
}
