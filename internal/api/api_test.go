package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opensource-retail/harrier/internal/bus"
	"github.com/opensource-retail/harrier/internal/degrade"
	"github.com/opensource-retail/harrier/internal/domain"
	"github.com/opensource-retail/harrier/internal/engine"
	"github.com/opensource-retail/harrier/internal/featurestore"
	"github.com/opensource-retail/harrier/internal/monitor"
	"github.com/opensource-retail/harrier/internal/source"
	"github.com/opensource-retail/harrier/internal/worker"
)

type testEnv struct {
	server  *Server
	monitor *monitor.Monitor
	worker  *worker.Worker
}

// createTestServer wires a full pipeline against a static feature
// snapshot, with the monitoring worker attached to a channel bus.
func createTestServer(t *testing.T) *testEnv {
	t.Helper()

	store := featurestore.NewStatic("snapshot-test",
		map[string]*domain.MemberFeatures{
			"CU000001": {MemberCode: "CU000001", TotalConsumption: 17400},
		},
		map[string]*domain.Product{
			"P1": {ID: "P1", Description: "Aurora vitamin C serum", Brand: "Aurora", Category: "skincare", AvgPrice: 450, PopularityScore: 95},
			"P2": {ID: "P2", Description: "Borealis collagen drink", Brand: "Borealis", Category: "health", AvgPrice: 800, PopularityScore: 80},
			"P3": {ID: "P3", Description: "Cascade herbal tea", Brand: "Cascade", Category: "beverage", AvgPrice: 120, PopularityScore: 70},
			"P4": {ID: "P4", Description: "Aurora night cream", Brand: "Aurora", Category: "skincare", AvgPrice: 520, PopularityScore: 60},
			"P5": {ID: "P5", Description: "Derma facial mask", Brand: "Derma", Category: "skincare", AvgPrice: 300, PopularityScore: 50},
			"P6": {ID: "P6", Description: "Lumen velvet lipstick", Brand: "Lumen", Category: "cosmetics", AvgPrice: 200, PopularityScore: 40},
			"P7": {ID: "P7", Description: "Borealis iron tablets", Brand: "Borealis", Category: "health", AvgPrice: 600, PopularityScore: 30},
		})

	scorer := source.NewBaselineScorer(store)
	cfg := domain.DefaultConfig()

	eng := engine.New(cfg.Engine, store, nil, scorer,
		degrade.New(store, cfg.Degradation),
		[]source.Source{
			source.NewMLSource(scorer, store, cfg.Engine.CandidatePool),
			source.NewPopularitySource(store),
			source.NewDiversitySource(store),
		})

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	mon := monitor.New()
	w := worker.NewWorker(eventBus, mon)
	if err := w.Start(); err != nil {
		t.Fatalf("worker start failed: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	return &testEnv{
		server:  NewServer(cfg.Server, eng, mon, eventBus, "test-v1"),
		monitor: mon,
		worker:  w,
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRecommendEndpoint(t *testing.T) {
	env := createTestServer(t)
	router := env.server.Router()

	t.Run("SuccessfulRecommendation", func(t *testing.T) {
		rr := postJSON(t, router, "/api/v1/recommendations", domain.RecommendationRequest{
			Member: domain.MemberInfo{
				MemberCode:       "CU000001",
				TotalConsumption: 17400,
				RecentPurchases:  []string{"P1", "P2"},
			},
			N:        5,
			Strategy: domain.StrategyHybrid,
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.RecommendationResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.RequestID == "" {
			t.Error("expected requestId in response")
		}
		if resp.MemberCode != "CU000001" {
			t.Errorf("expected member CU000001, got %s", resp.MemberCode)
		}
		if len(resp.Recommendations) != 5 {
			t.Errorf("expected 5 recommendations, got %d", len(resp.Recommendations))
		}
		if resp.ReferenceValueScore == nil {
			t.Error("expected a reference value score")
		}
		if rr.Header().Get(RequestIDHeader) == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("CompletionEventReachesMonitor", func(t *testing.T) {
		before := env.monitor.RecordCount()

		rr := postJSON(t, router, "/api/v1/recommendations", domain.RecommendationRequest{
			Member: domain.MemberInfo{MemberCode: "CU000001"},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if env.monitor.RecordCount() > before {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Error("completion event never reached the monitor")
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", bytes.NewBufferString("not-json"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingMemberCode", func(t *testing.T) {
		rr := postJSON(t, router, "/api/v1/recommendations", domain.RecommendationRequest{N: 5})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidStrategy", func(t *testing.T) {
		rr := postJSON(t, router, "/api/v1/recommendations", map[string]any{
			"member":   map[string]any{"memberCode": "CU000001"},
			"strategy": "quantum",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NTooLarge", func(t *testing.T) {
		rr := postJSON(t, router, "/api/v1/recommendations", domain.RecommendationRequest{
			Member: domain.MemberInfo{MemberCode: "CU000001"},
			N:      500,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownMemberStillServed", func(t *testing.T) {
		rr := postJSON(t, router, "/api/v1/recommendations", domain.RecommendationRequest{
			Member: domain.MemberInfo{MemberCode: "CU999999"},
			N:      3,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp domain.RecommendationResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.Recommendations) == 0 {
			t.Error("expected recommendations for unknown member")
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := createTestServer(t)
	router := env.server.Router()

	t.Run("Health", func(t *testing.T) {
		rr := get(t, router, "/health")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Status     string            `json:"status"`
			Version    string            `json:"version"`
			Components map[string]string `json:"components"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Status != "healthy" {
			t.Errorf("expected healthy, got %s", resp.Status)
		}
		if resp.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Version)
		}
		if resp.Components["event_bus"] != "ok" {
			t.Errorf("expected event_bus ok, got %q", resp.Components["event_bus"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		rr := get(t, router, "/ready")
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("NotReadyWithoutSnapshot", func(t *testing.T) {
		store := featurestore.NewStatic("empty", nil, nil)
		cfg := domain.DefaultConfig()
		eng := engine.New(cfg.Engine, store, nil, nil, degrade.New(store, cfg.Degradation), nil)
		srv := NewServer(cfg.Server, eng, monitor.New(), nil, "test-v1")

		rr := get(t, srv.Router(), "/ready")
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})
}

func TestModelInfoEndpoint(t *testing.T) {
	env := createTestServer(t)

	rr := get(t, env.server.Router(), "/api/v1/models/info")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var info engine.ModelInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if info.ModelVersion != "baseline-v1" {
		t.Errorf("expected baseline-v1, got %s", info.ModelVersion)
	}
	if info.SnapshotVersion != "snapshot-test" {
		t.Errorf("expected snapshot-test, got %s", info.SnapshotVersion)
	}
	if info.ProductCount != 7 {
		t.Errorf("expected 7 products, got %d", info.ProductCount)
	}
}

func TestMonitoringEndpoints(t *testing.T) {
	env := createTestServer(t)
	router := env.server.Router()

	// Seed one served request and wait for the worker to record it.
	rr := postJSON(t, router, "/api/v1/recommendations", domain.RecommendationRequest{
		Member: domain.MemberInfo{MemberCode: "CU000001", RecentPurchases: []string{"P1"}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("seed request failed: %d", rr.Code)
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && env.monitor.RecordCount() == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	t.Run("Statistics", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/statistics")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var stats domain.PerformanceStats
		if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if stats.TotalRequests < 1 {
			t.Errorf("expected at least 1 tracked request, got %d", stats.TotalRequests)
		}
	})

	t.Run("StatisticsBadWindow", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/statistics?window=soon")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Records", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/records?limit=10")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Records []domain.MonitoringRecord `json:"records"`
			Count   int                       `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count < 1 {
			t.Errorf("expected at least 1 record, got %d", resp.Count)
		}
	})

	t.Run("RecordsBadLimit", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/records?limit=-3")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("RecordsMemberFilter", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/records?memberCode=CU000001&window=1h")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Records []domain.MonitoringRecord `json:"records"`
			Count   int                       `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count < 1 {
			t.Errorf("expected the seeded member's record, got %d", resp.Count)
		}
		for _, r := range resp.Records {
			if r.MemberCode != "CU000001" {
				t.Errorf("unexpected member %s in filtered records", r.MemberCode)
			}
		}

		rr = get(t, router, "/api/v1/monitoring/records?memberCode=CU-nobody")
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 0 {
			t.Errorf("expected no records for unknown member, got %d", resp.Count)
		}
	})

	t.Run("RecordsBadWindow", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/records?window=soon")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Alerts", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/alerts")
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("AlertsLevelFilter", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/alerts?level=critical&window=1h")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Alerts []domain.Alert `json:"alerts"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		for _, a := range resp.Alerts {
			if a.Level != domain.AlertCritical {
				t.Errorf("unexpected level %s in filtered alerts", a.Level)
			}
		}
	})

	t.Run("AlertsBadLevel", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/alerts?level=shouting")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("HourlyReport", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/reports/hourly")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var report domain.MonitoringReport
		if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if report.ReportType != "hourly" {
			t.Errorf("expected hourly report, got %s", report.ReportType)
		}
	})

	t.Run("DailyReport", func(t *testing.T) {
		rr := get(t, router, "/api/v1/monitoring/reports/daily")
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestThresholdEndpoints(t *testing.T) {
	env := createTestServer(t)
	router := env.server.Router()

	t.Run("Get", func(t *testing.T) {
		rr := get(t, router, "/api/v1/degradation/thresholds")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var thresholds degrade.Thresholds
		if err := json.Unmarshal(rr.Body.Bytes(), &thresholds); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if thresholds.MinQualityScore != 40 || thresholds.MaxResponseTimeMs != 2000 {
			t.Errorf("unexpected defaults: %+v", thresholds)
		}
	})

	t.Run("PartialUpdate", func(t *testing.T) {
		raw := []byte(`{"minQualityScore": 55}`)
		req := httptest.NewRequest(http.MethodPut, "/api/v1/degradation/thresholds", bytes.NewBuffer(raw))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var thresholds degrade.Thresholds
		json.Unmarshal(rr.Body.Bytes(), &thresholds)
		if thresholds.MinQualityScore != 55 {
			t.Errorf("expected quality threshold 55, got %f", thresholds.MinQualityScore)
		}
		if thresholds.MaxResponseTimeMs != 2000 {
			t.Errorf("latency threshold should be untouched, got %f", thresholds.MaxResponseTimeMs)
		}
	})

	t.Run("EmptyUpdate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/degradation/thresholds", bytes.NewBufferString(`{}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("OutOfRange", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/degradation/thresholds", bytes.NewBufferString(`{"minQualityScore": 150}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}
