package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opensource-retail/harrier/internal/domain"
	"github.com/opensource-retail/harrier/internal/engine"
	"github.com/opensource-retail/harrier/internal/monitor"
)

// maxRecommendations caps the per-request list size.
const maxRecommendations = 100

// Handler holds dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	monitor *monitor.Monitor
	bus     domain.EventBus
	version string
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, mon *monitor.Monitor, bus domain.EventBus, version string) *Handler {
	return &Handler{
		engine:  eng,
		monitor: mon,
		bus:     bus,
		version: version,
	}
}

// Recommend handles POST /api/v1/recommendations.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Member.MemberCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "member.memberCode is required",
		})
		return
	}
	if req.N < 0 || req.N > maxRecommendations {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "n must be between 0 and 100",
		})
		return
	}
	if req.Strategy != "" && !req.Strategy.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "strategy must be hybrid, ml_only or cf_only",
		})
		return
	}

	resp := h.engine.Recommend(ctx, &req)

	h.publishCompleted(resp)

	writeJSON(w, http.StatusOK, resp)
}

// publishCompleted emits the completion event consumed by the monitoring
// worker. Failures are logged and never affect the response.
func (h *Handler) publishCompleted(resp *domain.RecommendationResponse) {
	if h.bus == nil {
		return
	}

	event := domain.RecommendationCompleted{
		RequestID:           resp.RequestID,
		MemberCode:          resp.MemberCode,
		Score:               resp.ReferenceValueScore,
		Metrics:             resp.PerformanceMetrics,
		RecommendationCount: resp.TotalCount,
		StrategyUsed:        resp.StrategyUsed,
		IsDegraded:          resp.IsDegraded,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal completion event",
			"request_id", resp.RequestID,
			"error", err,
		)
		return
	}

	// Detached context: the HTTP request may already be done.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := h.bus.Publish(ctx, domain.TopicRecommendationCompleted, payload); err != nil {
		slog.Error("failed to publish completion event",
			"request_id", resp.RequestID,
			"error", err,
		)
	}
}

// ModelInfo handles GET /api/v1/models/info.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.GetModelInfo())
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components := h.engine.HealthCheck(r.Context())

	status := "healthy"
	for _, state := range components {
		if state != "ok" {
			status = "degraded"
			break
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			components["event_bus"] = err.Error()
			status = "degraded"
		} else {
			components["event_bus"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    h.version,
		"components": components,
	})
}

// Ready returns whether the server is ready to accept traffic. The
// server is not ready until the product snapshot is loaded.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Statistics handles GET /api/v1/monitoring/statistics.
// The optional window query parameter accepts a Go duration string;
// omitted or zero means all tracked requests.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.engine.Statistics(window))
}

// Records handles GET /api/v1/monitoring/records. Optional query
// parameters: window (Go duration), memberCode, limit.
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	memberCode := r.URL.Query().Get("memberCode")

	records := h.monitor.GetRecords(window, memberCode, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// Alerts handles GET /api/v1/monitoring/alerts. Optional query
// parameters: window (Go duration), level, limit.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	level := domain.AlertLevel(r.URL.Query().Get("level"))
	switch level {
	case "", domain.AlertInfo, domain.AlertWarning, domain.AlertCritical:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "level must be info, warning or critical",
		})
		return
	}

	alerts := h.monitor.GetAlerts(window, level, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// HourlyReport handles GET /api/v1/monitoring/reports/hourly.
func (h *Handler) HourlyReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.GenerateHourlyReport())
}

// DailyReport handles GET /api/v1/monitoring/reports/daily.
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.GenerateDailyReport())
}

// GetThresholds handles GET /api/v1/degradation/thresholds.
func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Thresholds())
}

// UpdateThresholdsRequest is the body for PUT /api/v1/degradation/thresholds.
// Omitted fields keep their current value.
type UpdateThresholdsRequest struct {
	MinQualityScore   *float64 `json:"minQualityScore,omitempty"`
	MaxResponseTimeMs *float64 `json:"maxResponseTimeMs,omitempty"`
}

// UpdateThresholds handles PUT /api/v1/degradation/thresholds.
func (h *Handler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var req UpdateThresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.MinQualityScore == nil && req.MaxResponseTimeMs == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one of minQualityScore or maxResponseTimeMs is required",
		})
		return
	}
	if req.MinQualityScore != nil && (*req.MinQualityScore < 0 || *req.MinQualityScore > 100) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "minQualityScore must be between 0 and 100",
		})
		return
	}
	if req.MaxResponseTimeMs != nil && *req.MaxResponseTimeMs <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "maxResponseTimeMs must be positive",
		})
		return
	}

	h.engine.UpdateThresholds(req.MinQualityScore, req.MaxResponseTimeMs)

	slog.Info("degradation thresholds updated",
		"thresholds", h.engine.Thresholds(),
	)
	writeJSON(w, http.StatusOK, h.engine.Thresholds())
}

// parseWindow reads the optional window query parameter as a Go
// duration. A missing or empty value means all history. Returns false
// after writing an error.
func parseWindow(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return 0, true
	}
	window, err := time.ParseDuration(raw)
	if err != nil || window < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "window must be a positive duration such as 5m or 1h",
		})
		return 0, false
	}
	return window, true
}

// parseLimit reads the optional limit query parameter. A missing or
// empty value means no limit. Returns false after writing an error.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "limit must be a non-negative integer",
		})
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
