package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/Revenue-Intelligence/internal/testutil"
)

type routerFixture struct {
	router    http.Handler
	log       *testutil.MockLogger
	collector prometheus.MetricsCollector
}

func newRouterFixture(t *testing.T, mutate func(*RouterConfig)) routerFixture {
	t.Helper()
	log := testutil.NewMockLogger()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "revintel"}, nil)
	require.NoError(t, err)

	engine, err := recommendation.NewEngine(recommendation.DefaultSettings(), offer.MustDefaultCatalog())
	require.NoError(t, err)
	svc := recommendation.NewService(engine, log)

	cfg := RouterConfig{
		RecommendationHandler: handlers.NewRecommendationHandler(svc, log),
		CatalogHandler:        handlers.NewCatalogHandler(svc, log),
		HealthHandler:         handlers.NewHealthHandler("test"),
		Logger:                log,
		AppMetrics:            prometheus.NewAppMetrics(collector),
		MetricsCollector:      collector,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return routerFixture{router: NewRouter(cfg), log: log, collector: collector}
}

func (f routerFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Probes(t *testing.T) {
	f := newRouterFixture(t, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz/detail", "").Code)
	assert.Empty(t, f.log.MessagesAt("info"), "probes are not logged")
}

func TestNewRouter_CustomMetricsPathIsNotLogged(t *testing.T) {
	f := newRouterFixture(t, func(cfg *RouterConfig) { cfg.MetricsPath = "/internal/metrics" })

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/internal/metrics", "").Code)
	assert.Empty(t, f.log.MessagesAt("info"))

	f.do(http.MethodGet, "/api/v1/catalog/stats", "")
	assert.NotEmpty(t, f.log.MessagesAt("info"))
}

func TestNewRouter_CatalogRoutes(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/catalog/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats offer.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 8, stats.TotalProducts)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/catalog/products/THREE_SMART_VALUE", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/catalog/campaigns/STUDENT2024", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/catalog/products?category=data_plans", "").Code)
}

func TestNewRouter_RecommendEndToEnd(t *testing.T) {
	f := newRouterFixture(t, nil)

	body := `{"batch":{"customers":[
		{"record":{"customer_id":"CUST_001","customer_name":"Harbour Logistics","customer_type":"enterprise",
		 "monthly_spend":"1800","tenure_months":40,"data_usage_gb":60,"employee_count":250,
		 "urgency_indicators":["contract renewal"]}}
	]},"max_recommendations":3}`

	w := f.do(http.MethodPost, "/api/v1/recommendations", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		BatchID   string `json:"batch_id"`
		Processed int    `json:"processed"`
		Results   []struct {
			CustomerID string `json:"customer_id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BatchID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "CUST_001", resp.Results[0].CustomerID)

	w = f.do(http.MethodPost, "/api/v1/recommendations", `{"batch":{"customers":[]}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CUST_003")
}

func TestNewRouter_UnknownRoutesAnswerJSON(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/patents", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "COMMON_005")

	w = f.do(http.MethodDelete, "/api/v1/catalog/stats", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestNewRouter_SearchDisabledWithoutIndex(t *testing.T) {
	f := newRouterFixture(t, nil)
	assert.Equal(t, http.StatusNotImplemented, f.do(http.MethodGet, "/api/v1/recommendations/search", "").Code)
}

func TestNewRouter_NilHandlers_NoPanic(t *testing.T) {
	r := NewRouter(RouterConfig{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/stats", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.do(http.MethodGet, "/api/v1/catalog/stats", "")

	w := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `revintel_http_requests_total{method="GET",route="/api/v1/catalog/stats",status_code="200"} 1`)
}

func TestNewRouter_CustomMetricsPath(t *testing.T) {
	f := newRouterFixture(t, func(c *RouterConfig) { c.MetricsPath = "/internal/metrics" })
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/internal/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/metrics", "").Code)
}

func TestNewRouter_RateLimitSkipsProbes(t *testing.T) {
	limiter := middleware.NewTokenBucketLimiter(0.001, 1, 0)
	f := newRouterFixture(t, func(c *RouterConfig) { c.RateLimiter = limiter })

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/catalog/stats", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/api/v1/catalog/stats", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/metrics", "").Code)
}

func TestNewRouter_CORS(t *testing.T) {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = []string{"https://dash.example.com"}
	f := newRouterFixture(t, func(c *RouterConfig) { c.CORS = &cors })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recommendations", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://dash.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
