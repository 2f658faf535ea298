package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Revenue-Intelligence/internal/testutil"
)

func newLoggedRouter(t *testing.T, log *testutil.MockLogger) (http.Handler, prometheus.MetricsCollector) {
	t.Helper()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "revintel"}, nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(RequestLogging(log, prometheus.NewAppMetrics(collector), DefaultLoggingConfig()))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/catalog/products/{id}", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("{}")) })
	r.Post("/fail", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	r.Post("/bad", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadRequest) })
	return r, collector
}

func TestRequestLogging_LevelsByStatus(t *testing.T) {
	log := testutil.NewMockLogger()
	h, _ := newLoggedRouter(t, log)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/catalog/products/MOB_5G", nil),
		httptest.NewRequest(http.MethodPost, "/fail", nil),
		httptest.NewRequest(http.MethodPost, "/bad", nil),
	} {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.True(t, log.HasMessage("info", "HTTP request completed"))
	assert.True(t, log.HasMessage("error", "HTTP request completed with server error"))
	assert.True(t, log.HasMessage("warn", "HTTP request completed with client error"))

	info := log.MessagesAt("info")
	require.Len(t, info, 1)
	route, _ := info[0].Field("route")
	assert.Equal(t, "/catalog/products/{id}", route)
	status, _ := info[0].Field("status")
	assert.Equal(t, http.StatusOK, status)
}

func TestRequestLogging_SkipsProbes(t *testing.T) {
	log := testutil.NewMockLogger()
	h, _ := newLoggedRouter(t, log)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, log.GetMessages())
}

func TestRequestLogging_RecordsRouteMetrics(t *testing.T) {
	h, collector := newLoggedRouter(t, testutil.NewMockLogger())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/catalog/products/A", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/catalog/products/B", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `revintel_http_requests_total{method="GET",route="/catalog/products/{id}",status_code="200"} 2`)
	assert.Contains(t, body, `revintel_http_requests_total{method="GET",route="unmatched",status_code="404"} 1`)
}
