package common

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheusPipelineMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPrometheusPipelineMetrics(registry)
	require.NoError(t, err)

	_, err = NewPrometheusPipelineMetrics(registry)
	assert.Error(t, err)
}

func TestPrometheus_RecordsSeries(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPrometheusPipelineMetrics(registry)
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordStage(ctx, &StageMetricParams{Stage: "customer", DurationMs: 4, Success: true})
	m.RecordStage(ctx, &StageMetricParams{Stage: "customer", DurationMs: 8, Success: false})
	m.RecordRecommendations(ctx, map[string]int{"high": 2, "medium": 1})
	m.RecordCacheAccess(ctx, true, "recommendations")

	pm := m.(*prometheusPipelineMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.stageTotal.WithLabelValues("customer", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.recommendationsTotal.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.cacheAccessTotal.WithLabelValues("recommendations", "hit")))

	stats := m.GetCurrentStats()
	assert.Equal(t, int64(2), stats.TotalCustomers)
	assert.Equal(t, int64(1), stats.SkippedCustomers)
	assert.InDelta(t, 6.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, 1.0, stats.CacheHitRate)
	assert.Equal(t, int64(2), stats.RecommendationsBy["high"])
}

func TestInMemory_KeepsEvents(t *testing.T) {
	m := NewInMemoryPipelineMetrics()
	ctx := context.Background()
	m.RecordStage(ctx, &StageMetricParams{Stage: "customer", DurationMs: 1, Success: true})
	m.RecordBatch(ctx, &BatchMetricParams{BatchName: "b", TotalItems: 1})
	m.RecordCacheAccess(ctx, false, "recommendations")
	m.RecordStage(ctx, nil)

	assert.Len(t, m.Stages(), 1)
	assert.Len(t, m.Batches(), 1)
	stats := m.GetCurrentStats()
	assert.Equal(t, int64(1), stats.Batches)
	assert.Equal(t, 0.0, stats.CacheHitRate)
}

func TestNoop_AllMethods_NoPanic(t *testing.T) {
	m := NewNoopPipelineMetrics()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordStage(ctx, &StageMetricParams{})
		m.RecordBatch(ctx, &BatchMetricParams{})
		m.RecordRecommendations(ctx, map[string]int{"high": 1})
		m.RecordCacheAccess(ctx, true, "recommendations")
		m.GetLatencyHistogram()
		m.GetCurrentStats()
	})
}

func TestLatencyHistogram_Percentiles(t *testing.T) {
	h := newLatencyHistogram()
	assert.Equal(t, 0.0, h.Percentile(50))
	for _, v := range []float64{10, 20, 30, 40, 50} {
		h.Observe(v)
	}
	assert.Equal(t, int64(5), h.Count())
	assert.Equal(t, 150.0, h.Sum())
	assert.Equal(t, 30.0, h.Percentile(50))
	assert.Equal(t, 10.0, h.Percentile(0))
	assert.Equal(t, 50.0, h.Percentile(100))
	assert.InDelta(t, 48.0, h.Percentile(95), 1e-9)
}
