package common

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// PipelineMetrics is the telemetry API of the recommendation pipeline.  The
// engine records per-customer stage latency, batch outcomes and the tier mix
// of every batch through it, so the backend (Prometheus, in-memory, noop)
// can be swapped without touching business code.
type PipelineMetrics interface {
	// RecordStage records one per-customer pipeline run.
	RecordStage(ctx context.Context, params *StageMetricParams)

	// RecordBatch records the outcome of a whole batch.
	RecordBatch(ctx context.Context, params *BatchMetricParams)

	// RecordRecommendations records how many recommendations of each tier a
	// batch returned.
	RecordRecommendations(ctx context.Context, byTier map[string]int)

	// RecordCacheAccess records a recommendation cache hit or miss.
	RecordCacheAccess(ctx context.Context, hit bool, cache string)

	// GetLatencyHistogram returns the per-customer latency histogram.
	GetLatencyHistogram() LatencyHistogram

	// GetCurrentStats returns a point-in-time snapshot.
	GetCurrentStats() *PipelineStats
}

// LatencyHistogram provides percentile-based latency observation.
type LatencyHistogram interface {
	Observe(durationMs float64)
	// Percentile returns the value at the given percentile (0-100).
	Percentile(p float64) float64
	Count() int64
	Sum() float64
}

// ---------------------------------------------------------------------------
// Parameter structs
// ---------------------------------------------------------------------------

// StageMetricParams describes one per-customer pipeline run.
type StageMetricParams struct {
	Stage      string  `json:"stage"`
	DurationMs float64 `json:"duration_ms"`
	Success    bool    `json:"success"`
}

// BatchMetricParams describes one batch run.
type BatchMetricParams struct {
	BatchName         string  `json:"batch_name"`
	TotalItems        int     `json:"total_items"`
	SuccessItems      int     `json:"success_items"`
	SkippedItems      int     `json:"skipped_items"`
	TimeoutItems      int     `json:"timeout_items"`
	CancelledItems    int     `json:"cancelled_items"`
	TotalDurationMs   float64 `json:"total_duration_ms"`
	AvgItemDurationMs float64 `json:"avg_item_duration_ms"`
	MaxConcurrency    int     `json:"max_concurrency"`
}

// PipelineStats is a point-in-time snapshot of pipeline metrics.
type PipelineStats struct {
	TotalCustomers    int64            `json:"total_customers"`
	ScoredCustomers   int64            `json:"scored_customers"`
	SkippedCustomers  int64            `json:"skipped_customers"`
	Batches           int64            `json:"batches"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	CacheHitRate      float64          `json:"cache_hit_rate"`
	RecommendationsBy map[string]int64 `json:"recommendations_by_tier"`
}

// ---------------------------------------------------------------------------
// Prometheus implementation
// ---------------------------------------------------------------------------

const metricsPrefix = "revintel_pipeline_"

var defaultLatencyBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000}

type prometheusPipelineMetrics struct {
	stageLatency         *prometheus.HistogramVec
	stageTotal           *prometheus.CounterVec
	batchDuration        *prometheus.HistogramVec
	batchItemsTotal      *prometheus.CounterVec
	recommendationsTotal *prometheus.CounterVec
	cacheAccessTotal     *prometheus.CounterVec

	tracker
}

// NewPrometheusPipelineMetrics creates a Prometheus-backed PipelineMetrics
// and registers every series with registerer.
func NewPrometheusPipelineMetrics(registerer prometheus.Registerer) (PipelineMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &prometheusPipelineMetrics{tracker: newTracker()}

	m.stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "customer_duration_milliseconds",
		Help:    "Per-customer pipeline latency in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"stage"})
	m.stageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "customers_total",
		Help: "Customers run through the pipeline.",
	}, []string{"stage", "status"})
	m.batchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "batch_duration_milliseconds",
		Help:    "Batch latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
	}, []string{"batch_name"})
	m.batchItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "batch_items_total",
		Help: "Batch items by outcome.",
	}, []string{"batch_name", "status"})
	m.recommendationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "recommendations_total",
		Help: "Recommendations returned, by tier.",
	}, []string{"priority"})
	m.cacheAccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "cache_access_total",
		Help: "Recommendation cache accesses.",
	}, []string{"cache", "result"})

	for _, c := range []prometheus.Collector{
		m.stageLatency,
		m.stageTotal,
		m.batchDuration,
		m.batchItemsTotal,
		m.recommendationsTotal,
		m.cacheAccessTotal,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *prometheusPipelineMetrics) RecordStage(_ context.Context, p *StageMetricParams) {
	if p == nil {
		return
	}
	m.stageLatency.WithLabelValues(p.Stage).Observe(p.DurationMs)
	m.stageTotal.WithLabelValues(p.Stage, statusLabel(p.Success)).Inc()
	m.tracker.stage(p)
}

func (m *prometheusPipelineMetrics) RecordBatch(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.batchDuration.WithLabelValues(p.BatchName).Observe(p.TotalDurationMs)
	m.batchItemsTotal.WithLabelValues(p.BatchName, "success").Add(float64(p.SuccessItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "skipped").Add(float64(p.SkippedItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "timeout").Add(float64(p.TimeoutItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "cancelled").Add(float64(p.CancelledItems))
	m.tracker.batches.Add(1)
}

func (m *prometheusPipelineMetrics) RecordRecommendations(_ context.Context, byTier map[string]int) {
	for tier, n := range byTier {
		m.recommendationsTotal.WithLabelValues(tier).Add(float64(n))
	}
	m.tracker.recommendations(byTier)
}

func (m *prometheusPipelineMetrics) RecordCacheAccess(_ context.Context, hit bool, cache string) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheAccessTotal.WithLabelValues(cache, result).Inc()
	m.tracker.cache(hit)
}

func (m *prometheusPipelineMetrics) GetLatencyHistogram() LatencyHistogram { return m.tracker.latency }

func (m *prometheusPipelineMetrics) GetCurrentStats() *PipelineStats { return m.tracker.snapshot() }

// ---------------------------------------------------------------------------
// tracker keeps the in-process counters behind GetCurrentStats
// ---------------------------------------------------------------------------

type tracker struct {
	latency     *latencyHistogram
	total       *atomic.Int64
	success     *atomic.Int64
	batches     *atomic.Int64
	cacheHits   *atomic.Int64
	cacheMisses *atomic.Int64

	mu     *sync.Mutex
	byTier map[string]int64
}

func newTracker() tracker {
	return tracker{
		latency:     newLatencyHistogram(),
		total:       new(atomic.Int64),
		success:     new(atomic.Int64),
		batches:     new(atomic.Int64),
		cacheHits:   new(atomic.Int64),
		cacheMisses: new(atomic.Int64),
		mu:          new(sync.Mutex),
		byTier:      make(map[string]int64),
	}
}

func (t tracker) stage(p *StageMetricParams) {
	t.latency.Observe(p.DurationMs)
	t.total.Add(1)
	if p.Success {
		t.success.Add(1)
	}
}

func (t tracker) cache(hit bool) {
	if hit {
		t.cacheHits.Add(1)
	} else {
		t.cacheMisses.Add(1)
	}
}

func (t tracker) recommendations(byTier map[string]int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for tier, n := range byTier {
		t.byTier[tier] += int64(n)
	}
}

func (t tracker) snapshot() *PipelineStats {
	total := t.total.Load()
	success := t.success.Load()
	s := &PipelineStats{
		TotalCustomers:    total,
		ScoredCustomers:   success,
		SkippedCustomers:  total - success,
		Batches:           t.batches.Load(),
		P50LatencyMs:      t.latency.Percentile(50),
		P95LatencyMs:      t.latency.Percentile(95),
		P99LatencyMs:      t.latency.Percentile(99),
		RecommendationsBy: make(map[string]int64),
	}
	if total > 0 {
		s.AvgLatencyMs = t.latency.Sum() / float64(total)
	}
	hits, misses := t.cacheHits.Load(), t.cacheMisses.Load()
	if hits+misses > 0 {
		s.CacheHitRate = float64(hits) / float64(hits+misses)
	}
	t.mu.Lock()
	for k, v := range t.byTier {
		s.RecommendationsBy[k] = v
	}
	t.mu.Unlock()
	return s
}

// ---------------------------------------------------------------------------
// Noop implementation
// ---------------------------------------------------------------------------

type noopPipelineMetrics struct{}

// NewNoopPipelineMetrics returns a PipelineMetrics that records nothing.
func NewNoopPipelineMetrics() PipelineMetrics { return noopPipelineMetrics{} }

func (noopPipelineMetrics) RecordStage(context.Context, *StageMetricParams)       {}
func (noopPipelineMetrics) RecordBatch(context.Context, *BatchMetricParams)       {}
func (noopPipelineMetrics) RecordRecommendations(context.Context, map[string]int) {}
func (noopPipelineMetrics) RecordCacheAccess(context.Context, bool, string)       {}

func (noopPipelineMetrics) GetLatencyHistogram() LatencyHistogram { return newLatencyHistogram() }

func (noopPipelineMetrics) GetCurrentStats() *PipelineStats {
	return &PipelineStats{RecommendationsBy: map[string]int64{}}
}

// ---------------------------------------------------------------------------
// In-memory implementation (for tests)
// ---------------------------------------------------------------------------

// InMemoryPipelineMetrics keeps every recorded event for inspection.
type InMemoryPipelineMetrics struct {
	tracker

	mu      sync.Mutex
	stages  []StageMetricParams
	batches []BatchMetricParams
}

// NewInMemoryPipelineMetrics returns an empty InMemoryPipelineMetrics.
func NewInMemoryPipelineMetrics() *InMemoryPipelineMetrics {
	return &InMemoryPipelineMetrics{tracker: newTracker()}
}

func (m *InMemoryPipelineMetrics) RecordStage(_ context.Context, p *StageMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.stages = append(m.stages, *p)
	m.mu.Unlock()
	m.tracker.stage(p)
}

func (m *InMemoryPipelineMetrics) RecordBatch(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.batches = append(m.batches, *p)
	m.mu.Unlock()
	m.tracker.batches.Add(1)
}

func (m *InMemoryPipelineMetrics) RecordRecommendations(_ context.Context, byTier map[string]int) {
	m.tracker.recommendations(byTier)
}

func (m *InMemoryPipelineMetrics) RecordCacheAccess(_ context.Context, hit bool, _ string) {
	m.tracker.cache(hit)
}

func (m *InMemoryPipelineMetrics) GetLatencyHistogram() LatencyHistogram { return m.tracker.latency }

func (m *InMemoryPipelineMetrics) GetCurrentStats() *PipelineStats { return m.tracker.snapshot() }

// Stages returns a copy of the recorded stage events.
func (m *InMemoryPipelineMetrics) Stages() []StageMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StageMetricParams(nil), m.stages...)
}

// Batches returns a copy of the recorded batch events.
func (m *InMemoryPipelineMetrics) Batches() []BatchMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BatchMetricParams(nil), m.batches...)
}

// ---------------------------------------------------------------------------
// latencyHistogram: in-memory, thread-safe, percentile-capable
// ---------------------------------------------------------------------------

type latencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	sum     float64
	sorted  bool
}

func newLatencyHistogram() *latencyHistogram {
	return &latencyHistogram{samples: make([]float64, 0, 256)}
}

func (h *latencyHistogram) Observe(durationMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, durationMs)
	h.sum += durationMs
	h.sorted = false
}

// Percentile interpolates linearly between the two nearest ranks
// (PERCENTILE.INC).
func (h *latencyHistogram) Percentile(p float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.samples)
	if n == 0 {
		return 0
	}
	if !h.sorted {
		sort.Float64s(h.samples)
		h.sorted = true
	}
	if p <= 0 {
		return h.samples[0]
	}
	if p >= 100 {
		return h.samples[n-1]
	}
	rank := (p / 100) * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return h.samples[n-1]
	}
	frac := rank - float64(lower)
	return h.samples[lower] + frac*(h.samples[upper]-h.samples[lower])
}

func (h *latencyHistogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.samples))
}

func (h *latencyHistogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// compile-time interface checks
var (
	_ PipelineMetrics  = (*prometheusPipelineMetrics)(nil)
	_ PipelineMetrics  = noopPipelineMetrics{}
	_ PipelineMetrics  = (*InMemoryPipelineMetrics)(nil)
	_ LatencyHistogram = (*latencyHistogram)(nil)
)
