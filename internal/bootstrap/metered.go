package bootstrap

import (
	"context"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	domainrec "github.com/turtacn/Revenue-Intelligence/internal/domain/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sink decorators
// ─────────────────────────────────────────────────────────────────────────────

const resultCacheName = "recommendations"

type meteredCache struct {
	redis.Cache
	metrics *prometheus.AppMetrics
}

func newMeteredCache(c redis.Cache, m *prometheus.AppMetrics) *meteredCache {
	return &meteredCache{Cache: c, metrics: m}
}

func (c *meteredCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := c.Cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		prometheus.RecordCacheAccess(c.metrics, resultCacheName, true)
	case errors.IsCode(err, errors.ErrCodeNotFound):
		prometheus.RecordCacheAccess(c.metrics, resultCacheName, false)
	default:
		prometheus.RecordError(c.metrics, "redis", string(errors.GetCode(err)))
	}
	return err
}

type recommendationIndexer interface {
	IndexRecommendations(ctx context.Context, batchID string, recs []domainrec.ActionableRecommendation) (int, error)
}

type meteredIndexer struct {
	next    recommendationIndexer
	metrics *prometheus.AppMetrics
}

func newMeteredIndexer(next recommendationIndexer, m *prometheus.AppMetrics) *meteredIndexer {
	return &meteredIndexer{next: next, metrics: m}
}

func (i *meteredIndexer) IndexRecommendations(ctx context.Context, batchID string, recs []domainrec.ActionableRecommendation) (int, error) {
	n, err := i.next.IndexRecommendations(ctx, batchID, recs)
	prometheus.RecordIndexed(i.metrics, n, nil)
	if err != nil {
		prometheus.RecordIndexed(i.metrics, len(recs)-n, err)
	}
	return n, err
}

type exportSaver interface {
	SaveExport(ctx context.Context, name string, data []byte) (string, error)
}

type meteredExports struct {
	next    exportSaver
	metrics *prometheus.AppMetrics
}

func newMeteredExports(next exportSaver, m *prometheus.AppMetrics) *meteredExports {
	return &meteredExports{next: next, metrics: m}
}

func (e *meteredExports) SaveExport(ctx context.Context, name string, data []byte) (string, error) {
	loc, err := e.next.SaveExport(ctx, name, data)
	prometheus.RecordExport(e.metrics, err)
	return loc, err
}

// meteredProducts times catalog queries.
type meteredProducts struct {
	next    offer.ProductRepository
	metrics *prometheus.AppMetrics
}

func newMeteredProducts(next offer.ProductRepository, m *prometheus.AppMetrics) *meteredProducts {
	return &meteredProducts{next: next, metrics: m}
}

func (p *meteredProducts) List(ctx context.Context) ([]offer.Product, error) {
	start := time.Now()
	products, err := p.next.List(ctx)
	prometheus.RecordDBQuery(p.metrics, "list_products", time.Since(start), err)
	return products, err
}

func (p *meteredProducts) Upsert(ctx context.Context, product offer.Product) error {
	start := time.Now()
	err := p.next.Upsert(ctx, product)
	prometheus.RecordDBQuery(p.metrics, "upsert_product", time.Since(start), err)
	return err
}

func (p *meteredProducts) Seed(ctx context.Context, products []offer.Product) (int, error) {
	start := time.Now()
	n, err := p.next.Seed(ctx, products)
	prometheus.RecordDBQuery(p.metrics, "seed_products", time.Since(start), err)
	return n, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

// HealthCheckers returns one checker per enabled store.  Every check also
// updates the health_check_status gauge.
func (i *Infrastructure) HealthCheckers() []handlers.HealthChecker {
	var checks []handlers.HealthChecker
	add := func(name string, fn func(ctx context.Context) error) {
		checks = append(checks, handlers.CheckerFunc{
			ComponentName: name,
			Fn: func(ctx context.Context) error {
				err := fn(ctx)
				prometheus.SetHealth(i.Metrics, name, err == nil)
				return err
			},
		})
	}

	if i.DB != nil {
		add("postgres", i.DB.HealthCheck)
	}
	if i.Redis != nil {
		add("redis", i.Redis.Ping)
	}
	if i.Search != nil {
		add("opensearch", i.Search.Ping)
	}
	if i.Storage != nil {
		add("minio", func(ctx context.Context) error {
			_, err := i.Storage.HealthCheck(ctx)
			return err
		})
	}
	return checks
}
