package recommendation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	domainrec "github.com/turtacn/Revenue-Intelligence/internal/domain/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/internal/intelligence/common"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Ports
// ─────────────────────────────────────────────────────────────────────────────

// ResultCache stores batch results under an input digest.  Get reports a
// miss with a NotFound error.
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Publisher announces freshly generated recommendations.
type Publisher interface {
	PublishRecommendations(ctx context.Context, batchID string, recs []domainrec.ActionableRecommendation) error
}

// Indexer makes recommendations searchable and returns how many were indexed.
type Indexer interface {
	IndexRecommendations(ctx context.Context, batchID string, recs []domainrec.ActionableRecommendation) (int, error)
}

// ExportStore persists an export document and returns where it was written.
type ExportStore interface {
	SaveExport(ctx context.Context, name string, data []byte) (string, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────────────────────────────────────

// RecommendRequest asks for recommendations over a customer batch.
type RecommendRequest struct {
	BatchID            string `json:"batch_id,omitempty"`
	Batch              Batch  `json:"batch"`
	MaxRecommendations int    `json:"max_recommendations,omitempty"`
	SkipCache          bool   `json:"skip_cache,omitempty"`
	Export             bool   `json:"export,omitempty"`
}

// RecommendResponse is a BatchResult plus delivery details.  SinkErrors
// lists the publish, index or export steps that failed; the result itself
// is still valid.
type RecommendResponse struct {
	BatchID        string   `json:"batch_id"`
	Cached         bool     `json:"cached"`
	ExportLocation string   `json:"export_location,omitempty"`
	SinkErrors     []string `json:"sink_errors,omitempty"`
	*BatchResult
}

// AnalyzeRequest asks for the analysis of a single customer.
type AnalyzeRequest struct {
	Customer customer.Input          `json:"customer"`
	Market   *customer.MarketContext `json:"market_context,omitempty"`
}

// ExportRequest names a set of recommendations to export.
type ExportRequest struct {
	Name            string                               `json:"name"`
	Recommendations []domainrec.ActionableRecommendation `json:"recommendations"`
}

// ExportResult says where an export was written.
type ExportResult struct {
	Location string            `json:"location"`
	Summary  domainrec.Summary `json:"summary"`
	Bytes    int               `json:"bytes"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

// Service is the application surface used by the HTTP, gRPC, CLI and worker
// adapters.
type Service interface {
	Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error)
	AnalyzeCustomer(ctx context.Context, req *AnalyzeRequest) (*Analysis, error)
	MatchOffers(ctx context.Context, req *AnalyzeRequest) ([]offer.OfferMatch, error)
	PrioritizeLeads(ctx context.Context, batch Batch) ([]lead.PrioritizedLead, error)
	Export(ctx context.Context, req *ExportRequest) (*ExportResult, error)
	Catalog() *offer.Catalog
	// Shutdown stops admitting batches and waits for in-flight ones.
	Shutdown(ctx context.Context) error
}

// ServiceOption configures optional collaborators.  Every sink is optional.
type ServiceOption func(*serviceImpl)

// WithCache enables result caching for ttl.
func WithCache(c ResultCache, ttl time.Duration) ServiceOption {
	return func(s *serviceImpl) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithPublisher sets the event sink for generated recommendations.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *serviceImpl) { s.publisher = p }
}

// WithIndexer sets the search index sink.
func WithIndexer(i Indexer) ServiceOption {
	return func(s *serviceImpl) { s.indexer = i }
}

// WithExportStore sets the object store used by Export.
func WithExportStore(st ExportStore) ServiceOption {
	return func(s *serviceImpl) { s.exports = st }
}

// WithServiceMetrics records cache hits and misses.
func WithServiceMetrics(m common.PipelineMetrics) ServiceOption {
	return func(s *serviceImpl) { s.metrics = m }
}

// WithBatchIDs overrides the generator used for batch ids.
func WithBatchIDs(ids domainrec.IDGenerator) ServiceOption {
	return func(s *serviceImpl) { s.ids = ids }
}

// WithServiceClock overrides the clock used for export names and summaries.
func WithServiceClock(now domainrec.Clock) ServiceOption {
	return func(s *serviceImpl) { s.now = now }
}

const cacheName = "recommendations"

type serviceImpl struct {
	engine    *Engine
	cache     ResultCache
	cacheTTL  time.Duration
	publisher Publisher
	indexer   Indexer
	exports   ExportStore
	metrics   common.PipelineMetrics
	ids       domainrec.IDGenerator
	now       domainrec.Clock
	logger    logging.Logger
}

// NewService wraps engine with the configured sinks.
func NewService(engine *Engine, logger logging.Logger, opts ...ServiceOption) Service {
	s := &serviceImpl{
		engine:   engine,
		cacheTTL: 15 * time.Minute,
		metrics:  common.NewNoopPipelineMetrics(),
		ids:      domainrec.NewUUID,
		now:      time.Now,
		logger:   logging.OrNop(logger).Named("recommendation-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) Catalog() *offer.Catalog { return s.engine.Catalog() }

func (s *serviceImpl) Shutdown(ctx context.Context) error { return s.engine.Shutdown(ctx) }

// Recommend validates the batch, serves it from the cache when possible and
// otherwise generates, caches and fans the result out to the sinks.
// SkipCache bypasses the cache read but still refreshes the entry.
func (s *serviceImpl) Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error) {
	if req == nil {
		return nil, errors.InvalidParam("request is required")
	}
	if err := validateBatch(req.Batch); err != nil {
		return nil, err
	}
	batchID := req.BatchID
	if batchID == "" {
		batchID = s.ids()
	}
	log := s.logger.With(logging.BatchID(batchID))

	key := ""
	if s.cache != nil {
		var err error
		if key, err = CacheKey(req.Batch, req.MaxRecommendations); err != nil {
			return nil, err
		}
	}
	if key != "" && !req.SkipCache {
		var cached BatchResult
		switch err := s.cache.Get(ctx, key, &cached); {
		case err == nil:
			s.metrics.RecordCacheAccess(ctx, true, cacheName)
			log.Debug("recommendations served from cache", logging.String("key", key))
			return &RecommendResponse{BatchID: batchID, Cached: true, BatchResult: &cached}, nil
		case errors.IsNotFound(err):
			s.metrics.RecordCacheAccess(ctx, false, cacheName)
		default:
			s.metrics.RecordCacheAccess(ctx, false, cacheName)
			log.Warn("cache read failed", logging.Err(err))
		}
	}

	result, err := s.engine.Generate(ctx, req.Batch, req.MaxRecommendations)
	if err != nil {
		return nil, err
	}
	resp := &RecommendResponse{BatchID: batchID, BatchResult: result}

	if key != "" {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			log.Warn("cache write failed", logging.Err(err))
		}
	}
	s.deliver(ctx, log, resp, req.Export)
	return resp, nil
}

// deliver pushes a fresh result to every configured sink.  Failures are
// logged and reported in resp.SinkErrors.
func (s *serviceImpl) deliver(ctx context.Context, log logging.Logger, resp *RecommendResponse, export bool) {
	recs := resp.Recommendations
	if s.publisher != nil && len(recs) > 0 {
		if err := s.publisher.PublishRecommendations(ctx, resp.BatchID, recs); err != nil {
			log.Warn("publish failed", logging.Err(err))
			resp.SinkErrors = append(resp.SinkErrors, errors.Wrap(err, errors.ErrCodeMessageQueue, "publish recommendations").Error())
		}
	}
	if s.indexer != nil && len(recs) > 0 {
		n, err := s.indexer.IndexRecommendations(ctx, resp.BatchID, recs)
		if err != nil {
			log.Warn("index failed", logging.Err(err))
			resp.SinkErrors = append(resp.SinkErrors, errors.Wrap(err, errors.ErrCodeSearchIndex, "index recommendations").Error())
		} else {
			log.Debug("recommendations indexed", logging.Int("count", n))
		}
	}
	if export {
		res, err := s.Export(ctx, &ExportRequest{Name: resp.BatchID, Recommendations: recs})
		if err != nil {
			resp.SinkErrors = append(resp.SinkErrors, err.Error())
		} else {
			resp.ExportLocation = res.Location
		}
	}
}

func (s *serviceImpl) AnalyzeCustomer(ctx context.Context, req *AnalyzeRequest) (*Analysis, error) {
	if err := validateAnalyze(req); err != nil {
		return nil, err
	}
	return s.engine.AnalyzeCustomer(ctx, req.Customer, req.Market)
}

func (s *serviceImpl) MatchOffers(ctx context.Context, req *AnalyzeRequest) ([]offer.OfferMatch, error) {
	if err := validateAnalyze(req); err != nil {
		return nil, err
	}
	return s.engine.MatchOffers(ctx, req.Customer, req.Market)
}

func (s *serviceImpl) PrioritizeLeads(ctx context.Context, batch Batch) ([]lead.PrioritizedLead, error) {
	if err := validateBatch(batch); err != nil {
		return nil, err
	}
	return s.engine.PrioritizeLeads(ctx, batch)
}

// Export writes recs and their summary as one JSON document named
// <yyyy/mm/dd>/<name>.json.  Every failure is REC_004.
func (s *serviceImpl) Export(ctx context.Context, req *ExportRequest) (*ExportResult, error) {
	if req == nil {
		return nil, errors.InvalidParam("request is required")
	}
	if s.exports == nil {
		return nil, errors.New(errors.ErrCodeExportFailed, "export store not configured")
	}
	now := s.now()
	name := req.Name
	if name == "" {
		name = s.ids()
	}
	doc := domainrec.NewExport(req.Recommendations, now)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "encode export")
	}
	object := fmt.Sprintf("%s/%s.json", now.UTC().Format("2006/01/02"), name)
	loc, err := s.exports.SaveExport(ctx, object, data)
	if err != nil {
		s.logger.Error("export failed", logging.String("object", object), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "save export")
	}
	s.logger.Info("recommendations exported",
		logging.String("location", loc),
		logging.Int("recommendations", doc.Summary.Total),
		logging.Int("bytes", len(data)))
	return &ExportResult{Location: loc, Summary: doc.Summary, Bytes: len(data)}, nil
}

// CacheKey is the digest of everything that determines a batch result.
func CacheKey(batch Batch, maxRecs int) (string, error) {
	payload, err := json.Marshal(struct {
		Batch Batch `json:"batch"`
		Max   int   `json:"max"`
	}{batch, maxRecs})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "encode cache key")
	}
	sum := sha256.Sum256(payload)
	return cacheName + ":" + hex.EncodeToString(sum[:]), nil
}

// validateBatch rejects empty batches (CUST_003) and customers without an
// id (CUST_001).
func validateBatch(b Batch) error {
	if len(b.Customers) == 0 {
		return errors.New(errors.ErrCodeEmptyBatch, "customer batch is empty")
	}
	for i, c := range b.Customers {
		if c.Record.CustomerID == "" {
			return errors.Newf(errors.ErrCodeCustomerRecordInvalid, "customer %d has no customer_id", i)
		}
	}
	return nil
}

func validateAnalyze(req *AnalyzeRequest) error {
	if req == nil {
		return errors.InvalidParam("request is required")
	}
	if req.Customer.Record.CustomerID == "" {
		return errors.New(errors.ErrCodeCustomerRecordInvalid, "customer_id is required")
	}
	return nil
}
