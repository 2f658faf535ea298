// Package recommendation runs the customer-to-recommendation pipeline over
// batches.  Engine is the pure, I/O-free core; Service wraps it with caching,
// event sinks and export storage.
package recommendation

import (
	"context"
	"runtime"
	"time"

	"github.com/shopspring/decimal"

	"github.com/turtacn/Revenue-Intelligence/internal/config"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	domainrec "github.com/turtacn/Revenue-Intelligence/internal/domain/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/internal/intelligence/common"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// Settings is the immutable parameter set an Engine is built with.
type Settings struct {
	Market   customer.MarketParams
	Lead     lead.Params
	Business offer.BusinessParams
	Policy   domainrec.Policy

	// Workers bounds the per-customer pool; 0 means runtime.NumCPU().
	Workers      int
	ItemTimeout  time.Duration
	BatchTimeout time.Duration
	// MaxPending caps the customers admitted across concurrent batches;
	// 0 disables the cap.
	MaxPending int
	// MaxRecommendations is used when Generate is called with maxRecs 0.
	MaxRecommendations int
	Prioritize         lead.PrioritizeOptions
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Market:             customer.DefaultMarketParams(),
		Lead:               lead.DefaultParams(),
		Business:           offer.DefaultBusinessParams(),
		Policy:             domainrec.DefaultPolicy(),
		ItemTimeout:        5 * time.Second,
		BatchTimeout:       5 * time.Minute,
		MaxRecommendations: 10,
		Prioritize:         lead.DefaultPrioritizeOptions(),
	}
}

// SettingsFromConfig overlays the tunables of cfg on DefaultSettings.
func SettingsFromConfig(cfg config.EngineConfig) Settings {
	s := DefaultSettings()
	s.Workers = cfg.Workers
	s.MaxPending = cfg.MaxPending
	if cfg.ItemTimeout > 0 {
		s.ItemTimeout = cfg.ItemTimeout
	}
	if cfg.BatchTimeout > 0 {
		s.BatchTimeout = cfg.BatchTimeout
	}
	if cfg.MaxRecommendations > 0 {
		s.MaxRecommendations = cfg.MaxRecommendations
	}
	if cfg.MaxOffersPerCustomer > 0 {
		s.Business.MaxOffers = cfg.MaxOffersPerCustomer
	}
	if cfg.MaxDiscountRate > 0 {
		s.Business.MaxDiscountRate = decimal.NewFromFloat(cfg.MaxDiscountRate)
	}
	if cfg.MinLeadScore > 0 {
		s.Prioritize.MinOverall = cfg.MinLeadScore
	}
	if cfg.MaxPrioritizedLeads > 0 {
		s.Prioritize.MaxLeads = cfg.MaxPrioritizedLeads
	}

	m := cfg.Market
	if m == (config.MarketConfig{}) {
		return s
	}
	s.Market = customer.MarketParams{
		AverageMonthlySpend: m.AverageMonthlySpend,
		PremiumThreshold:    m.PremiumThreshold,
		BudgetThreshold:     m.BudgetThreshold,
		HighUsageDataGB:     m.HighUsageDataGB,
		StandardDataGB:      m.StandardDataGB,
		HighVoiceMinutes:    m.HighVoiceMinutes,
		ChurnRiskThreshold:  m.ChurnRiskThreshold,
		UpsellThreshold:     m.UpsellThreshold,
	}
	if m.PremiumThreshold > 0 {
		s.Business.PremiumSpendThreshold = decimal.NewFromFloat(m.PremiumThreshold)
	}
	if m.ChurnRiskThreshold > 0 {
		s.Business.RetentionChurnThreshold = m.ChurnRiskThreshold
		s.Business.CreditCheckChurnThreshold = m.ChurnRiskThreshold
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger  logging.Logger
	metrics common.PipelineMetrics
	ids     domainrec.IDGenerator
	now     domainrec.Clock
}

// WithLogger injects the logger shared by every pipeline stage.
func WithLogger(l logging.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = l }
}

// WithMetrics injects the pipeline metrics sink.
func WithMetrics(m common.PipelineMetrics) EngineOption {
	return func(o *engineOptions) { o.metrics = m }
}

// WithIDGenerator replaces uuid as the source of recommendation IDs.
func WithIDGenerator(ids domainrec.IDGenerator) EngineOption {
	return func(o *engineOptions) { o.ids = ids }
}

// WithClock replaces time.Now for timestamps and validity windows.
func WithClock(now domainrec.Clock) EngineOption {
	return func(o *engineOptions) { o.now = now }
}

// Engine turns customer batches into ranked recommendations.  Its pipeline
// is immutable after construction and it is safe for concurrent use.
type Engine struct {
	settings   Settings
	extractor  *customer.Extractor
	analyzer   *customer.PatternAnalyzer
	classifier *customer.Classifier
	scorer     *lead.Scorer
	matcher    *offer.Matcher
	synth      *domainrec.Synthesizer

	customers common.BatchProcessor[customer.Input, customerOutcome]
	leads     common.BatchProcessor[customer.Input, lead.Candidate]

	metrics common.PipelineMetrics
	logger  logging.Logger
	now     domainrec.Clock
}

// NewEngine validates every parameter table and the catalog and builds the
// pipeline.  Any problem is returned as a CFG_001 error before a single
// customer is processed.  A nil catalog means the default catalog.
func NewEngine(settings Settings, catalog *offer.Catalog, opts ...EngineOption) (*Engine, error) {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.OrNop(o.logger)
	if o.metrics == nil {
		o.metrics = common.NewNoopPipelineMetrics()
	}
	if o.now == nil {
		o.now = time.Now
	}

	if err := settings.Market.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "invalid market parameters")
	}
	if err := settings.Lead.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "invalid lead scoring parameters")
	}
	if settings.Workers < 0 {
		return nil, errors.Configuration("workers must be >= 0")
	}
	if settings.MaxPending < 0 {
		return nil, errors.Configuration("max pending must be >= 0")
	}
	if settings.MaxRecommendations < 1 {
		return nil, errors.Configuration("max recommendations must be >= 1")
	}
	if settings.Workers == 0 {
		settings.Workers = runtime.NumCPU()
	}
	if catalog == nil {
		var err error
		if catalog, err = offer.NewCatalog(offer.DefaultProducts()); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "invalid product catalog")
		}
	}

	matcher, err := offer.NewMatcher(catalog, settings.Business, logger, offer.WithClock(o.now))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "invalid business parameters")
	}
	synth, err := domainrec.NewSynthesizer(settings.Policy, o.ids, o.now, logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "invalid recommendation policy")
	}

	classifier := customer.NewClassifier(settings.Market)
	e := &Engine{
		settings:   settings,
		extractor:  customer.NewExtractor(settings.Market, logger),
		analyzer:   customer.NewPatternAnalyzer(settings.Market, logger),
		classifier: classifier,
		scorer:     lead.NewScorer(settings.Lead, classifier, logger),
		matcher:    matcher,
		synth:      synth,
		metrics:    o.metrics,
		logger:     logger.Named("engine"),
		now:        o.now,
	}
	e.customers = common.NewBatchProcessor[customer.Input, customerOutcome](e.poolOptions("customers")...)
	e.leads = common.NewBatchProcessor[customer.Input, lead.Candidate](e.poolOptions("leads")...)
	e.logger.Info("recommendation engine ready",
		logging.Int("products", catalog.Len()),
		logging.Int("workers", settings.Workers),
		logging.Int("max_recommendations", settings.MaxRecommendations),
		logging.Int("max_pending", settings.MaxPending))
	return e, nil
}

func (e *Engine) poolOptions(name string) []common.BatchOption {
	return []common.BatchOption{
		common.WithBatchName(name),
		common.WithMaxConcurrency(e.settings.Workers),
		common.WithItemTimeout(e.settings.ItemTimeout),
		common.WithBatchTimeout(e.settings.BatchTimeout),
		common.WithBackpressureThreshold(e.settings.MaxPending),
		common.WithBatchMetrics(e.metrics),
		common.WithBatchLogger(e.logger),
	}
}

// Shutdown rejects new batches and waits for in-flight ones until ctx
// expires.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.customers.Shutdown(ctx); err != nil {
		return err
	}
	if err := e.leads.Shutdown(ctx); err != nil {
		return err
	}
	e.logger.Info("recommendation engine stopped")
	return nil
}

// poolError keeps admission rejections (COMMON_008) distinguishable from
// pipeline failures.
func poolError(err error, msg string) error {
	if errors.IsCode(err, errors.ErrCodeServiceUnavailable) {
		return err
	}
	return errors.Wrap(err, errors.ErrCodePipelineStage, msg)
}

// Settings returns the parameters the engine was built with.
func (e *Engine) Settings() Settings { return e.settings }

// Catalog returns the immutable product catalog.
func (e *Engine) Catalog() *offer.Catalog { return e.matcher.Catalog() }

// ─────────────────────────────────────────────────────────────────────────────
// Single customer
// ─────────────────────────────────────────────────────────────────────────────

// Analysis is the full per-customer pipeline output.
type Analysis struct {
	CustomerID        string                    `json:"customer_id"`
	Vector            customer.FeatureVector    `json:"feature_vector"`
	Patterns          []customer.PatternFinding `json:"patterns"`
	Segment           customer.Segment          `json:"segment"`
	SegmentConfidence float64                   `json:"segment_confidence"`
	Score             lead.LeadScore            `json:"lead_score"`
	Offers            []offer.OfferMatch        `json:"offers"`
	Insights          customer.Insights         `json:"insights"`
}

// AnalyzeCustomer runs extraction, pattern analysis, segmentation, scoring
// and matching for one customer.  It never fails on bad input; only a
// cancelled ctx is returned as an error.
func (e *Engine) AnalyzeCustomer(ctx context.Context, in customer.Input, mc *customer.MarketContext) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBatchCancelled, "analysis cancelled")
	}
	a := e.analyze(in, mc)
	return &a, nil
}

// MatchOffers returns the ranked, capped offers for one customer.
func (e *Engine) MatchOffers(ctx context.Context, in customer.Input, mc *customer.MarketContext) ([]offer.OfferMatch, error) {
	a, err := e.AnalyzeCustomer(ctx, in, mc)
	if err != nil {
		return nil, err
	}
	return a.Offers, nil
}

func (e *Engine) analyze(in customer.Input, mc *customer.MarketContext) Analysis {
	rec := in.Record
	mc = rec.MergeContext(mc)

	v := e.extractor.Extract(rec, in.History, in.Engagement)
	patterns := e.analyzer.Analyze(rec, in.History, v)
	seg, segConf := e.classifier.Classify(v)
	score := e.scorer.Score(v, patterns, mc)
	offers := e.matcher.Match(v, score, seg, in.CurrentProductIDs, mc)

	return Analysis{
		CustomerID:        v.CustomerID,
		Vector:            v,
		Patterns:          patterns,
		Segment:           seg,
		SegmentConfidence: segConf,
		Score:             score,
		Offers:            offers,
		Insights:          customer.BuildInsights(v, patterns, seg, segConf, e.settings.Market),
	}
}

func (e *Engine) synthesize(in customer.Input, a Analysis) domainrec.ActionableRecommendation {
	return e.synth.Synthesize(domainrec.Input{
		CustomerID:         a.CustomerID,
		CustomerName:       in.Record.DisplayName(),
		CustomerType:       in.Record.CustomerType,
		CompetitorInterest: in.Record.CompetitorInterest(),
		CurrentProductIDs:  in.CurrentProductIDs,
		Vector:             a.Vector,
		Segment:            a.Segment,
		Patterns:           a.Patterns,
		Score:              a.Score,
		Offers:             a.Offers,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch
// ─────────────────────────────────────────────────────────────────────────────

// Batch is one recommendation request.
type Batch struct {
	Customers []customer.Input        `json:"customers"`
	Market    *customer.MarketContext `json:"market_context,omitempty"`
}

// CustomerResult is the per-customer outcome of a batch.  Exactly one of
// Recommendation and Err is set.
type CustomerResult struct {
	Index          int                                 `json:"index"`
	CustomerID     string                              `json:"customer_id"`
	Recommendation *domainrec.ActionableRecommendation `json:"-"`
	Skipped        bool                                `json:"skipped"`
	Err            error                               `json:"-"`
	Error          string                              `json:"error,omitempty"`
	Warnings       []string                            `json:"warnings,omitempty"`
}

// BatchResult holds the ranked, quota-capped recommendations and one
// CustomerResult per input customer, in input order.
type BatchResult struct {
	Recommendations []domainrec.ActionableRecommendation `json:"recommendations"`
	Results         []CustomerResult                     `json:"results"`
	Summary         domainrec.Summary                    `json:"summary"`
	Processed       int                                  `json:"processed"`
	Skipped         int                                  `json:"skipped"`
	DurationMs      float64                              `json:"duration_ms"`
}

type customerOutcome struct {
	rec      domainrec.ActionableRecommendation
	warnings []string
}

// Generate runs every customer through the pipeline on a bounded pool,
// ranks the results and applies the tier quotas for maxRecs recommendations
// (maxRecs 0 means the configured default).  A failing or panicking customer
// is reported as skipped and never aborts the batch.  Generate itself
// fails only on an invalid maxRecs, a cancelled ctx, or a COMMON_008
// rejection when the engine is shut down or over its pending cap.
func (e *Engine) Generate(ctx context.Context, batch Batch, maxRecs int) (*BatchResult, error) {
	if maxRecs == 0 {
		maxRecs = e.settings.MaxRecommendations
	}
	if maxRecs < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidMaxCount, "max recommendations must be >= 1, got %d", maxRecs)
	}
	start := time.Now()

	br, err := e.customers.Process(ctx, batch.Customers, func(itemCtx context.Context, in customer.Input) (customerOutcome, error) {
		return e.runCustomer(itemCtx, in, batch.Market)
	})
	if err != nil {
		return nil, poolError(err, "batch failed")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		code := errors.ErrCodeBatchCancelled
		if ctxErr == context.DeadlineExceeded {
			code = errors.ErrCodeBatchTimeout
		}
		return nil, errors.Wrap(ctxErr, code, "batch interrupted")
	}

	out := &BatchResult{Results: make([]CustomerResult, len(br.Results))}
	recs := make([]domainrec.ActionableRecommendation, 0, len(br.Results))
	for i, ir := range br.Results {
		cr := CustomerResult{Index: i, CustomerID: batch.Customers[i].Record.CustomerID}
		if ir.Error != nil {
			cr.Skipped = true
			cr.Err = errors.Wrap(ir.Error, errors.ErrCodePipelineStage, "customer skipped")
			cr.Error = cr.Err.Error()
			out.Skipped++
			e.logger.Warn("customer skipped",
				logging.CustomerID(cr.CustomerID),
				logging.Int("index", i),
				logging.String("status", ir.Status.String()),
				logging.Err(ir.Error))
		} else {
			r := ir.Result.rec
			cr.Recommendation = &r
			cr.Warnings = ir.Result.warnings
			recs = append(recs, r)
			out.Processed++
		}
		out.Results[i] = cr
	}

	ranked := domainrec.Rank(recs, e.settings.Policy)
	if out.Recommendations, err = domainrec.ApplyQuotas(ranked, maxRecs, e.settings.Policy); err != nil {
		return nil, err
	}
	out.Summary = domainrec.Summarize(out.Recommendations, e.now())
	out.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0

	byTier := make(map[string]int, len(domainrec.AllPriorities))
	for p, n := range out.Summary.ByPriority {
		byTier[string(p)] = n
	}
	e.metrics.RecordRecommendations(ctx, byTier)
	e.logger.Info("batch generated",
		logging.Int("customers", len(batch.Customers)),
		logging.Int("processed", out.Processed),
		logging.Int("skipped", out.Skipped),
		logging.Int("recommendations", len(out.Recommendations)),
		logging.Float64("duration_ms", out.DurationMs))
	return out, nil
}

// runCustomer is the per-customer boundary.  Panics are converted to errors
// by the pool.
func (e *Engine) runCustomer(ctx context.Context, in customer.Input, mc *customer.MarketContext) (customerOutcome, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return customerOutcome{}, err
	}
	ok := false
	defer func() {
		e.metrics.RecordStage(ctx, &common.StageMetricParams{
			Stage:      "customer",
			DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
			Success:    ok,
		})
	}()

	a := e.analyze(in, mc)
	rec := e.synthesize(in, a)

	warnings := make([]string, 0, len(a.Vector.Warnings))
	for _, w := range a.Vector.Warnings {
		warnings = append(warnings, w.String())
	}
	ok = true
	return customerOutcome{rec: rec, warnings: warnings}, nil
}

// PrioritizeLeads scores every customer of batch and returns the sales
// queue: leads below the minimum overall score are dropped and the rest are
// ordered and capped by the configured options.  Skipped customers are left
// out of the queue.
func (e *Engine) PrioritizeLeads(ctx context.Context, batch Batch) ([]lead.PrioritizedLead, error) {
	br, err := e.leads.Process(ctx, batch.Customers, func(itemCtx context.Context, in customer.Input) (lead.Candidate, error) {
		if err := itemCtx.Err(); err != nil {
			return lead.Candidate{}, err
		}
		a := e.analyze(in, batch.Market)
		return lead.Candidate{
			CustomerID:   a.CustomerID,
			CustomerName: in.Record.DisplayName(),
			Score:        a.Score,
			OfferNames:   offer.OfferNames(a.Offers),
		}, nil
	})
	if err != nil {
		return nil, poolError(err, "lead batch failed")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrap(ctxErr, errors.ErrCodeBatchCancelled, "lead batch interrupted")
	}

	candidates := make([]lead.Candidate, 0, len(br.Results))
	for i, ir := range br.Results {
		if ir.Error != nil {
			e.logger.Warn("lead skipped",
				logging.CustomerID(batch.Customers[i].Record.CustomerID),
				logging.Err(ir.Error))
			continue
		}
		candidates = append(candidates, ir.Result)
	}
	return lead.Prioritize(candidates, e.settings.Prioritize, e.now()), nil
}
