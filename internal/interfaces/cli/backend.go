package cli

import (
	"context"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/config"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/client"
)

// Backend is what the commands run against: the in-process engine or a
// remote API server.
type Backend interface {
	Recommend(ctx context.Context, req *recommendation.RecommendRequest) (*recommendation.RecommendResponse, error)
	Analyze(ctx context.Context, req *recommendation.AnalyzeRequest) (*recommendation.Analysis, error)
	MatchOffers(ctx context.Context, req *recommendation.AnalyzeRequest) ([]offer.OfferMatch, error)
	PrioritizeLeads(ctx context.Context, batch recommendation.Batch) ([]lead.PrioritizedLead, error)

	Products(ctx context.Context, f offer.ProductFilter) ([]offer.Product, error)
	Product(ctx context.Context, id string) (*offer.Product, error)
	CatalogStats(ctx context.Context) (*offer.Stats, error)
	Campaigns(ctx context.Context, segment string, activeOnly bool) ([]offer.Product, error)
	Campaign(ctx context.Context, code string) ([]offer.Product, error)
}

func initBackend(cfg *config.Config, opts *RootOptions, logger logging.Logger) (Backend, error) {
	if opts.ServerAddr != "" {
		c, err := client.NewClient(opts.ServerAddr, opts.APIKey, client.WithTimeout(opts.Timeout))
		if err != nil {
			return nil, err
		}
		return &remoteBackend{client: c}, nil
	}
	return newLocalBackend(recommendation.SettingsFromConfig(cfg.Engine), logger)
}

// ─────────────────────────────────────────────────────────────────────────────
// Local
// ─────────────────────────────────────────────────────────────────────────────

type localBackend struct {
	svc recommendation.Service
	now func() time.Time
}

func newLocalBackend(settings recommendation.Settings, logger logging.Logger) (*localBackend, error) {
	engine, err := recommendation.NewEngine(settings, offer.MustDefaultCatalog(), recommendation.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &localBackend{svc: recommendation.NewService(engine, logger), now: time.Now}, nil
}

func (b *localBackend) Recommend(ctx context.Context, req *recommendation.RecommendRequest) (*recommendation.RecommendResponse, error) {
	return b.svc.Recommend(ctx, req)
}

func (b *localBackend) Analyze(ctx context.Context, req *recommendation.AnalyzeRequest) (*recommendation.Analysis, error) {
	return b.svc.AnalyzeCustomer(ctx, req)
}

func (b *localBackend) MatchOffers(ctx context.Context, req *recommendation.AnalyzeRequest) ([]offer.OfferMatch, error) {
	return b.svc.MatchOffers(ctx, req)
}

func (b *localBackend) PrioritizeLeads(ctx context.Context, batch recommendation.Batch) ([]lead.PrioritizedLead, error) {
	return b.svc.PrioritizeLeads(ctx, batch)
}

func (b *localBackend) Products(_ context.Context, f offer.ProductFilter) ([]offer.Product, error) {
	return b.svc.Catalog().Find(f), nil
}

func (b *localBackend) Product(_ context.Context, id string) (*offer.Product, error) {
	p, err := b.svc.Catalog().Get(id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *localBackend) CatalogStats(context.Context) (*offer.Stats, error) {
	s := b.svc.Catalog().Stats(b.now())
	return &s, nil
}

func (b *localBackend) Campaigns(_ context.Context, segment string, activeOnly bool) ([]offer.Product, error) {
	return b.svc.Catalog().CampaignOffers(offer.CampaignQuery{Segment: segment, ActiveOnly: activeOnly}, b.now()), nil
}

func (b *localBackend) Campaign(_ context.Context, code string) ([]offer.Product, error) {
	return b.svc.Catalog().Campaign(code, b.now())
}

// ─────────────────────────────────────────────────────────────────────────────
// Remote
// ─────────────────────────────────────────────────────────────────────────────

type remoteBackend struct {
	client *client.Client
}

func (b *remoteBackend) Recommend(ctx context.Context, req *recommendation.RecommendRequest) (*recommendation.RecommendResponse, error) {
	return b.client.Recommendations().Recommend(ctx, req)
}

func (b *remoteBackend) Analyze(ctx context.Context, req *recommendation.AnalyzeRequest) (*recommendation.Analysis, error) {
	return b.client.Recommendations().Analyze(ctx, req)
}

func (b *remoteBackend) MatchOffers(ctx context.Context, req *recommendation.AnalyzeRequest) ([]offer.OfferMatch, error) {
	resp, err := b.client.Recommendations().MatchOffers(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Offers, nil
}

func (b *remoteBackend) PrioritizeLeads(ctx context.Context, batch recommendation.Batch) ([]lead.PrioritizedLead, error) {
	resp, err := b.client.Recommendations().PrioritizeLeads(ctx, batch)
	if err != nil {
		return nil, err
	}
	return resp.Leads, nil
}

func (b *remoteBackend) Products(ctx context.Context, f offer.ProductFilter) ([]offer.Product, error) {
	resp, err := b.client.Catalog().ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	return resp.Products, nil
}

func (b *remoteBackend) Product(ctx context.Context, id string) (*offer.Product, error) {
	return b.client.Catalog().GetProduct(ctx, id)
}

func (b *remoteBackend) CatalogStats(ctx context.Context) (*offer.Stats, error) {
	return b.client.Catalog().Stats(ctx)
}

func (b *remoteBackend) Campaigns(ctx context.Context, segment string, activeOnly bool) ([]offer.Product, error) {
	resp, err := b.client.Catalog().ListCampaigns(ctx, segment, activeOnly)
	if err != nil {
		return nil, err
	}
	return resp.Products, nil
}

func (b *remoteBackend) Campaign(ctx context.Context, code string) ([]offer.Product, error) {
	resp, err := b.client.Catalog().GetCampaign(ctx, code)
	if err != nil {
		return nil, err
	}
	return resp.Products, nil
}
