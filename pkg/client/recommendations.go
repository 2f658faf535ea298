package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/search/opensearch"
)

// Request and response documents shared with the server.
type (
	CustomerInput     = customer.Input
	Batch             = recommendation.Batch
	RecommendRequest  = recommendation.RecommendRequest
	RecommendResponse = recommendation.RecommendResponse
	AnalyzeRequest    = recommendation.AnalyzeRequest
	Analysis          = recommendation.Analysis
	ExportRequest     = recommendation.ExportRequest
	ExportResult      = recommendation.ExportResult
	SearchQuery       = opensearch.RecommendationQuery
	SearchResult      = opensearch.RecommendationSearchResult
	OfferMatch        = offer.OfferMatch
	PrioritizedLead   = lead.PrioritizedLead
)

// MatchOffersResponse is the body of POST /offers/match.
type MatchOffersResponse struct {
	CustomerID string       `json:"customer_id"`
	Offers     []OfferMatch `json:"offers"`
	Total      int          `json:"total"`
}

// PrioritizeLeadsResponse is the body of POST /leads/prioritize.
type PrioritizeLeadsResponse struct {
	Leads []PrioritizedLead `json:"leads"`
	Total int               `json:"total"`
}

// RecommendationsClient calls the recommendation endpoints.
type RecommendationsClient struct {
	client *Client
}

// Recommend runs the batch pipeline.
func (r *RecommendationsClient) Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error) {
	var resp RecommendResponse
	if err := r.client.post(ctx, APIPrefix+"/recommendations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export writes recommendations to the report store and returns the location.
func (r *RecommendationsClient) Export(ctx context.Context, req *ExportRequest) (*ExportResult, error) {
	var resp ExportResult
	if err := r.client.post(ctx, APIPrefix+"/recommendations/export", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search queries previously indexed recommendations.  Servers without a
// search backend answer with an APIError for which IsNotImplemented is true.
func (r *RecommendationsClient) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	var resp SearchResult
	if err := r.client.get(ctx, APIPrefix+"/recommendations/search", searchValues(q), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Analyze returns the profile, segment, insights and patterns of one customer.
func (r *RecommendationsClient) Analyze(ctx context.Context, req *AnalyzeRequest) (*Analysis, error) {
	var resp Analysis
	if err := r.client.post(ctx, APIPrefix+"/customers/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MatchOffers returns the eligible offers for one customer, best first.
func (r *RecommendationsClient) MatchOffers(ctx context.Context, req *AnalyzeRequest) (*MatchOffersResponse, error) {
	var resp MatchOffersResponse
	if err := r.client.post(ctx, APIPrefix+"/offers/match", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PrioritizeLeads scores and ranks the customers of batch as sales leads.
func (r *RecommendationsClient) PrioritizeLeads(ctx context.Context, batch Batch) (*PrioritizeLeadsResponse, error) {
	var resp PrioritizeLeadsResponse
	if err := r.client.post(ctx, APIPrefix+"/leads/prioritize", batch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func searchValues(q SearchQuery) url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("q", q.Text)
	set("batch_id", q.BatchID)
	set("customer_id", q.CustomerID)
	set("priority", q.Priority)
	set("action_type", q.ActionType)
	set("tag", q.Tag)
	if q.MinRevenue > 0 {
		v.Set("min_revenue", strconv.FormatFloat(q.MinRevenue, 'f', -1, 64))
	}
	if q.From > 0 {
		v.Set("from", strconv.Itoa(q.From))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	return v
}
