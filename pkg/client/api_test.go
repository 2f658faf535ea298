package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	httpapi "github.com/turtacn/Revenue-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/http/handlers"
)

// newAPIClient serves the real router over httptest so the SDK is checked
// against the handlers it targets.
func newAPIClient(t *testing.T) *Client {
	t.Helper()
	engine, err := recommendation.NewEngine(recommendation.DefaultSettings(), offer.MustDefaultCatalog())
	require.NoError(t, err)
	svc := recommendation.NewService(engine, nil,
		recommendation.WithBatchIDs(func() string { return "sdk-batch" }))

	router := httpapi.NewRouter(httpapi.RouterConfig{
		RecommendationHandler: handlers.NewRecommendationHandler(svc, nil),
		CatalogHandler:        handlers.NewCatalogHandler(svc, nil),
		HealthHandler:         handlers.NewHealthHandler("test"),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, "sdk-test", WithRetryMax(0))
	require.NoError(t, err)
	return c
}

func enterpriseCustomer(t *testing.T) CustomerInput {
	t.Helper()
	var in CustomerInput
	require.NoError(t, json.Unmarshal([]byte(`{"record":{
		"customer_id":"CUST_200","customer_name":"Harbour Logistics","customer_type":"enterprise",
		"monthly_spend":"1800","tenure_months":40,"data_usage_gb":60,"employee_count":220,
		"budget_confirmed":true,"decision_maker_identified":true}}`), &in))
	return in
}

func TestAPI_Ping(t *testing.T) {
	assert.NoError(t, newAPIClient(t).Ping(context.Background()))
}

func TestAPI_Recommend(t *testing.T) {
	c := newAPIClient(t)

	resp, err := c.Recommendations().Recommend(context.Background(), &RecommendRequest{
		Batch:              Batch{Customers: []CustomerInput{enterpriseCustomer(t)}},
		MaxRecommendations: 5,
	})

	require.NoError(t, err)
	assert.Equal(t, "sdk-batch", resp.BatchID)
	require.NotNil(t, resp.BatchResult)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "CUST_200", resp.Results[0].CustomerID)
	assert.LessOrEqual(t, len(resp.Recommendations), 5)
}

func TestAPI_RecommendEmptyBatch(t *testing.T) {
	_, err := newAPIClient(t).Recommendations().Recommend(context.Background(), &RecommendRequest{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsBadRequest())
	assert.Equal(t, "CUST_003", apiErr.Code)
}

func TestAPI_AnalyzeMatchPrioritize(t *testing.T) {
	c := newAPIClient(t).Recommendations()
	ctx := context.Background()
	in := enterpriseCustomer(t)

	analysis, err := c.Analyze(ctx, &AnalyzeRequest{Customer: in})
	require.NoError(t, err)
	assert.Equal(t, "CUST_200", analysis.CustomerID)
	assert.NotEmpty(t, analysis.Segment)

	matches, err := c.MatchOffers(ctx, &AnalyzeRequest{Customer: in})
	require.NoError(t, err)
	assert.Equal(t, "CUST_200", matches.CustomerID)
	assert.Len(t, matches.Offers, matches.Total)

	leads, err := c.PrioritizeLeads(ctx, Batch{Customers: []CustomerInput{in}})
	require.NoError(t, err)
	assert.Len(t, leads.Leads, leads.Total)
}

func TestAPI_SearchWithoutBackend(t *testing.T) {
	_, err := newAPIClient(t).Recommendations().Search(context.Background(), SearchQuery{Priority: "high", MinRevenue: 12.5})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotImplemented())
}

func TestAPI_Catalog(t *testing.T) {
	c := newAPIClient(t).Catalog()
	ctx := context.Background()

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, stats.TotalProducts)

	list, err := c.ListProducts(ctx, ProductFilter{Category: offer.CategoryRoamingServices})
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "THREE_GLOBAL_ROAMING_PREMIUM", list.Products[0].ID)

	p, err := c.GetProduct(ctx, "THREE_SMART_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "STUDENT2024", p.CampaignCode)

	_, err = c.GetProduct(ctx, "THREE_NOPE")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())

	campaigns, err := c.ListCampaigns(ctx, "", true)
	require.NoError(t, err)
	assert.Equal(t, 2, campaigns.Total)

	campaign, err := c.GetCampaign(ctx, "DEVICE2024")
	require.NoError(t, err)
	assert.Equal(t, "DEVICE2024", campaign.CampaignCode)
	assert.Equal(t, 1, campaign.Total)
}

func TestSearchValues(t *testing.T) {
	v := searchValues(SearchQuery{Text: "roaming", Priority: "high", MinRevenue: 12.5, Size: 10})

	assert.Equal(t, "roaming", v.Get("q"))
	assert.Equal(t, "high", v.Get("priority"))
	assert.Equal(t, "12.5", v.Get("min_revenue"))
	assert.Equal(t, "10", v.Get("size"))
	assert.Empty(t, v.Get("from"))
	assert.Empty(t, v.Get("batch_id"))
}
