package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	domainrec "github.com/turtacn/Revenue-Intelligence/internal/domain/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/Revenue-Intelligence/internal/testutil"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// MockService is a mock implementation of recommendation.Service.
type MockService struct {
	mock.Mock
}

func (m *MockService) Recommend(ctx context.Context, req *recommendation.RecommendRequest) (*recommendation.RecommendResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recommendation.RecommendResponse), args.Error(1)
}

func (m *MockService) AnalyzeCustomer(ctx context.Context, req *recommendation.AnalyzeRequest) (*recommendation.Analysis, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recommendation.Analysis), args.Error(1)
}

func (m *MockService) MatchOffers(ctx context.Context, req *recommendation.AnalyzeRequest) ([]offer.OfferMatch, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]offer.OfferMatch), args.Error(1)
}

func (m *MockService) PrioritizeLeads(ctx context.Context, batch recommendation.Batch) ([]lead.PrioritizedLead, error) {
	args := m.Called(ctx, batch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]lead.PrioritizedLead), args.Error(1)
}

func (m *MockService) Export(ctx context.Context, req *recommendation.ExportRequest) (*recommendation.ExportResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recommendation.ExportResult), args.Error(1)
}

func (m *MockService) Catalog() *offer.Catalog {
	return offer.MustDefaultCatalog()
}

func (m *MockService) Shutdown(ctx context.Context) error {
	return nil
}

// MockSearcher is a mock implementation of RecommendationSearcher.
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchRecommendations(ctx context.Context, q opensearch.RecommendationQuery) (*opensearch.RecommendationSearchResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*opensearch.RecommendationSearchResult), args.Error(1)
}

func newRecommendationRouter(svc recommendation.Service, opts ...RecommendationHandlerOption) (http.Handler, *testutil.MockLogger) {
	log := testutil.NewMockLogger()
	r := chi.NewRouter()
	NewRecommendationHandler(svc, log, opts...).RegisterRoutes(r)
	return r, log
}

func postJSON(h http.Handler, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

const oneCustomerBatch = `{"batch":{"customers":[{"record":{"customer_id":"CUST_001","monthly_spend":"450"}}]},"max_recommendations":5}`

func TestRecommendationHandler_Recommend(t *testing.T) {
	svc := new(MockService)
	svc.On("Recommend", mock.Anything, mock.MatchedBy(func(req *recommendation.RecommendRequest) bool {
		return req.MaxRecommendations == 5 &&
			len(req.Batch.Customers) == 1 &&
			req.Batch.Customers[0].Record.CustomerID == "CUST_001"
	})).Return(&recommendation.RecommendResponse{
		BatchID: "batch-9",
		BatchResult: &recommendation.BatchResult{
			Recommendations: []domainrec.ActionableRecommendation{{RecommendationID: "rec-1", CustomerID: "CUST_001"}},
			Processed:       1,
		},
	}, nil)
	h, _ := newRecommendationRouter(svc)

	w := postJSON(h, "/recommendations", oneCustomerBatch)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		BatchID         string                               `json:"batch_id"`
		Processed       int                                  `json:"processed"`
		Recommendations []domainrec.ActionableRecommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "batch-9", resp.BatchID)
	assert.Equal(t, 1, resp.Processed)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, "rec-1", resp.Recommendations[0].RecommendationID)
	svc.AssertExpectations(t)
}

func TestRecommendationHandler_Recommend_MalformedFieldIsNotFatal(t *testing.T) {
	var got *recommendation.RecommendRequest
	svc := new(MockService)
	svc.On("Recommend", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*recommendation.RecommendRequest) }).
		Return(&recommendation.RecommendResponse{BatchResult: &recommendation.BatchResult{Processed: 2}}, nil)
	h, _ := newRecommendationRouter(svc)

	w := postJSON(h, "/recommendations", `{"batch":{"customers":[
		{"record":{"customer_id":"GOOD","monthly_spend":800}},
		{"record":{"customer_id":"BAD","tenure_months":"28"},"engagement":{"complaint_count":"many"}}
	]}}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, got)
	require.Len(t, got.Batch.Customers, 2)

	good := got.Batch.Customers[0].Record
	assert.Empty(t, good.Warnings)
	require.NotNil(t, good.MonthlySpend)
	assert.Equal(t, "800", good.MonthlySpend.String())

	bad := got.Batch.Customers[1]
	assert.Equal(t, "BAD", bad.Record.CustomerID)
	assert.Nil(t, bad.Record.TenureMonths)
	require.Len(t, bad.Record.Warnings, 1)
	assert.Equal(t, "tenure_months", bad.Record.Warnings[0].Field)
	require.NotNil(t, bad.Engagement)
	assert.Nil(t, bad.Engagement.ComplaintCount)
	require.Len(t, bad.Engagement.Warnings, 1)
	assert.Equal(t, "engagement.complaint_count", bad.Engagement.Warnings[0].Field)
	svc.AssertExpectations(t)
}

func TestRecommendationHandler_Recommend_Errors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockService)
		h, _ := newRecommendationRouter(svc)
		w := postJSON(h, "/recommendations", `{"batch":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "COMMON_002", decodeError(t, w).Code)
		svc.AssertNotCalled(t, "Recommend", mock.Anything, mock.Anything)
	})

	t.Run("empty body", func(t *testing.T) {
		h, _ := newRecommendationRouter(new(MockService))
		w := postJSON(h, "/recommendations", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "request body is empty", decodeError(t, w).Message)
	})

	t.Run("body too large", func(t *testing.T) {
		h, _ := newRecommendationRouter(new(MockService), WithMaxBodySize(16))
		w := postJSON(h, "/recommendations", oneCustomerBatch)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("client error keeps message", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Recommend", mock.Anything, mock.Anything).
			Return(nil, errors.New(errors.ErrCodeEmptyBatch, "batch has no customers"))
		h, _ := newRecommendationRouter(svc)

		w := postJSON(h, "/recommendations", `{"batch":{"customers":[]}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "CUST_003", resp.Code)
		assert.Equal(t, "batch has no customers", resp.Message)
	})

	t.Run("server error is masked and logged", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Recommend", mock.Anything, mock.Anything).
			Return(nil, errors.Wrap(assert.AnError, errors.ErrCodeInternal, "pool exhausted at 10.0.0.3"))
		h, log := newRecommendationRouter(svc)

		w := postJSON(h, "/recommendations", oneCustomerBatch)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "COMMON_001", resp.Code)
		assert.NotContains(t, resp.Message, "10.0.0.3")
		assert.True(t, log.HasMessage("error", "request failed"))
	})
}

func TestRecommendationHandler_MatchOffers(t *testing.T) {
	svc := new(MockService)
	svc.On("MatchOffers", mock.Anything, mock.Anything).Return([]offer.OfferMatch{
		{Product: offer.Product{ID: "THREE_SMART_VALUE"}, MatchScore: 0.81},
	}, nil)
	h, _ := newRecommendationRouter(svc)

	w := postJSON(h, "/offers/match", `{"customer":{"record":{"customer_id":"CUST_007"}}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		CustomerID string             `json:"customer_id"`
		Offers     []offer.OfferMatch `json:"offers"`
		Total      int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CUST_007", resp.CustomerID)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "THREE_SMART_VALUE", resp.Offers[0].Product.ID)
}

func TestRecommendationHandler_AnalyzeCustomer(t *testing.T) {
	svc := new(MockService)
	svc.On("AnalyzeCustomer", mock.Anything, mock.MatchedBy(func(req *recommendation.AnalyzeRequest) bool {
		return req.Customer.Record.CustomerID == "CUST_002" && req.Market != nil
	})).Return(&recommendation.Analysis{CustomerID: "CUST_002", Segment: "young_digital"}, nil)
	h, _ := newRecommendationRouter(svc)

	w := postJSON(h, "/customers/analyze", `{"customer":{"record":{"customer_id":"CUST_002"}},"market_context":{}}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"young_digital"`)
	svc.AssertExpectations(t)
}

func TestRecommendationHandler_PrioritizeLeads(t *testing.T) {
	svc := new(MockService)
	svc.On("PrioritizeLeads", mock.Anything, mock.Anything).Return([]lead.PrioritizedLead{
		{LeadID: "lead-1", CustomerID: "CUST_001", QueuePosition: 1},
		{LeadID: "lead-2", CustomerID: "CUST_002", QueuePosition: 2},
	}, nil)
	h, _ := newRecommendationRouter(svc)

	w := postJSON(h, "/leads/prioritize", `{"customers":[{"record":{"customer_id":"CUST_001"}},{"record":{"customer_id":"CUST_002"}}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Leads []lead.PrioritizedLead `json:"leads"`
		Total int                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "lead-2", resp.Leads[1].LeadID)
}

func TestRecommendationHandler_Export(t *testing.T) {
	svc := new(MockService)
	svc.On("Export", mock.Anything, mock.MatchedBy(func(req *recommendation.ExportRequest) bool {
		return req.Name == "weekly" && len(req.Recommendations) == 1
	})).Return(&recommendation.ExportResult{Location: "exports/2024/06/01/weekly.json", Bytes: 512}, nil)
	h, _ := newRecommendationRouter(svc)

	w := postJSON(h, "/recommendations/export", `{"name":"weekly","recommendations":[{"recommendation_id":"rec-1"}]}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res recommendation.ExportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "exports/2024/06/01/weekly.json", res.Location)
}

func TestRecommendationHandler_Search(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h, _ := newRecommendationRouter(new(MockService))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recommendations/search?q=5g", nil))
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	t.Run("forwards filters", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("SearchRecommendations", mock.Anything, opensearch.RecommendationQuery{
			Text:       "5g",
			Priority:   "high",
			MinRevenue: 1500.5,
			From:       20,
			Size:       10,
		}).Return(&opensearch.RecommendationSearchResult{Total: 42}, nil)
		h, _ := newRecommendationRouter(new(MockService), WithSearcher(searcher))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
			"/recommendations/search?q=5g&priority=high&min_revenue=1500.5&from=20&size=10", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total":42`)
		searcher.AssertExpectations(t)
	})

	t.Run("bad paging", func(t *testing.T) {
		searcher := new(MockSearcher)
		h, _ := newRecommendationRouter(new(MockService), WithSearcher(searcher))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recommendations/search?size=ten", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		searcher.AssertNotCalled(t, "SearchRecommendations", mock.Anything, mock.Anything)
	})
}
