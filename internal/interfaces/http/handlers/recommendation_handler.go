package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// RecommendationSearcher queries previously indexed recommendations.
type RecommendationSearcher interface {
	SearchRecommendations(ctx context.Context, q opensearch.RecommendationQuery) (*opensearch.RecommendationSearchResult, error)
}

// RecommendationHandler serves the recommendation, analysis and lead
// endpoints.
type RecommendationHandler struct {
	svc         recommendation.Service
	searcher    RecommendationSearcher
	logger      logging.Logger
	maxBodySize int64
}

// RecommendationHandlerOption configures a RecommendationHandler.
type RecommendationHandlerOption func(*RecommendationHandler)

// WithSearcher enables GET /recommendations/search.
func WithSearcher(s RecommendationSearcher) RecommendationHandlerOption {
	return func(h *RecommendationHandler) { h.searcher = s }
}

// WithMaxBodySize caps the size of JSON request bodies.
func WithMaxBodySize(n int64) RecommendationHandlerOption {
	return func(h *RecommendationHandler) { h.maxBodySize = n }
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(svc recommendation.Service, logger logging.Logger, opts ...RecommendationHandlerOption) *RecommendationHandler {
	h := &RecommendationHandler{
		svc:         svc,
		logger:      logging.OrNop(logger),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the handler under r.
func (h *RecommendationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/recommendations", h.Recommend)
	r.Post("/recommendations/export", h.Export)
	r.Get("/recommendations/search", h.Search)
	r.Post("/offers/match", h.MatchOffers)
	r.Post("/customers/analyze", h.AnalyzeCustomer)
	r.Post("/leads/prioritize", h.PrioritizeLeads)
}

// Recommend handles POST /recommendations.
func (h *RecommendationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendation.RecommendRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	resp, err := h.svc.Recommend(r.Context(), &req)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MatchOffers handles POST /offers/match.
func (h *RecommendationHandler) MatchOffers(w http.ResponseWriter, r *http.Request) {
	var req recommendation.AnalyzeRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	matches, err := h.svc.MatchOffers(r.Context(), &req)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customer_id": req.Customer.Record.CustomerID,
		"offers":      matches,
		"total":       len(matches),
	})
}

// AnalyzeCustomer handles POST /customers/analyze.
func (h *RecommendationHandler) AnalyzeCustomer(w http.ResponseWriter, r *http.Request) {
	var req recommendation.AnalyzeRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	analysis, err := h.svc.AnalyzeCustomer(r.Context(), &req)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// PrioritizeLeads handles POST /leads/prioritize.
func (h *RecommendationHandler) PrioritizeLeads(w http.ResponseWriter, r *http.Request) {
	var batch recommendation.Batch
	if err := decodeJSON(w, r, h.maxBodySize, &batch); err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	leads, err := h.svc.PrioritizeLeads(r.Context(), batch)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"total": len(leads),
	})
}

// Export handles POST /recommendations/export.
func (h *RecommendationHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req recommendation.ExportRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	res, err := h.svc.Export(r.Context(), &req)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Search handles GET /recommendations/search.
func (h *RecommendationHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.searcher == nil {
		writeAppError(w, h.logger, r, errors.New(errors.ErrCodeNotImplemented, "recommendation search is not enabled"))
		return
	}

	from, err := queryInt(r, "from", 0)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	size, err := queryInt(r, "size", 0)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	minRevenue, err := queryFloat(r, "min_revenue")
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}

	qv := r.URL.Query()
	res, err := h.searcher.SearchRecommendations(r.Context(), opensearch.RecommendationQuery{
		Text:       qv.Get("q"),
		BatchID:    qv.Get("batch_id"),
		CustomerID: qv.Get("customer_id"),
		Priority:   qv.Get("priority"),
		ActionType: qv.Get("action_type"),
		Tag:        qv.Get("tag"),
		MinRevenue: minRevenue,
		From:       from,
		Size:       size,
	})
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
