package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// CatalogSource exposes the loaded product catalog.
type CatalogSource interface {
	Catalog() *offer.Catalog
}

// CatalogHandler serves read-only catalog queries.
type CatalogHandler struct {
	source CatalogSource
	logger logging.Logger
	now    func() time.Time
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(source CatalogSource, logger logging.Logger) *CatalogHandler {
	return &CatalogHandler{source: source, logger: logging.OrNop(logger), now: time.Now}
}

// RegisterRoutes mounts the handler under r.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)
		r.Get("/stats", h.Stats)
		r.Get("/campaigns", h.ListCampaigns)
		r.Get("/campaigns/{code}", h.GetCampaign)
	})
}

// ProductListResponse is the body of the product and campaign listings.
type ProductListResponse struct {
	Products []offer.Product `json:"products"`
	Total    int             `json:"total"`
}

// ListProducts handles GET /catalog/products?category=&segment=&q=.
// Filters combine with AND.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	qv := r.URL.Query()
	cat := offer.Category(qv.Get("category"))
	if cat != "" && !cat.Valid() {
		writeAppError(w, h.logger, r, errors.InvalidParam("unknown product category").WithDetail(string(cat)))
		return
	}
	products := h.source.Catalog().Find(offer.ProductFilter{
		Category: cat,
		Segment:  qv.Get("segment"),
		Query:    qv.Get("q"),
	})
	writeJSON(w, http.StatusOK, ProductListResponse{Products: products, Total: len(products)})
}

// GetProduct handles GET /catalog/products/{productID}.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.source.Catalog().Get(chi.URLParam(r, "productID"))
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Stats handles GET /catalog/stats.
func (h *CatalogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Catalog().Stats(h.now()))
}

// ListCampaigns handles GET /catalog/campaigns?segment=&active=.  Only
// running promotions are listed unless active=false.
func (h *CatalogHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active", true)
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	products := h.source.Catalog().CampaignOffers(offer.CampaignQuery{
		Segment:    r.URL.Query().Get("segment"),
		ActiveOnly: active,
	}, h.now())
	writeJSON(w, http.StatusOK, ProductListResponse{Products: products, Total: len(products)})
}

// GetCampaign handles GET /catalog/campaigns/{code}.
func (h *CatalogHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	products, err := h.source.Catalog().Campaign(code, h.now())
	if err != nil {
		writeAppError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_code": code,
		"products":      products,
		"total":         len(products),
	})
}
