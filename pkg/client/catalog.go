package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
)

type (
	Product       = offer.Product
	Category      = offer.Category
	CatalogStats  = offer.Stats
	ProductFilter = offer.ProductFilter
)

// ProductList is a product or campaign listing.
type ProductList struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

// Campaign is the product set of one campaign code.
type Campaign struct {
	CampaignCode string    `json:"campaign_code"`
	Products     []Product `json:"products"`
	Total        int       `json:"total"`
}

// CatalogClient calls the read-only catalog endpoints.
type CatalogClient struct {
	client *Client
}

// ListProducts returns the products matching f.
func (c *CatalogClient) ListProducts(ctx context.Context, f ProductFilter) (*ProductList, error) {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", string(f.Category))
	}
	if f.Segment != "" {
		q.Set("segment", f.Segment)
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	var resp ProductList
	if err := c.client.get(ctx, APIPrefix+"/catalog/products", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProduct returns one product by id.
func (c *CatalogClient) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var resp Product
	if err := c.client.get(ctx, APIPrefix+"/catalog/products/"+url.PathEscape(productID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns the catalog summary.
func (c *CatalogClient) Stats(ctx context.Context) (*CatalogStats, error) {
	var resp CatalogStats
	if err := c.client.get(ctx, APIPrefix+"/catalog/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCampaigns returns promotional products for segment, or for every
// segment when it is empty.  activeOnly drops expired promotions.
func (c *CatalogClient) ListCampaigns(ctx context.Context, segment string, activeOnly bool) (*ProductList, error) {
	q := url.Values{"active": {strconv.FormatBool(activeOnly)}}
	if segment != "" {
		q.Set("segment", segment)
	}
	var resp ProductList
	if err := c.client.get(ctx, APIPrefix+"/catalog/campaigns", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCampaign returns the products of one campaign code.
func (c *CatalogClient) GetCampaign(ctx context.Context, code string) (*Campaign, error) {
	var resp Campaign
	if err := c.client.get(ctx, APIPrefix+"/catalog/campaigns/"+url.PathEscape(code), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
