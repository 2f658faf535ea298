package offer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// Catalog is the immutable, validated product list.  It is safe for
// concurrent reads.
type Catalog struct {
	products []Product
	byID     map[string]int
}

// NewCatalog validates and normalizes products.  Missing contract length,
// currency and subscription limits take their defaults.  Any invalid row
// fails the whole catalog with CAT_001; an empty list fails with CAT_004.
func NewCatalog(products []Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, errors.New(errors.ErrCodeCatalogEmpty, "product catalog is empty")
	}
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range products {
		p = normalize(p)
		if err := validateProduct(p); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCatalogInvalid, fmt.Sprintf("catalog row %d", i))
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, errors.New(errors.ErrCodeCatalogInvalid, fmt.Sprintf("duplicate product id %q", p.ID))
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// MustDefaultCatalog returns the built-in catalog.  It panics only if
// DefaultProducts is itself invalid.
func MustDefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultProducts())
	if err != nil {
		panic(err)
	}
	return c
}

// Prepare applies the catalog defaults to p and validates the result.
func Prepare(p Product) (Product, error) {
	p = normalize(p)
	if err := validateProduct(p); err != nil {
		return p, errors.Wrap(err, errors.ErrCodeCatalogInvalid, "invalid product")
	}
	return p, nil
}

func normalize(p Product) Product {
	p.ID = strings.TrimSpace(p.ID)
	if p.ContractMonths == 0 {
		p.ContractMonths = 12
	}
	if p.Currency == "" {
		p.Currency = "HKD"
	}
	if p.MaxConcurrentSubscriptions == 0 {
		p.MaxConcurrentSubscriptions = 1
	}
	for _, list := range []*[]string{
		&p.Features, &p.RequiredSegments, &p.ExcludedSegments,
		&p.LocationRestrictions, &p.TargetSegments, &p.PrioritySegments,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
	return p
}

func validateProduct(p Product) error {
	switch {
	case p.ID == "":
		return errors.InvalidParam("product id is required")
	case strings.TrimSpace(p.Name) == "":
		return errors.InvalidParam(fmt.Sprintf("product %s: name is required", p.ID))
	case !p.Category.Valid():
		return errors.InvalidParam(fmt.Sprintf("product %s: unknown category %q", p.ID, p.Category))
	case !p.MonthlyPrice.IsPositive():
		return errors.InvalidParam(fmt.Sprintf("product %s: monthly price must be positive", p.ID))
	case p.SetupFee.IsNegative() || p.MinMonthlySpend.IsNegative() || p.PromotionalDiscount.IsNegative():
		return errors.InvalidParam(fmt.Sprintf("product %s: negative money value", p.ID))
	case p.MaxMonthlySpend != nil && p.MaxMonthlySpend.LessThan(p.MinMonthlySpend):
		return errors.InvalidParam(fmt.Sprintf("product %s: max spend below min spend", p.ID))
	case p.ContractMonths < 0 || p.RequiredTenureMonths < 0 || p.MaxConcurrentSubscriptions < 0:
		return errors.InvalidParam(fmt.Sprintf("product %s: negative term", p.ID))
	case p.DataAllowanceGB != nil && *p.DataAllowanceGB <= 0:
		return errors.InvalidParam(fmt.Sprintf("product %s: data allowance must be positive", p.ID))
	}
	for _, list := range [][]string{p.RequiredSegments, p.ExcludedSegments, p.PrioritySegments} {
		for _, s := range list {
			if _, ok := customer.ParseSegment(s); !ok {
				return errors.InvalidParam(fmt.Sprintf("product %s: unknown segment %q", p.ID, s))
			}
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// Products returns a copy of every product in catalog order.
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }

// Get returns the product with id or a CAT_002 error.
func (c *Catalog) Get(id string) (Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, errors.New(errors.ErrCodeProductNotFound, fmt.Sprintf("product %q not found", id))
	}
	return c.products[i], nil
}

// ByCategory returns the products of category cat.
func (c *Catalog) ByCategory(cat Category) []Product {
	return c.filter(func(p Product) bool { return p.Category == cat })
}

// ForSegment returns the products that target or prioritize seg.
func (c *Catalog) ForSegment(seg string) []Product {
	return c.filter(func(p Product) bool {
		return contains(p.TargetSegments, seg) || contains(p.PrioritySegments, seg)
	})
}

// Search returns the products whose id, name or features contain query,
// case-insensitively.
func (c *Catalog) Search(query string) []Product {
	q := strings.TrimSpace(query)
	if q == "" {
		return c.Products()
	}
	return c.filter(func(p Product) bool {
		return containsFold(p.ID, q) || containsFold(p.Name, q) || p.HasFeature(q)
	})
}

// ProductFilter narrows Find.  Empty fields do not filter.
type ProductFilter struct {
	Category Category `json:"category,omitempty"`
	Segment  string   `json:"segment,omitempty"`
	Query    string   `json:"q,omitempty"`
}

// Find returns the products matching every non-empty field of f, in
// catalog order.
func (c *Catalog) Find(f ProductFilter) []Product {
	out := []Product{}
	for _, p := range c.Search(f.Query) {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Segment != "" && !contains(p.TargetSegments, f.Segment) && !contains(p.PrioritySegments, f.Segment) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Catalog) filter(keep func(Product) bool) []Product {
	out := []Product{}
	for _, p := range c.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Stats summarizes the catalog.
type Stats struct {
	TotalProducts   int              `json:"total_products"`
	ByCategory      map[Category]int `json:"categories"`
	MinPrice        decimal.Decimal  `json:"min_price"`
	MaxPrice        decimal.Decimal  `json:"max_price"`
	AveragePrice    decimal.Decimal  `json:"average_price"`
	ActiveCampaigns int              `json:"active_campaigns"`
}

// Stats returns counts per category and the monthly price range at now.
func (c *Catalog) Stats(now time.Time) Stats {
	s := Stats{TotalProducts: len(c.products), ByCategory: map[Category]int{}}
	sum := decimal.Zero
	for i, p := range c.products {
		s.ByCategory[p.Category]++
		sum = sum.Add(p.MonthlyPrice)
		if i == 0 || p.MonthlyPrice.LessThan(s.MinPrice) {
			s.MinPrice = p.MonthlyPrice
		}
		if i == 0 || p.MonthlyPrice.GreaterThan(s.MaxPrice) {
			s.MaxPrice = p.MonthlyPrice
		}
		if p.CampaignCode != "" && (p.PromotionEndsAt == nil || !now.After(*p.PromotionEndsAt)) {
			s.ActiveCampaigns++
		}
	}
	if len(c.products) > 0 {
		s.AveragePrice = sum.Div(decimal.NewFromInt(int64(len(c.products)))).Round(2)
	}
	return s
}

// CampaignQuery narrows CampaignOffers.  Zero values match everything.
type CampaignQuery struct {
	Code       string
	Segment    string
	ActiveOnly bool
}

// CampaignOffers returns the promotional products matching q, largest
// promotional discount first.  A product is promotional when it carries a
// campaign code or a positive discount.
func (c *Catalog) CampaignOffers(q CampaignQuery, now time.Time) []Product {
	out := c.filter(func(p Product) bool {
		if q.Code != "" && p.CampaignCode != q.Code {
			return false
		}
		if p.CampaignCode == "" && !p.PromotionalDiscount.IsPositive() {
			return false
		}
		if q.ActiveOnly && p.PromotionEndsAt != nil && now.After(*p.PromotionEndsAt) {
			return false
		}
		if q.Segment != "" && !contains(p.TargetSegments, q.Segment) && !contains(p.PrioritySegments, q.Segment) {
			return false
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PromotionalDiscount.GreaterThan(out[j].PromotionalDiscount)
	})
	return out
}

// Campaign returns the products of campaign code or a CAT_003 error when no
// product carries it.
func (c *Catalog) Campaign(code string, now time.Time) ([]Product, error) {
	out := c.CampaignOffers(CampaignQuery{Code: code, ActiveOnly: true}, now)
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeCampaignNotFound, fmt.Sprintf("no active campaign %q", code))
	}
	return out, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
