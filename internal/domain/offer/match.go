package offer

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
)

// OfferType is the commercial framing of a matched product.
type OfferType string

const (
	OfferNewSubscription     OfferType = "new_subscription"
	OfferPlanUpgrade         OfferType = "plan_upgrade"
	OfferAddOnService        OfferType = "add_on_service"
	OfferDeviceBundle        OfferType = "device_bundle"
	OfferLoyaltyReward       OfferType = "loyalty_reward"
	OfferRetention           OfferType = "retention_offer"
	OfferCrossSell           OfferType = "cross_sell"
	OfferPromotionalDiscount OfferType = "promotional_discount"
)

// OfferMatch is one product recommended to one customer.
type OfferMatch struct {
	Product     Product           `json:"product"`
	OfferType   OfferType         `json:"offer_type"`
	Eligibility EligibilityStatus `json:"eligibility_status"`
	MatchScore  float64           `json:"match_score"`
	Confidence  float64           `json:"confidence_level"`

	RecommendedPrice      decimal.Decimal `json:"recommended_price"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	EstimatedMonthlyValue decimal.Decimal `json:"estimated_monthly_value"`

	ValidFrom  time.Time `json:"offer_valid_from"`
	ValidUntil time.Time `json:"offer_valid_until"`
	Conditions []string  `json:"conditions"`

	PresentationPriority int      `json:"presentation_priority"`
	SalesApproach        string   `json:"sales_approach"`
	SellingPoints        []string `json:"key_selling_points"`
	Objections           []string `json:"potential_objections"`

	CrossSell       []string `json:"cross_sell_opportunities"`
	UpsellPotential *string  `json:"upsell_potential,omitempty"`
	RetentionValue  float64  `json:"retention_value"`

	Compliance Compliance `json:"compliance"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Matcher
// ─────────────────────────────────────────────────────────────────────────────

// Matcher evaluates every catalog product for a customer.  It is safe for
// concurrent use.
type Matcher struct {
	catalog *Catalog
	params  BusinessParams
	logger  logging.Logger
	now     func() time.Time
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithClock replaces time.Now as the source of validity windows and
// promotion checks.
func WithClock(now func() time.Time) MatcherOption {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMatcher validates params and returns a Matcher over catalog.
func NewMatcher(catalog *Catalog, params BusinessParams, logger logging.Logger, opts ...MatcherOption) (*Matcher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		var err error
		if catalog, err = NewCatalog(DefaultProducts()); err != nil {
			return nil, err
		}
	}
	m := &Matcher{
		catalog: catalog,
		params:  params,
		logger:  logging.OrNop(logger).Named("offer_matcher"),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Catalog returns the catalog the matcher reads.
func (m *Matcher) Catalog() *Catalog { return m.catalog }

// Params returns the business rules in force.
func (m *Matcher) Params() BusinessParams { return m.params }

// Match returns at most MaxOffers eligible products for the customer, best
// first.  NotEligible products and products scoring below MinMatchScore are
// never returned.
func (m *Matcher) Match(v customer.FeatureVector, score lead.LeadScore, seg customer.Segment, current []string, mc *customer.MarketContext) []OfferMatch {
	now := m.now()
	out := []OfferMatch{}
	for _, p := range m.catalog.products {
		elig := Evaluate(p, v, seg, current, m.params)
		if elig.Status == NotEligible {
			continue
		}
		ms := MatchScore(p, v, score, seg)
		if ms < m.params.MinMatchScore {
			continue
		}
		out = append(out, m.build(p, v, score, seg, current, mc, elig, ms, now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.PresentationPriority != b.PresentationPriority {
			return a.PresentationPriority < b.PresentationPriority
		}
		return a.Product.ID < b.Product.ID
	})
	if len(out) > m.params.MaxOffers {
		out = out[:m.params.MaxOffers]
	}

	m.logger.Debug("offers matched",
		logging.CustomerID(v.CustomerID),
		logging.String("segment", seg.String()),
		logging.Int("matches", len(out)))
	return out
}

func (m *Matcher) build(p Product, v customer.FeatureVector, score lead.LeadScore, seg customer.Segment,
	current []string, mc *customer.MarketContext, elig Eligibility, ms float64, now time.Time) OfferMatch {
	price := Price(p, v, score, m.params, now)
	return OfferMatch{
		Product:               p,
		OfferType:             m.offerType(p, v, current, now),
		Eligibility:           elig.Status,
		MatchScore:            ms,
		Confidence:            elig.ConfidenceFactor,
		RecommendedPrice:      price.RecommendedPrice,
		DiscountAmount:        price.DiscountAmount,
		EstimatedMonthlyValue: price.EstimatedMonthlyValue,
		ValidFrom:             now,
		ValidUntil:            now.AddDate(0, 0, m.params.OfferValidityDays),
		Conditions:            elig.Conditions,
		PresentationPriority:  PresentationPriority(ms, score.Priority),
		SalesApproach:         SalesApproach(score.Priority, seg),
		SellingPoints:         sellingPoints(p, v),
		Objections:            objections(v, mc),
		CrossSell:             crossSell(p, v),
		UpsellPotential:       upsellPotential(p, v),
		RetentionValue:        retentionValue(p, v),
		Compliance:            ValidateCompliance(p, v, m.params),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Scoring rules
// ─────────────────────────────────────────────────────────────────────────────

// MatchScore rates how well p fits the customer on a 0..100 scale.
func MatchScore(p Product, v customer.FeatureVector, score lead.LeadScore, seg customer.Segment) float64 {
	total := 0.0
	s := seg.String()
	switch {
	case contains(p.PrioritySegments, s):
		total += 30
	case contains(p.TargetSegments, s):
		total += 20
	case !contains(p.ExcludedSegments, s):
		total += 10
	}

	if !p.MinMonthlySpend.IsPositive() {
		total += 25
	} else {
		ratio := v.SpendFloat() / p.MinMonthlySpend.InexactFloat64()
		switch {
		case ratio >= 1.5:
			total += 25
		case ratio >= 1.0:
			total += 20
		case ratio >= 0.8:
			total += 10
		}
	}

	switch {
	case score.OverallScore >= 80:
		total += 20
	case score.OverallScore >= 60:
		total += 15
	case score.OverallScore >= 40:
		total += 10
	}

	if allowance := dataAllowance(p); allowance > 0 {
		switch {
		case v.DataUsageGB > allowance*0.8:
			total += 15
		case v.DataUsageGB > allowance*0.5:
			total += 10
		}
	} else if v.DataUsageGB > 50 {
		total += 15
	}

	switch {
	case v.SatisfactionScore >= 8:
		total += 10
	case v.SatisfactionScore >= 6:
		total += 5
	}

	if total > 100 {
		return 100
	}
	return total
}

func (m *Matcher) offerType(p Product, v customer.FeatureVector, current []string, now time.Time) OfferType {
	switch {
	case v.ChurnRiskScore >= m.params.RetentionChurnThreshold:
		return OfferRetention
	case v.TenureMonths >= m.params.LoyaltyTenureMonths:
		return OfferLoyaltyReward
	case len(current) > 0 && p.Category != CategoryMobilePlans:
		return OfferCrossSell
	case v.UpsellPropensity >= m.params.UpgradeUpsellThreshold && p.Category == CategoryMobilePlans:
		return OfferPlanUpgrade
	case p.Category == CategoryDeviceBundles:
		return OfferDeviceBundle
	case p.PromotionActive(now):
		return OfferPromotionalDiscount
	case p.Category == CategoryValueAddedServices:
		return OfferAddOnService
	default:
		return OfferNewSubscription
	}
}

// PresentationPriority ranks an offer for the sales script, 1 first.
func PresentationPriority(matchScore float64, p lead.Priority) int {
	switch {
	case matchScore >= 80 && p == lead.PriorityCritical:
		return 1
	case matchScore >= 70 && (p == lead.PriorityCritical || p == lead.PriorityHigh):
		return 2
	case matchScore >= 60:
		return 3
	case matchScore >= 40:
		return 4
	default:
		return 5
	}
}

// SalesApproach names the engagement style for the lead.
func SalesApproach(p lead.Priority, seg customer.Segment) string {
	switch {
	case p == lead.PriorityCritical:
		return "Immediate personalized consultation with retention specialist"
	case p == lead.PriorityHigh:
		return "Priority follow-up with customized presentation"
	case seg == customer.SegmentPremiumBusiness:
		return "Executive-level consultation with business case presentation"
	case seg == customer.SegmentYoungDigital:
		return "Digital-first engagement with interactive demonstrations"
	default:
		return "Standard consultative sales approach"
	}
}

func sellingPoints(p Product, v customer.FeatureVector) []string {
	out := []string{}
	if p.HasFeature("Unlimited") {
		out = append(out, "Never worry about data limits again")
	}
	if p.HasFeature("Priority") {
		out = append(out, "Get premium network priority during peak times")
	}
	if v.RoamingUsage == 0 && p.HasFeature("Roaming") {
		out = append(out, "Perfect for your upcoming international travel")
	}
	if v.SatisfactionScore < 7 {
		out = append(out, "Enhanced customer support and service quality")
	}
	return out
}

func objections(v customer.FeatureVector, mc *customer.MarketContext) []string {
	out := []string{}
	if v.SpendCategory == customer.SpendBudget || v.SpendCategory == customer.SpendMinimal {
		out = append(out, "Price concerns - emphasize value and long-term savings")
	}
	if v.ChurnRiskScore > 0.5 {
		out = append(out, "Loyalty concerns - highlight retention benefits")
	}
	if v.TenureCategory == customer.TenureNew {
		out = append(out, "Commitment hesitation - offer flexible terms")
	}
	if mc != nil && mc.CompetitiveCampaignActive {
		out = append(out, "Competitor campaign - stress network quality and local support")
	}
	return out
}

func crossSell(p Product, v customer.FeatureVector) []string {
	out := []string{}
	switch p.Category {
	case CategoryMobilePlans:
		if v.RoamingUsage == 0 {
			out = append(out, "International Roaming Package")
		}
		if v.DataUsageGB > 40 {
			out = append(out, "Data Booster Add-on")
		}
		out = append(out, "Device Insurance")
	case CategoryBusinessSolutions:
		out = append(out, "Cloud Storage Upgrade", "Advanced Analytics", "VPN Service")
	case CategoryFamilyPlans:
		out = append(out, "Parental Control Premium", "Family Safety Services", "Additional Lines")
	}
	return out
}

func upsellPotential(p Product, v customer.FeatureVector) *string {
	var s string
	switch {
	case v.UpsellPropensity >= 0.7 && p.Category == CategoryMobilePlans:
		s = "High potential for premium plan upgrade"
	case v.UpsellPropensity >= 0.7 && p.Category == CategoryBusinessSolutions:
		s = "Enterprise solution expansion opportunity"
	case v.UpsellPropensity >= 0.5:
		s = "Moderate upsell potential with proper positioning"
	default:
		return nil
	}
	return &s
}

func retentionValue(p Product, v customer.FeatureVector) float64 {
	x := 0.5
	if p.MonthlyPrice.GreaterThanOrEqual(decimal.NewFromInt(800)) {
		x += 0.3
	}
	x += (1 - v.ChurnRiskScore) * 0.2
	if v.SatisfactionScore >= 8 {
		x += 0.1
	}
	if x > 1 {
		return 1
	}
	return x
}

// OfferNames returns the product names of matches, in order.
func OfferNames(matches []OfferMatch) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Product.Name)
	}
	return out
}

// String renders a short single-line form for logs and CLI output.
func (o OfferMatch) String() string {
	return fmt.Sprintf("%s (%s, match %.0f, HKD %s)", o.Product.Name, o.OfferType, o.MatchScore, o.RecommendedPrice.StringFixed(2))
}
