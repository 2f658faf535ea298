package offer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
)

// Pricing is the personalized price of one product.
type Pricing struct {
	BasePrice             decimal.Decimal `json:"base_price"`
	RecommendedPrice      decimal.Decimal `json:"recommended_price"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	EstimatedMonthlyValue decimal.Decimal `json:"estimated_monthly_value"`
	// Capped reports whether the discount hit MaxDiscountRate.
	Capped bool `json:"capped"`
}

// Price computes the personalized price of p.  Discount components add up
// and the total never exceeds MaxDiscountRate, nor HardDiscountCap, of the
// base price.  The estimated monthly value is based on the undiscounted price.
func Price(p Product, v customer.FeatureVector, score lead.LeadScore, params BusinessParams, now time.Time) Pricing {
	base := p.MonthlyPrice
	discount := decimal.Zero

	if v.TenureMonths >= params.LoyaltyTenureMonths {
		discount = discount.Add(base.Mul(params.LoyaltyDiscountRate))
	}
	if v.ChurnRiskScore >= params.RetentionChurnThreshold {
		byChurn := base.Mul(decimal.NewFromFloat(v.ChurnRiskScore * params.RetentionChurnFactor))
		discount = discount.Add(decimal.Min(base.Mul(params.RetentionMaxDiscountRate), byChurn))
	}
	if score.RevenuePotential >= params.HighValueRevenueScore {
		discount = discount.Add(base.Mul(params.HighValueDiscountRate))
	}
	if p.PromotionActive(now) {
		discount = discount.Add(p.PromotionalDiscount)
	}

	discount = discount.Round(2)
	out := Pricing{BasePrice: base}
	rate := decimal.Min(params.MaxDiscountRate, HardDiscountCap)
	if ceiling := base.Mul(rate).Truncate(2); discount.GreaterThan(ceiling) {
		discount = ceiling
		out.Capped = true
	}
	out.DiscountAmount = discount
	out.RecommendedPrice = base.Sub(discount)

	out.EstimatedMonthlyValue = base
	if allowance := dataAllowance(p); allowance > 0 && v.DataUsageGB/allowance > 0.8 {
		out.EstimatedMonthlyValue = base.Mul(decimal.RequireFromString("1.2")).Round(2)
	}
	return out
}

func dataAllowance(p Product) float64 {
	if p.Unlimited() {
		return 0
	}
	return *p.DataAllowanceGB
}
