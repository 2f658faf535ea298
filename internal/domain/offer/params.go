package offer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// HardDiscountCap is the largest total discount any offer may carry, as a
// share of the base price.  MaxDiscountRate may tighten it, never loosen it.
var HardDiscountCap = decimal.RequireFromString("0.30")

// BusinessParams holds the commercial and regulatory rules applied while
// matching.
type BusinessParams struct {
	// PremiumSpendThreshold separates a hard minimum-spend failure from a
	// conditional one.
	PremiumSpendThreshold decimal.Decimal `json:"premium_spend_threshold"`
	LoyaltyTenureMonths   float64         `json:"loyalty_tenure_months"`

	MaxOffers         int     `json:"maximum_concurrent_offers"`
	OfferValidityDays int     `json:"offer_validity_days"`
	MinMatchScore     float64 `json:"min_match_score"`

	// MaxDiscountRate caps the total discount as a share of the base price.
	// It must not exceed HardDiscountCap.
	MaxDiscountRate          decimal.Decimal `json:"discount_limit_percentage"`
	LoyaltyDiscountRate      decimal.Decimal `json:"loyalty_discount_percentage"`
	RetentionMaxDiscountRate decimal.Decimal `json:"retention_max_discount"`
	RetentionChurnFactor     float64         `json:"retention_churn_factor"`
	HighValueDiscountRate    decimal.Decimal `json:"high_value_discount_percentage"`
	HighValueRevenueScore    float64         `json:"high_value_revenue_score"`

	RetentionChurnThreshold   float64 `json:"retention_churn_threshold"`
	CreditCheckChurnThreshold float64 `json:"credit_check_churn_threshold"`
	UpgradeUpsellThreshold    float64 `json:"upgrade_upsell_threshold"`

	ContractDisclosureRequired bool    `json:"contract_disclosure_required"`
	DataPrivacyConsentRequired bool    `json:"data_privacy_compliance"`
	MinComplianceScore         float64 `json:"min_compliance_score"`
}

// DefaultBusinessParams returns the default commercial rules.
func DefaultBusinessParams() BusinessParams {
	return BusinessParams{
		PremiumSpendThreshold: decimal.NewFromInt(1000),
		LoyaltyTenureMonths:   24,

		MaxOffers:         3,
		OfferValidityDays: 30,
		MinMatchScore:     30,

		MaxDiscountRate:          HardDiscountCap,
		LoyaltyDiscountRate:      decimal.RequireFromString("0.10"),
		RetentionMaxDiscountRate: decimal.RequireFromString("0.25"),
		RetentionChurnFactor:     0.3,
		HighValueDiscountRate:    decimal.RequireFromString("0.05"),
		HighValueRevenueScore:    80,

		RetentionChurnThreshold:   0.7,
		CreditCheckChurnThreshold: 0.7,
		UpgradeUpsellThreshold:    0.6,

		ContractDisclosureRequired: true,
		DataPrivacyConsentRequired: true,
		MinComplianceScore:         80,
	}
}

// Validate returns a CFG_001 error describing the first bad value.
func (p BusinessParams) Validate() error {
	one := decimal.NewFromInt(1)
	rate := func(name string, r decimal.Decimal) error {
		if r.IsNegative() || r.GreaterThan(one) {
			return errors.Configuration(fmt.Sprintf("offer %s must be in [0,1], got %s", name, r))
		}
		return nil
	}
	if !p.MaxDiscountRate.IsPositive() || p.MaxDiscountRate.GreaterThan(HardDiscountCap) {
		return errors.Configuration(fmt.Sprintf("offer max discount rate must be in (0,%s], got %s", HardDiscountCap, p.MaxDiscountRate))
	}
	for _, c := range []struct {
		name string
		r    decimal.Decimal
	}{
		{"max discount rate", p.MaxDiscountRate},
		{"loyalty discount rate", p.LoyaltyDiscountRate},
		{"retention max discount rate", p.RetentionMaxDiscountRate},
		{"high value discount rate", p.HighValueDiscountRate},
	} {
		if err := rate(c.name, c.r); err != nil {
			return err
		}
	}
	if p.PremiumSpendThreshold.IsNegative() {
		return errors.Configuration("offer premium spend threshold must be >= 0")
	}
	if p.MaxOffers < 1 {
		return errors.Configuration(fmt.Sprintf("offer max offers must be >= 1, got %d", p.MaxOffers))
	}
	if p.OfferValidityDays < 1 {
		return errors.Configuration("offer validity days must be >= 1")
	}
	if p.MinMatchScore < 0 || p.MinMatchScore > 100 {
		return errors.Configuration("offer min match score must be in [0,100]")
	}
	if p.RetentionChurnFactor < 0 {
		return errors.Configuration("offer retention churn factor must be >= 0")
	}
	return nil
}
