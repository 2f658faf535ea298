// Package offer holds the product catalog and the rules that match, price
// and vet catalog products for a single customer.
package offer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups catalog products.
type Category string

const (
	CategoryMobilePlans         Category = "mobile_plans"
	CategoryDataPlans           Category = "data_plans"
	CategoryBusinessSolutions   Category = "business_solutions"
	CategoryFamilyPlans         Category = "family_plans"
	CategoryDeviceBundles       Category = "device_bundles"
	CategoryValueAddedServices  Category = "value_added_services"
	CategoryRoamingServices     Category = "roaming_services"
	CategoryEnterpriseSolutions Category = "enterprise_solutions"
)

// AllCategories lists every Category.
var AllCategories = []Category{
	CategoryMobilePlans,
	CategoryDataPlans,
	CategoryBusinessSolutions,
	CategoryFamilyPlans,
	CategoryDeviceBundles,
	CategoryValueAddedServices,
	CategoryRoamingServices,
	CategoryEnterpriseSolutions,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, x := range AllCategories {
		if x == c {
			return true
		}
	}
	return false
}

// Product is one catalog row.  Products are loaded once and never modified.
type Product struct {
	ID             string          `json:"product_id"`
	Name           string          `json:"product_name"`
	Category       Category        `json:"category"`
	MonthlyPrice   decimal.Decimal `json:"monthly_price"`
	SetupFee       decimal.Decimal `json:"setup_fee"`
	ContractMonths int             `json:"contract_duration_months"`
	Currency       string          `json:"currency"`

	Features        []string `json:"features"`
	DataAllowanceGB *float64 `json:"data_allowance_gb,omitempty"`
	VoiceMinutes    *int     `json:"voice_minutes,omitempty"`
	SMSAllowance    *int     `json:"sms_allowance,omitempty"`

	MinMonthlySpend      decimal.Decimal  `json:"min_monthly_spend"`
	MaxMonthlySpend      *decimal.Decimal `json:"max_monthly_spend,omitempty"`
	RequiredTenureMonths int              `json:"required_tenure_months"`
	RequiredSegments     []string         `json:"required_segments"`
	ExcludedSegments     []string         `json:"excluded_segments"`

	// LocationRestrictions lists the location categories the product is sold
	// in.  Empty means everywhere.
	LocationRestrictions []string `json:"location_restrictions"`

	MaxConcurrentSubscriptions int  `json:"max_concurrent_subscriptions"`
	RequiresCreditCheck        bool `json:"requires_credit_check"`
	RequiresIncomeVerification bool `json:"requires_income_verification"`

	PromotionalDiscount decimal.Decimal `json:"promotional_discount"`
	PromotionEndsAt     *time.Time      `json:"promotion_end_date,omitempty"`
	CampaignCode        string          `json:"campaign_code,omitempty"`

	TargetSegments   []string `json:"target_segments"`
	PrioritySegments []string `json:"priority_segments"`
}

// Unlimited reports whether the product has no data cap.
func (p Product) Unlimited() bool { return p.DataAllowanceGB == nil }

// PromotionActive reports whether the promotional discount applies at now.
func (p Product) PromotionActive(now time.Time) bool {
	if !p.PromotionalDiscount.IsPositive() {
		return false
	}
	return p.PromotionEndsAt == nil || !now.After(*p.PromotionEndsAt)
}

// HasFeature reports whether any feature mentions s.
func (p Product) HasFeature(s string) bool {
	for _, f := range p.Features {
		if containsFold(f, s) {
			return true
		}
	}
	return false
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func gb(x float64) *float64 { return &x }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DefaultProducts returns the built-in Hong Kong telecom catalog.
func DefaultProducts() []Product {
	return []Product{
		{
			ID:       "THREE_5G_UNLIMITED_PREMIUM",
			Name:     "5G Unlimited Premium",
			Category: CategoryMobilePlans,
			Features: []string{
				"Unlimited 5G Data",
				"Priority Network Access",
				"International Roaming",
				"Premium Customer Support",
				"Cloud Storage 100GB",
				"Streaming Services",
			},
			MonthlyPrice:        money("799.00"),
			MinMonthlySpend:     money("600.00"),
			RequiredSegments:    []string{"premium_business", "urban_professional", "high_value_loyalist"},
			TargetSegments:      []string{"premium_business", "urban_professional", "enterprise_client"},
			PrioritySegments:    []string{"premium_business"},
			RequiresCreditCheck: true,
		},
		{
			ID:             "THREE_BUSINESS_PRO_ENTERPRISE",
			Name:           "Business Pro Enterprise",
			Category:       CategoryBusinessSolutions,
			MonthlyPrice:   money("1299.00"),
			SetupFee:       money("500.00"),
			ContractMonths: 24,
			Features: []string{
				"Multi-line Management",
				"VPN Access",
				"Priority Support 24/7",
				"Cloud Integration",
				"Advanced Analytics",
				"Dedicated Account Manager",
			},
			MinMonthlySpend:            money("1000.00"),
			RequiredSegments:           []string{"enterprise_client", "premium_business"},
			MaxConcurrentSubscriptions: 5,
			RequiresCreditCheck:        true,
			RequiresIncomeVerification: true,
		},
		{
			ID:           "THREE_FAMILY_SHARE_PLUS",
			Name:         "Family Share Plus",
			Category:     CategoryFamilyPlans,
			MonthlyPrice: money("899.00"),
			Features: []string{
				"4 Lines Included",
				"Shared Data Pool 200GB",
				"Parental Controls",
				"Family Locator",
				"Content Filtering",
				"Multi-device Support",
			},
			DataAllowanceGB:  gb(200),
			MinMonthlySpend:  money("400.00"),
			RequiredSegments: []string{"family_subscriber"},
			TargetSegments:   []string{"family_subscriber", "suburban_family", "mid_career"},
		},
		{
			ID:                  "THREE_SMART_VALUE",
			Name:                "Smart Value Plan",
			Category:            CategoryMobilePlans,
			MonthlyPrice:        money("299.00"),
			Features:            []string{"25GB Data", "Unlimited Local Calls", "Unlimited SMS", "Basic Roaming", "Music Streaming"},
			DataAllowanceGB:     gb(25),
			MinMonthlySpend:     money("200.00"),
			TargetSegments:      []string{"budget_conscious", "young_digital", "student"},
			PrioritySegments:    []string{"young_digital"},
			PromotionalDiscount: money("50.00"),
			CampaignCode:        "STUDENT2024",
		},
		{
			ID:                         "THREE_DATA_BOOSTER_50GB",
			Name:                       "Data Booster 50GB",
			Category:                   CategoryValueAddedServices,
			MonthlyPrice:               money("199.00"),
			Features:                   []string{"Additional 50GB Data", "Rollover Unused Data", "5G Speed", "No Speed Throttling"},
			DataAllowanceGB:            gb(50),
			MinMonthlySpend:            money("300.00"),
			MaxConcurrentSubscriptions: 3,
		},
		{
			ID:           "THREE_GLOBAL_ROAMING_PREMIUM",
			Name:         "Global Roaming Premium",
			Category:     CategoryRoamingServices,
			MonthlyPrice: money("399.00"),
			Features: []string{
				"150+ Countries Coverage",
				"Daily Data Allowance 2GB",
				"Free Incoming Calls",
				"Premium Support Abroad",
			},
			MinMonthlySpend:     money("200.00"),
			TargetSegments:      []string{"premium_business", "enterprise_client", "frequent_traveler"},
			RequiresCreditCheck: true,
		},
		{
			ID:             "THREE_DEVICE_BUNDLE_FLAGSHIP",
			Name:           "Flagship Device Bundle",
			Category:       CategoryDeviceBundles,
			MonthlyPrice:   money("599.00"),
			ContractMonths: 24,
			Features: []string{
				"Latest Flagship Device",
				"Device Insurance",
				"Express Replacement",
				"Trade-in Program",
				"Accessories Package",
			},
			MinMonthlySpend:     money("500.00"),
			RequiresCreditCheck: true,
			PromotionalDiscount: money("100.00"),
			CampaignCode:        "DEVICE2024",
		},
		{
			ID:           "THREE_DIGITAL_LIFESTYLE",
			Name:         "Digital Lifestyle Bundle",
			Category:     CategoryValueAddedServices,
			MonthlyPrice: money("149.00"),
			Features: []string{
				"Streaming Services Bundle",
				"Cloud Storage 500GB",
				"Antivirus Protection",
				"WiFi Calling",
				"Call Recording",
			},
			MinMonthlySpend: money("200.00"),
			TargetSegments:  []string{"young_digital", "urban_professional", "tech_enthusiast"},
		},
	}
}
