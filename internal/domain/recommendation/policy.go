package recommendation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// Template is the fixed wording attached to an action type.
type Template struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	NextSteps   []string `json:"next_steps"`
}

// Policy holds every tunable of synthesis and ranking.
type Policy struct {
	// TierWeights doubles as the business impact multiplier and the ranking
	// weight of each tier.
	TierWeights map[Priority]float64 `json:"tier_weights"`

	// QuotaDivisors bounds each tier to max/divisor items.  A zero divisor
	// means unlimited.
	QuotaDivisors map[Priority]int `json:"quota_divisors"`

	ExpiryDays map[Priority]int `json:"expiry_days"`

	// RevenueNormalizer is the annual revenue that scores 1.0 on the impact
	// revenue component.
	RevenueNormalizer decimal.Decimal `json:"revenue_normalizer"`
	// RealizationRate discounts the annualized offer value.
	RealizationRate decimal.Decimal `json:"realization_rate"`

	MaxOffersPerRecommendation int `json:"max_offers_per_recommendation"`

	Templates         map[ActionType]Template `json:"templates"`
	ObjectionHandling map[string]string       `json:"objection_handling"`
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		TierWeights: map[Priority]float64{
			PriorityCritical: 1.0,
			PriorityHigh:     0.8,
			PriorityMedium:   0.6,
			PriorityLow:      0.4,
			PriorityWatch:    0.2,
		},
		QuotaDivisors: map[Priority]int{
			PriorityCritical: 0,
			PriorityHigh:     2,
			PriorityMedium:   3,
			PriorityLow:      4,
			PriorityWatch:    10,
		},
		ExpiryDays: map[Priority]int{
			PriorityCritical: 1,
			PriorityHigh:     3,
			PriorityMedium:   7,
			PriorityLow:      14,
			PriorityWatch:    30,
		},
		RevenueNormalizer:          decimal.NewFromInt(100000),
		RealizationRate:            decimal.RequireFromString("0.7"),
		MaxOffersPerRecommendation: 3,
		Templates:                  defaultTemplates(),
		ObjectionHandling: map[string]string{
			"price_concern":         "Our ROI analysis shows cost savings within 6 months through improved efficiency and reliability.",
			"competitor_comparison": "Three HK offers superior mainland connectivity and local support that competitors can't match.",
			"contract_length":       "We offer flexible terms and can structure the agreement to meet your specific timeline needs.",
			"technical_concerns":    "Our technical team provides comprehensive migration support and 24/7 monitoring.",
			"timing_issues":         "We can phase the implementation to minimize disruption and align with your business calendar.",
		},
	}
}

func defaultTemplates() map[ActionType]Template {
	return map[ActionType]Template{
		ActionImmediateCall: {
			Title:       "Urgent: High-Value Lead Ready to Convert",
			Description: "Customer shows strong buying signals and competitive threat. Immediate contact recommended.",
			NextSteps: []string{
				"Call within 2 hours during business hours",
				"Prepare competitive differentiation materials",
				"Have pricing authority ready for negotiation",
			},
		},
		ActionScheduleMeeting: {
			Title:       "Schedule Discovery Meeting",
			Description: "Customer profile indicates complex needs requiring detailed consultation.",
			NextSteps: []string{
				"Send meeting request with agenda",
				"Prepare customized solution overview",
				"Research customer's industry challenges",
			},
		},
		ActionSendProposal: {
			Title:       "Send Targeted Proposal",
			Description: "Customer requirements are well-defined and match our offerings.",
			NextSteps: []string{
				"Generate customized proposal document",
				"Include ROI calculations and case studies",
				"Schedule follow-up call for questions",
			},
		},
		ActionOfferUpgrade: {
			Title:       "Present Upgrade Opportunity",
			Description: "Current usage patterns indicate readiness for service upgrade.",
			NextSteps: []string{
				"Analyze current usage vs. plan limits",
				"Calculate upgrade benefits and savings",
				"Present upgrade options with incentives",
			},
		},
		ActionRetentionOutreach: {
			Title:       "Proactive Retention Engagement",
			Description: "Customer showing signs of potential churn or competitive interest.",
			NextSteps: []string{
				"Schedule loyalty review call",
				"Prepare retention incentives",
				"Address any service issues proactively",
			},
		},
		ActionCrossSell: {
			Title:       "Introduce Complementary Services",
			Description: "Current products leave room for complementary services.",
			NextSteps: []string{
				"Review current product holdings",
				"Select complementary add-ons",
				"Bundle add-ons into the next contact",
			},
		},
		ActionUpsell: {
			Title:       "Propose Higher-Tier Plan",
			Description: "Spending capacity and engagement support a higher-tier plan.",
			NextSteps: []string{
				"Compare current plan with higher tiers",
				"Quantify the added value",
				"Offer a limited-time upgrade incentive",
			},
		},
		ActionFollowUp: {
			Title:       "Standard Follow-Up",
			Description: "Maintain contact and monitor for stronger buying signals.",
			NextSteps: []string{
				"Send personalized check-in message",
				"Share relevant product updates",
				"Schedule next review",
			},
		},
		ActionNurture: {
			Title:       "Nurture Relationship",
			Description: "Lead is not ready to buy; build familiarity over time.",
			NextSteps: []string{
				"Add to educational content track",
				"Invite to product webinar",
			},
		},
		ActionEscalate: {
			Title:       "Escalate to Account Management",
			Description: "Account requires senior attention.",
			NextSteps: []string{
				"Brief the account manager",
				"Agree an owner and deadline",
			},
		},
	}
}

// Template returns the template for a, falling back to FollowUp.
func (p Policy) Template(a ActionType) Template {
	if t, ok := p.Templates[a]; ok {
		return t
	}
	return p.Templates[ActionFollowUp]
}

// Validate returns a CFG_001 error describing the first bad value.
func (p Policy) Validate() error {
	for _, tier := range AllPriorities {
		w, ok := p.TierWeights[tier]
		if !ok || w < 0 || w > 1 {
			return errors.Configuration(fmt.Sprintf("recommendation tier weight for %s must be in [0,1]", tier))
		}
		if d, ok := p.QuotaDivisors[tier]; !ok || d < 0 {
			return errors.Configuration(fmt.Sprintf("recommendation quota divisor for %s must be >= 0", tier))
		}
		if d, ok := p.ExpiryDays[tier]; !ok || d < 1 {
			return errors.Configuration(fmt.Sprintf("recommendation expiry for %s must be >= 1 day", tier))
		}
	}
	if !p.RevenueNormalizer.IsPositive() {
		return errors.Configuration("recommendation revenue normalizer must be positive")
	}
	if p.RealizationRate.IsNegative() || p.RealizationRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Configuration("recommendation realization rate must be in [0,1]")
	}
	if p.MaxOffersPerRecommendation < 1 {
		return errors.Configuration("recommendation max offers must be >= 1")
	}
	if _, ok := p.Templates[ActionFollowUp]; !ok {
		return errors.Configuration("recommendation templates must include follow_up")
	}
	return nil
}
