// Package recommendation turns per-customer scoring and matching results into
// ranked, explainable sales recommendations.
package recommendation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
)

// Priority is the urgency tier of a recommendation.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityWatch    Priority = "watch"
)

// AllPriorities lists every tier, most urgent first.
var AllPriorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityWatch}

// FromLead maps a lead tier onto the recommendation tier.
func FromLead(p lead.Priority) Priority {
	switch p {
	case lead.PriorityCritical:
		return PriorityCritical
	case lead.PriorityHigh:
		return PriorityHigh
	case lead.PriorityMedium:
		return PriorityMedium
	case lead.PriorityLow:
		return PriorityLow
	default:
		return PriorityWatch
	}
}

// ActionType is the concrete step a sales representative should take.
type ActionType string

const (
	ActionImmediateCall     ActionType = "immediate_call"
	ActionScheduleMeeting   ActionType = "schedule_meeting"
	ActionSendProposal      ActionType = "send_proposal"
	ActionOfferUpgrade      ActionType = "offer_upgrade"
	ActionRetentionOutreach ActionType = "retention_outreach"
	ActionCrossSell         ActionType = "cross_sell"
	ActionUpsell            ActionType = "upsell"
	ActionFollowUp          ActionType = "follow_up"
	ActionNurture           ActionType = "nurture"
	ActionEscalate          ActionType = "escalate"
)

// Explanation says why a recommendation was made.
type Explanation struct {
	PrimaryReason     string   `json:"primary_reason"`
	SupportingFactors []string `json:"supporting_factors"`
	RiskFactors       []string `json:"risk_factors"`
	ConfidenceScore   float64  `json:"confidence_score"`
	DataSources       []string `json:"data_sources"`
}

// ActionableRecommendation is one ranked unit of sales work.
type ActionableRecommendation struct {
	RecommendationID string     `json:"recommendation_id"`
	LeadID           string     `json:"lead_id"`
	CustomerID       string     `json:"customer_id"`
	CustomerName     string     `json:"customer_name"`
	Priority         Priority   `json:"priority"`
	ActionType       ActionType `json:"action_type"`

	Title             string             `json:"title"`
	Description       string             `json:"description"`
	RecommendedOffers []offer.OfferMatch `json:"recommended_offers"`

	ExpectedRevenue       decimal.Decimal `json:"expected_revenue"`
	ConversionProbability float64         `json:"conversion_probability"`
	UrgencyScore          float64         `json:"urgency_score"`
	BusinessImpactScore   float64         `json:"business_impact_score"`

	NextSteps         []string          `json:"next_steps"`
	TalkingPoints     []string          `json:"talking_points"`
	ObjectionHandling map[string]string `json:"objection_handling"`
	Explanation       Explanation       `json:"explanation"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Tags      []string  `json:"tags"`
}
