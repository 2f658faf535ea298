package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInsights_EmptyCustomer(t *testing.T) {
	params := DefaultMarketParams()
	v := newTestExtractor().Extract(Record{}, nil, nil)

	in := BuildInsights(v, nil, SegmentBudgetConscious, 0.6, params)

	assert.Equal(t, SegmentBudgetConscious, in.Segment.Category)
	assert.Equal(t, "Price-sensitive customer focused on value", in.Segment.Description)
	assert.Equal(t, "medium", in.ChurnRisk.Level)
	assert.Equal(t, []string{"Low satisfaction score", "Low digital engagement", "High competitor appeal"}, in.ChurnRisk.RiskFactors)
	assert.Empty(t, in.ChurnRisk.ProtectiveFactors)
	assert.Empty(t, in.ChurnRisk.Interventions)
	assert.Equal(t, []string{"Plan upgrade potential"}, in.UpsellPotential.UpsellOpportunities)
	assert.Equal(t, "value_segment", in.MarketPosition)
	assert.Equal(t, "neutral_position", in.Competitive)
	assert.Equal(t, 1.0, in.Compliance)

	require.Len(t, in.Actions, 1)
	assert.Equal(t, "Digital adoption campaign", in.Actions[0].Action)

	assert.Equal(t, "bronze", in.Summary.ValueTier)
	assert.Equal(t, "minimally_engaged", in.Summary.EngagementLevel)
	require.Len(t, in.Summary.KeyInsights, 2)
	assert.Contains(t, in.Summary.KeyInsights[0], "bronze value tier")
	assert.Equal(t, "Customer is minimally_engaged with digital services", in.Summary.KeyInsights[1])

	wantHealth := 0.5*0.3 + 0 + (1-v.ChurnRiskScore)*0.25 + v.CustomerValueScore*0.2
	assert.InDelta(t, wantHealth, in.HealthScore, 1e-9)
	wantPriority := v.CustomerValueScore*0.4 + v.ChurnRiskScore*0.35 + v.UpsellPropensity*0.25
	assert.InDelta(t, wantPriority, in.Summary.PriorityScore, 1e-9)
}

func TestBuildInsights_AtRiskCustomer(t *testing.T) {
	v := FeatureVector{
		ChurnRiskScore:       0.85,
		SatisfactionScore:    3,
		ComplaintCount:       4,
		DigitalEngagement:    0.1,
		CompetitorSwitchRisk: 0.75,
		TenureCategory:       TenureLoyal,
		ServiceInteractions:  7,
	}
	patterns := []PatternFinding{
		{Name: "minor", Confidence: 0.5, BusinessImpact: "ignored"},
		{Name: "high_churn_risk", Confidence: 0.85, BusinessImpact: "Immediate risk of customer loss"},
	}

	in := BuildInsights(v, patterns, SegmentInactiveChurner, 0.75, DefaultMarketParams())

	assert.Equal(t, "critical", in.ChurnRisk.Level)
	assert.Equal(t, []string{"Long tenure relationship"}, in.ChurnRisk.ProtectiveFactors)
	assert.Equal(t, []string{"Immediate personal contact", "Service recovery program", "Retention specialist assignment"}, in.ChurnRisk.Interventions)
	assert.Equal(t, "vulnerable_position", in.Competitive)
	require.Len(t, in.Opportunities.Retention, 1)
	require.Len(t, in.Opportunities.CostOptimization, 1)
	assert.Equal(t, "self_service", in.Opportunities.CostOptimization[0].Type)
	assert.Equal(t, "critical", in.Actions[0].Priority)

	assert.Contains(t, in.Summary.KeyInsights, "High churn risk (0.85) - immediate attention required")
	assert.Contains(t, in.Summary.KeyInsights, "Key behavior: high_churn_risk - Immediate risk of customer loss")
	assert.LessOrEqual(t, len(in.Summary.KeyInsights), 5)
}

func TestBuildInsights_UpsellCustomer(t *testing.T) {
	v := FeatureVector{
		UpsellPropensity:   0.85,
		SatisfactionScore:  9,
		DigitalEngagement:  0.9,
		CustomerValueScore: 0.75,
		SpendCategory:      SpendBudget,
		DataUsageGB:        70,
		LocationCategory:   LocationPremiumBusiness,
		MarketSegment:      MarketPremiumBusiness,
		AgeGroup:           AgeMidCareer,
		AccountType:        AccountStandard,
	}
	in := BuildInsights(v, nil, SegmentUrbanProfessional, 0.8, DefaultMarketParams())

	assert.Equal(t, "very_high", in.UpsellPotential.Level)
	assert.Equal(t, []string{"Plan upgrade potential", "Unlimited data plan", "Premium service features"}, in.UpsellPotential.UpsellOpportunities)
	assert.Equal(t, []string{"International roaming package", "Family plan addition", "Digital service bundle"}, in.UpsellPotential.CrossSell)
	assert.Len(t, in.UpsellPotential.RecommendedOffers, 3)
	assert.Len(t, in.Opportunities.Revenue, 2)

	var actions []string
	for _, a := range in.Actions {
		actions = append(actions, a.Action)
	}
	assert.Equal(t, []string{"Premium upsell offer", "Business service review"}, actions)
	assert.Equal(t, "strong_position", in.Competitive)
}

func TestLevels(t *testing.T) {
	tests := []struct {
		score                             float64
		risk, potential, tier, engagement string
	}{
		{0.8, "critical", "very_high", "platinum", "highly_engaged"},
		{0.79, "high", "high", "gold", "moderately_engaged"},
		{0.6, "high", "high", "gold", "moderately_engaged"},
		{0.4, "medium", "medium", "silver", "lightly_engaged"},
		{0.39, "low", "low", "bronze", "minimally_engaged"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.risk, RiskLevel(tt.score), tt.score)
		assert.Equal(t, tt.potential, PotentialLevel(tt.score), tt.score)
		assert.Equal(t, tt.tier, ValueTier(tt.score), tt.score)
		assert.Equal(t, tt.engagement, EngagementLevel(tt.score), tt.score)
	}
}
