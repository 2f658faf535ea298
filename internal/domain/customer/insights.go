package customer

import "fmt"

// Insights is the analyst-facing summary of one customer.
type Insights struct {
	Segment         SegmentSummary   `json:"segment"`
	ChurnRisk       ChurnAssessment  `json:"churn_risk"`
	UpsellPotential UpsellAssessment `json:"upsell_potential"`
	HealthScore     float64          `json:"overall_health_score"`
	Opportunities   Opportunities    `json:"opportunities"`
	Actions         []InsightAction  `json:"recommendations"`
	MarketPosition  string           `json:"market_position"`
	Competitive     string           `json:"competitive_position"`
	Compliance      float64          `json:"regulatory_compliance"`
	Summary         InsightSummary   `json:"summary"`
}

// SegmentSummary describes the assigned segment.
type SegmentSummary struct {
	Category    Segment `json:"category"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// ChurnAssessment lists what drives and what protects against churn.
type ChurnAssessment struct {
	Score             float64  `json:"risk_score"`
	Level             string   `json:"risk_level"`
	RiskFactors       []string `json:"risk_factors"`
	ProtectiveFactors []string `json:"protective_factors"`
	Interventions     []string `json:"recommended_interventions"`
}

// UpsellAssessment lists upsell and cross-sell openings.
type UpsellAssessment struct {
	Score               float64  `json:"upsell_score"`
	Level               string   `json:"potential_level"`
	UpsellOpportunities []string `json:"upsell_opportunities"`
	CrossSell           []string `json:"cross_sell_opportunities"`
	RecommendedOffers   []string `json:"recommended_offers"`
}

// Opportunity is one business opening.  Impact carries the estimated impact,
// urgency, potential or cost saving depending on the category.
type Opportunity struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// Opportunities groups openings by category.
type Opportunities struct {
	Revenue          []Opportunity `json:"revenue_opportunities"`
	Retention        []Opportunity `json:"retention_opportunities"`
	Engagement       []Opportunity `json:"engagement_opportunities"`
	CostOptimization []Opportunity `json:"cost_optimization_opportunities"`
}

// InsightAction is an account-management action derived from the profile.
type InsightAction struct {
	Priority        string `json:"priority"`
	Category        string `json:"category"`
	Action          string `json:"action"`
	Description     string `json:"description"`
	Timeline        string `json:"timeline"`
	ExpectedOutcome string `json:"expected_outcome"`
}

// InsightSummary is the executive summary.
type InsightSummary struct {
	ValueTier       string   `json:"customer_value_tier"`
	EngagementLevel string   `json:"engagement_level"`
	PriorityScore   float64  `json:"priority_score"`
	KeyInsights     []string `json:"key_insights"`
}

const maxKeyInsights = 5

// BuildInsights derives the analyst summary from an extracted vector, its
// findings and segment.  It is a pure function.
func BuildInsights(v FeatureVector, patterns []PatternFinding, seg Segment, segConfidence float64, params MarketParams) Insights {
	churn := assessChurn(v)
	upsell := assessUpsell(v, params)
	opps := identifyOpportunities(v)

	return Insights{
		Segment: SegmentSummary{
			Category:    seg,
			Confidence:  segConfidence,
			Description: seg.Description(),
		},
		ChurnRisk:       churn,
		UpsellPotential: upsell,
		HealthScore:     HealthScore(v),
		Opportunities:   opps,
		Actions:         insightActions(v),
		MarketPosition:  marketPosition(v, params),
		Competitive:     competitivePosition(v),
		Compliance:      v.ComplianceScore,
		Summary: InsightSummary{
			ValueTier:       ValueTier(v.CustomerValueScore),
			EngagementLevel: EngagementLevel(v.DigitalEngagement),
			PriorityScore:   clamp01(v.CustomerValueScore*0.4 + churn.Score*0.35 + upsell.Score*0.25),
			KeyInsights:     keyInsights(v, patterns),
		},
	}
}

func assessChurn(v FeatureVector) ChurnAssessment {
	a := ChurnAssessment{
		Score:             v.ChurnRiskScore,
		Level:             RiskLevel(v.ChurnRiskScore),
		RiskFactors:       []string{},
		ProtectiveFactors: []string{},
		Interventions:     []string{},
	}
	if v.SatisfactionScore < 6 {
		a.RiskFactors = append(a.RiskFactors, "Low satisfaction score")
	}
	if v.ComplaintCount > 2 {
		a.RiskFactors = append(a.RiskFactors, "Multiple recent complaints")
	}
	if v.DigitalEngagement < 0.4 {
		a.RiskFactors = append(a.RiskFactors, "Low digital engagement")
	}
	if v.CompetitorSwitchRisk > 0.6 {
		a.RiskFactors = append(a.RiskFactors, "High competitor appeal")
	}

	if v.TenureCategory == TenureEstablished || v.TenureCategory == TenureLoyal {
		a.ProtectiveFactors = append(a.ProtectiveFactors, "Long tenure relationship")
	}
	if v.CustomerValueScore > 0.7 {
		a.ProtectiveFactors = append(a.ProtectiveFactors, "High customer value")
	}
	if v.SatisfactionScore >= 8 {
		a.ProtectiveFactors = append(a.ProtectiveFactors, "High satisfaction")
	}

	switch {
	case a.Score >= 0.8:
		a.Interventions = append(a.Interventions,
			"Immediate personal contact", "Service recovery program", "Retention specialist assignment")
	case a.Score >= 0.6:
		a.Interventions = append(a.Interventions,
			"Proactive retention campaign", "Satisfaction survey", "Competitive offer matching")
	}
	return a
}

func assessUpsell(v FeatureVector, params MarketParams) UpsellAssessment {
	a := UpsellAssessment{
		Score:               v.UpsellPropensity,
		Level:               PotentialLevel(v.UpsellPropensity),
		UpsellOpportunities: []string{},
		CrossSell:           []string{},
		RecommendedOffers:   []string{},
	}
	if v.SpendCategory == SpendBudget || v.SpendCategory == SpendMinimal {
		a.UpsellOpportunities = append(a.UpsellOpportunities, "Plan upgrade potential")
	}
	if v.DataUsageGB > params.HighUsageDataGB {
		a.UpsellOpportunities = append(a.UpsellOpportunities, "Unlimited data plan")
	}
	if v.SatisfactionScore >= 8 {
		a.UpsellOpportunities = append(a.UpsellOpportunities, "Premium service features")
	}

	if v.RoamingUsage == 0 && v.LocationCategory == LocationPremiumBusiness {
		a.CrossSell = append(a.CrossSell, "International roaming package")
	}
	if v.AccountType != AccountFamily && (v.AgeGroup == AgeMidCareer || v.AgeGroup == AgeSeniorProfessional) {
		a.CrossSell = append(a.CrossSell, "Family plan addition")
	}
	if v.DigitalEngagement > 0.7 {
		a.CrossSell = append(a.CrossSell, "Digital service bundle")
	}

	if a.Score >= 0.7 {
		a.RecommendedOffers = append(a.RecommendedOffers,
			"Premium plan upgrade with incentives", "Value-added services bundle", "Loyalty program enrollment")
	}
	return a
}

func identifyOpportunities(v FeatureVector) Opportunities {
	o := Opportunities{
		Revenue:          []Opportunity{},
		Retention:        []Opportunity{},
		Engagement:       []Opportunity{},
		CostOptimization: []Opportunity{},
	}
	if v.UpsellPropensity >= 0.6 {
		o.Revenue = append(o.Revenue, Opportunity{Type: "upsell", Description: "Customer shows strong upsell potential", Impact: "high"})
	}
	if v.CustomerValueScore >= 0.7 && v.SatisfactionScore >= 8 {
		o.Revenue = append(o.Revenue, Opportunity{Type: "advocacy", Description: "Customer could become brand advocate", Impact: "medium"})
	}
	if v.ChurnRiskScore >= 0.6 {
		o.Retention = append(o.Retention, Opportunity{Type: "retention", Description: "Proactive retention required", Impact: "high"})
	}
	if v.DigitalEngagement < 0.5 {
		o.Engagement = append(o.Engagement, Opportunity{Type: "digital_adoption", Description: "Increase digital service usage", Impact: "medium"})
	}
	if v.ServiceInteractions > 5 {
		o.CostOptimization = append(o.CostOptimization, Opportunity{Type: "self_service", Description: "Migrate to self-service channels", Impact: "medium"})
	}
	return o
}

func insightActions(v FeatureVector) []InsightAction {
	out := []InsightAction{}
	if v.ChurnRiskScore >= 0.8 {
		out = append(out, InsightAction{
			Priority:        "critical",
			Category:        "retention",
			Action:          "Immediate retention intervention",
			Description:     "Customer at critical risk of churn - requires immediate personal attention",
			Timeline:        "immediate",
			ExpectedOutcome: "Prevent churn",
		})
	}
	if v.UpsellPropensity >= 0.8 && v.SatisfactionScore >= 8 {
		out = append(out, InsightAction{
			Priority:        "high",
			Category:        "revenue_growth",
			Action:          "Premium upsell offer",
			Description:     "Present premium service upgrade with personalized benefits",
			Timeline:        "this_month",
			ExpectedOutcome: "20-30% revenue increase",
		})
	}
	if v.DigitalEngagement < 0.5 {
		out = append(out, InsightAction{
			Priority:        "medium",
			Category:        "engagement",
			Action:          "Digital adoption campaign",
			Description:     "Encourage adoption of digital services and self-service options",
			Timeline:        "next_quarter",
			ExpectedOutcome: "Improved engagement and reduced service costs",
		})
	}
	if v.MarketSegment == MarketPremiumBusiness {
		out = append(out, InsightAction{
			Priority:        "medium",
			Category:        "service_enhancement",
			Action:          "Business service review",
			Description:     "Schedule dedicated business account review",
			Timeline:        "next_month",
			ExpectedOutcome: "Enhanced business relationship",
		})
	}
	return out
}

func keyInsights(v FeatureVector, patterns []PatternFinding) []string {
	out := []string{
		fmt.Sprintf("Customer is in %s value tier with score %.2f", ValueTier(v.CustomerValueScore), v.CustomerValueScore),
	}
	switch {
	case v.ChurnRiskScore >= 0.7:
		out = append(out, fmt.Sprintf("High churn risk (%.2f) - immediate attention required", v.ChurnRiskScore))
	case v.ChurnRiskScore <= 0.3:
		out = append(out, fmt.Sprintf("Low churn risk (%.2f) - stable customer", v.ChurnRiskScore))
	}
	if v.UpsellPropensity >= 0.7 {
		out = append(out, fmt.Sprintf("Strong upsell potential (%.2f) - revenue growth opportunity", v.UpsellPropensity))
	}
	out = append(out, fmt.Sprintf("Customer is %s with digital services", EngagementLevel(v.DigitalEngagement)))
	for _, p := range patterns {
		if p.Confidence >= 0.8 {
			out = append(out, fmt.Sprintf("Key behavior: %s - %s", p.Name, p.BusinessImpact))
			break
		}
	}
	if len(out) > maxKeyInsights {
		out = out[:maxKeyInsights]
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Levels
// ─────────────────────────────────────────────────────────────────────────────

// HealthScore blends satisfaction, engagement, retention and value.
func HealthScore(v FeatureVector) float64 {
	return clamp01(v.SatisfactionScore/10*0.3 +
		v.DigitalEngagement*0.25 +
		(1-v.ChurnRiskScore)*0.25 +
		v.CustomerValueScore*0.2)
}

func tiered(score float64, labels [4]string) string {
	switch {
	case score >= 0.8:
		return labels[0]
	case score >= 0.6:
		return labels[1]
	case score >= 0.4:
		return labels[2]
	default:
		return labels[3]
	}
}

// RiskLevel maps a risk score to critical, high, medium or low.
func RiskLevel(score float64) string {
	return tiered(score, [4]string{"critical", "high", "medium", "low"})
}

// PotentialLevel maps a propensity to very_high, high, medium or low.
func PotentialLevel(score float64) string {
	return tiered(score, [4]string{"very_high", "high", "medium", "low"})
}

// ValueTier maps a value score to platinum, gold, silver or bronze.
func ValueTier(score float64) string {
	return tiered(score, [4]string{"platinum", "gold", "silver", "bronze"})
}

// EngagementLevel maps digital engagement to a descriptive level.
func EngagementLevel(score float64) string {
	return tiered(score, [4]string{"highly_engaged", "moderately_engaged", "lightly_engaged", "minimally_engaged"})
}

func marketPosition(v FeatureVector, params MarketParams) string {
	spend := v.SpendFloat()
	switch {
	case spend >= params.PremiumThreshold:
		return "premium_segment"
	case spend >= params.AverageMonthlySpend:
		return "mainstream_segment"
	default:
		return "value_segment"
	}
}

func competitivePosition(v FeatureVector) string {
	switch {
	case v.CompetitorSwitchRisk < 0.3 && v.SatisfactionScore >= 8:
		return "strong_position"
	case v.CompetitorSwitchRisk >= 0.7:
		return "vulnerable_position"
	default:
		return "neutral_position"
	}
}
