// Package lead scores customers as sales leads and orders them into a
// follow-up queue.
package lead

import (
	"fmt"
	"math"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Classifications
// ─────────────────────────────────────────────────────────────────────────────

// Priority is the five-level follow-up triage.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityNurture  Priority = "nurture"
)

// Rank orders priorities; Critical is 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Qualification is the four-level readiness classification.
type Qualification string

const (
	QualificationHot         Qualification = "hot"
	QualificationWarm        Qualification = "warm"
	QualificationCold        Qualification = "cold"
	QualificationUnqualified Qualification = "unqualified"
)

// maxExplanations bounds each explainability list.
const maxExplanations = 5

// LeadScore is the result of scoring one customer.  All numeric fields other
// than Confidence are in [0,100].
type LeadScore struct {
	RevenuePotential      float64 `json:"revenue_potential"`
	ConversionProbability float64 `json:"conversion_probability"`
	UrgencyFactor         float64 `json:"urgency_factor"`
	StrategicValue        float64 `json:"strategic_value"`

	OverallScore  float64 `json:"overall_score"`
	PriorityScore float64 `json:"priority_score"`

	Priority      Priority      `json:"lead_priority"`
	Qualification Qualification `json:"qualification_level"`
	Confidence    float64       `json:"confidence_level"`

	KeyFactors         []string `json:"key_factors"`
	RiskFactors        []string `json:"risk_factors"`
	Opportunities      []string `json:"opportunities"`
	RecommendedActions []string `json:"recommended_actions"`
}

// ZeroScore is substituted when scoring fails.
func ZeroScore() LeadScore {
	return LeadScore{
		Priority:           PriorityNurture,
		Qualification:      QualificationUnqualified,
		KeyFactors:         []string{},
		RiskFactors:        []string{},
		Opportunities:      []string{},
		RecommendedActions: []string{},
	}
}

// IsZero reports whether s carries no scoring result.
func (s LeadScore) IsZero() bool {
	return s.OverallScore == 0 && s.PriorityScore == 0 && s.Confidence == 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Scorer
// ─────────────────────────────────────────────────────────────────────────────

// Scorer computes LeadScores.  It holds only immutable configuration and is
// safe for concurrent use.
type Scorer struct {
	params     Params
	classifier *customer.Classifier
	logger     logging.Logger
}

// NewScorer returns a Scorer.  The classifier supplies the segment used for
// the base conversion rate.
func NewScorer(params Params, classifier *customer.Classifier, logger logging.Logger) *Scorer {
	return &Scorer{params: params, classifier: classifier, logger: logging.OrNop(logger).Named("scorer")}
}

// Params returns the parameters in use.
func (s *Scorer) Params() Params { return s.params }

// Score computes the lead score of v.  It never panics: an internal failure
// yields ZeroScore and an error log line.
func (s *Scorer) Score(v customer.FeatureVector, patterns []customer.PatternFinding, mc *customer.MarketContext) LeadScore {
	return s.guard(v.CustomerID, func() LeadScore { return s.score(v, patterns, mc) })
}

// guard runs fn and substitutes ZeroScore if it panics.
func (s *Scorer) guard(customerID string, fn func() LeadScore) (score LeadScore) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.New(errors.ErrCodeScoringFailed, fmt.Sprintf("lead scoring panicked: %v", r))
			s.logger.Error("lead scoring failed", logging.CustomerID(customerID), logging.Err(err))
			score = ZeroScore()
		}
	}()
	return fn()
}

func (s *Scorer) score(v customer.FeatureVector, patterns []customer.PatternFinding, mc *customer.MarketContext) LeadScore {
	seg := customer.SegmentBudgetConscious
	if s.classifier != nil {
		seg, _ = s.classifier.Classify(v)
	}

	revenue := s.revenuePotential(v)
	conversion := s.conversionProbability(v, seg)
	urgency := s.urgencyFactor(v, mc)
	strategic := s.strategicValue(v)

	w := s.params.Weights
	overall := clamp100(revenue*w.Revenue + conversion*w.Conversion + urgency*w.Urgency + strategic*w.Strategic)
	priorityScore := clamp100(s.params.PriorityBlend*overall + (1-s.params.PriorityBlend)*urgency)

	score := LeadScore{
		RevenuePotential:      revenue,
		ConversionProbability: conversion,
		UrgencyFactor:         urgency,
		StrategicValue:        strategic,
		OverallScore:          overall,
		PriorityScore:         priorityScore,
		Priority:              s.ClassifyPriority(priorityScore),
		Qualification:         s.ClassifyQualification(conversion),
		Confidence:            confidence(v, patterns),
	}
	score.KeyFactors = keyFactors(v, score)
	score.RiskFactors = riskFactors(v, s.params)
	score.Opportunities = opportunities(v)
	score.RecommendedActions = recommendedActions(v, score)

	s.logger.Debug("lead scored",
		logging.CustomerID(v.CustomerID),
		logging.Float64("overall", overall),
		logging.Float64("priority_score", priorityScore),
		logging.String("priority", string(score.Priority)))
	return score
}

// ClassifyPriority maps a priority score onto a Priority.
func (s *Scorer) ClassifyPriority(priorityScore float64) Priority {
	t := s.params.Priority
	switch {
	case priorityScore >= t.Critical:
		return PriorityCritical
	case priorityScore >= t.High:
		return PriorityHigh
	case priorityScore >= t.Medium:
		return PriorityMedium
	case priorityScore >= t.Low:
		return PriorityLow
	default:
		return PriorityNurture
	}
}

// ClassifyQualification maps a conversion probability onto a Qualification.
func (s *Scorer) ClassifyQualification(conversion float64) Qualification {
	t := s.params.Qualification
	switch {
	case conversion >= t.Hot:
		return QualificationHot
	case conversion >= t.Warm:
		return QualificationWarm
	case conversion >= t.Cold:
		return QualificationCold
	default:
		return QualificationUnqualified
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Sub-scores
// ─────────────────────────────────────────────────────────────────────────────

func (s *Scorer) revenuePotential(v customer.FeatureVector) float64 {
	p := s.params
	spend := math.Min(100, v.SpendFloat()/p.PremiumDealSize*100)
	score := spend*0.4 +
		v.UpsellPropensity*100*0.3 +
		v.CustomerValueScore*100*0.2 +
		lookup(p.AccountScores, v.AccountType, 40)*0.1
	return clamp100(score * lookup(p.LocationMultipliers, v.LocationCategory, 1.0))
}

var frequencyScores = map[string]float64{
	customer.FrequencyHigh:   90,
	customer.FrequencyMedium: 60,
	customer.FrequencyLow:    30,
}

func (s *Scorer) conversionProbability(v customer.FeatureVector, seg customer.Segment) float64 {
	p := s.params
	rate, ok := p.ConversionRates[seg]
	if !ok {
		rate = p.DefaultConversionRate
	}
	score := rate*100*0.4 +
		v.DigitalEngagement*100*0.25 +
		math.Min(100, v.SatisfactionScore*10)*0.2 +
		lookup(frequencyScores, v.PurchaseFrequency, 30)*0.15
	score -= v.ChurnRiskScore * 30

	switch {
	case v.TenureCategory == customer.TenureNew:
		score *= p.NewCustomerBonus
	case v.TenureCategory == customer.TenureLoyal:
		score *= p.LoyaltyBonus
	case v.ChurnRiskScore > 0.7:
		score *= p.ChurnerPenalty
	}
	return clamp100(score)
}

func (s *Scorer) urgencyFactor(v customer.FeatureVector, mc *customer.MarketContext) float64 {
	score := 30.0

	switch {
	case v.ChurnRiskScore >= 0.8:
		score += 40
	case v.ChurnRiskScore >= 0.6:
		score += 25
	case v.ChurnRiskScore >= 0.4:
		score += 15
	}
	switch {
	case v.ComplaintCount >= 3:
		score += 20
	case v.ComplaintCount >= 1:
		score += 10
	}
	switch {
	case v.CompetitorSwitchRisk >= 0.7:
		score += 15
	case v.CompetitorSwitchRisk >= 0.5:
		score += 10
	}
	switch {
	case v.SatisfactionScore <= 4:
		score += 15
	case v.SatisfactionScore <= 6:
		score += 8
	}
	switch {
	case v.DigitalEngagement <= 0.3:
		score += 10
	case v.DigitalEngagement <= 0.5:
		score += 5
	}

	if mc != nil {
		if mc.ContractRenewalSeason {
			score *= s.params.RenewalSeasonMultiplier
		}
		if mc.CompetitiveCampaignActive {
			score *= s.params.CompetitiveCampaignMultiplier
		}
	}
	return clamp100(score)
}

func (s *Scorer) strategicValue(v customer.FeatureVector) float64 {
	var score float64

	switch v.AgeGroup {
	case customer.AgeEarlyCareer, customer.AgeMidCareer:
		score += 40
	case customer.AgeYoungAdult:
		score += 35
	case customer.AgeSeniorProfessional:
		score += 30
	default:
		score += 20
	}

	switch {
	case v.AccountType == customer.AccountFamily && v.SpendFloat() < 800:
		score += 30
	case v.AccountType == customer.AccountBusiness:
		score += 25
	case v.SpendCategory == customer.SpendBudget || v.SpendCategory == customer.SpendMinimal:
		score += 20
	default:
		score += 15
	}

	switch {
	case v.LocationCategory == customer.LocationPremiumBusiness:
		score += 20
	case v.MarketSegment == customer.MarketUrbanProfessional:
		score += 15
	case v.DigitalEngagement > 0.8:
		score += 15
	default:
		score += 10
	}

	switch {
	case v.SatisfactionScore >= 8:
		score += 10
	case v.SatisfactionScore >= 6:
		score += 7
	default:
		score += 3
	}
	return clamp100(score)
}

// confidence blends data completeness, pattern confidence, engagement
// presence and tenure reliability.
func confidence(v customer.FeatureVector, patterns []customer.PatternFinding) float64 {
	c := v.Completeness * 0.4

	if len(patterns) > 0 {
		var sum float64
		for _, p := range patterns {
			sum += p.Confidence
		}
		c += sum / float64(len(patterns)) * 0.3
	} else {
		c += 0.1
	}

	if v.DigitalEngagement > 0 {
		c += 0.2
	} else {
		c += 0.05
	}

	if v.TenureCategory == customer.TenureEstablished || v.TenureCategory == customer.TenureLoyal {
		c += 0.1
	} else {
		c += 0.05
	}
	return math.Max(0, math.Min(1, c))
}

// ─────────────────────────────────────────────────────────────────────────────
// Explainability
// ─────────────────────────────────────────────────────────────────────────────

func keyFactors(v customer.FeatureVector, s LeadScore) []string {
	var out []string
	if s.RevenuePotential >= 70 {
		if v.SpendFloat() >= 1000 {
			out = append(out, "High current spend")
		}
		if v.UpsellPropensity >= 0.7 {
			out = append(out, "Strong upsell potential")
		}
		if v.AccountType == customer.AccountBusiness || v.AccountType == "enterprise" {
			out = append(out, "Business account type")
		}
	}
	if s.ConversionProbability >= 70 {
		if v.DigitalEngagement >= 0.7 {
			out = append(out, "High digital engagement")
		}
		if v.SatisfactionScore >= 8 {
			out = append(out, "High satisfaction score")
		}
		if v.PurchaseFrequency == customer.FrequencyHigh {
			out = append(out, "Frequent purchaser")
		}
	}
	if s.UrgencyFactor >= 70 {
		if v.ChurnRiskScore >= 0.7 {
			out = append(out, "High churn risk")
		}
		if v.ComplaintCount >= 2 {
			out = append(out, "Recent complaints")
		}
		if v.CompetitorSwitchRisk >= 0.6 {
			out = append(out, "Competitive pressure")
		}
	}
	if s.StrategicValue >= 70 {
		if v.AgeGroup == customer.AgeEarlyCareer || v.AgeGroup == customer.AgeMidCareer {
			out = append(out, "Long-term value potential")
		}
		if v.LocationCategory == customer.LocationPremiumBusiness {
			out = append(out, "Premium market segment")
		}
		if v.AccountType == customer.AccountFamily {
			out = append(out, "Family expansion opportunity")
		}
	}
	return capList(out, maxExplanations)
}

func riskFactors(v customer.FeatureVector, p Params) []string {
	var out []string
	if v.ChurnRiskScore >= 0.6 {
		out = append(out, "Elevated churn risk")
	}
	if v.SatisfactionScore <= 5 {
		out = append(out, "Low satisfaction score")
	}
	if v.ComplaintCount >= 2 {
		out = append(out, "Multiple recent complaints")
	}
	if v.CompetitorSwitchRisk >= 0.6 {
		out = append(out, "Competitor switching risk")
	}
	if v.DigitalEngagement <= 0.3 {
		out = append(out, "Low digital engagement")
	}
	if v.SpendFloat() < p.MinSpendQualification {
		out = append(out, "Below minimum spend threshold")
	}
	return capList(out, maxExplanations)
}

func opportunities(v customer.FeatureVector) []string {
	var out []string
	budget := v.SpendCategory == customer.SpendBudget
	if v.UpsellPropensity >= 0.6 {
		out = append(out, "Plan upgrade opportunity")
	}
	if v.DataUsageGB > 40 && budget {
		out = append(out, "Unlimited data plan upsell")
	}
	if v.AccountType != customer.AccountFamily && (v.AgeGroup == customer.AgeMidCareer || v.AgeGroup == customer.AgeSeniorProfessional) {
		out = append(out, "Family plan addition")
	}
	if v.RoamingUsage == 0 && v.LocationCategory == customer.LocationPremiumBusiness {
		out = append(out, "International roaming package")
	}
	if v.DigitalEngagement > 0.7 {
		out = append(out, "Digital services bundle")
	}
	if v.VoiceMinutes > 400 && (budget || v.SpendCategory == customer.SpendMinimal) {
		out = append(out, "Voice plan upgrade")
	}
	return capList(out, maxExplanations)
}

func recommendedActions(v customer.FeatureVector, s LeadScore) []string {
	var out []string
	switch s.Priority {
	case PriorityCritical:
		out = append(out, "Immediate senior rep contact within 4 hours", "Escalate to account management")
	case PriorityHigh:
		out = append(out, "Priority follow-up within 24 hours", "Prepare customized offer presentation")
	case PriorityMedium:
		out = append(out, "Standard follow-up within 48 hours", "Send targeted promotional materials")
	}
	switch s.Qualification {
	case QualificationHot:
		out = append(out, "Schedule product demonstration", "Prepare contract documentation")
	case QualificationWarm:
		out = append(out, "Nurture with educational content", "Invite to product webinar")
	}
	if v.ChurnRiskScore >= 0.7 {
		out = append(out, "Retention specialist consultation", "Offer loyalty incentives")
	}
	if v.UpsellPropensity >= 0.7 {
		out = append(out, "Present premium plan options", "Highlight value-added services")
	}
	return capList(out, 4)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func lookup(m map[string]float64, key string, fallback float64) float64 {
	if x, ok := m[key]; ok {
		return x
	}
	return fallback
}

func capList(xs []string, n int) []string {
	if xs == nil {
		return []string{}
	}
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

func clamp100(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}
