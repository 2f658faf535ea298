package recommendation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
)

// IDGenerator returns a fresh recommendation id.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// NewUUID is the production IDGenerator.
func NewUUID() string { return uuid.NewString() }

// dataSources are the pipeline stages every recommendation draws on.
var dataSources = []string{"Lead Scoring", "Customer Analysis", "Offer Matching"}

// Input is everything the synthesizer knows about one customer.
type Input struct {
	CustomerID   string
	CustomerName string
	// CustomerType is the audience for talking points: enterprise, sme or
	// consumer.
	CustomerType       string
	CompetitorInterest bool
	CurrentProductIDs  []string

	Vector   customer.FeatureVector
	Segment  customer.Segment
	Patterns []customer.PatternFinding
	Score    lead.LeadScore
	Offers   []offer.OfferMatch
}

// Synthesizer builds ActionableRecommendations.  It is safe for concurrent
// use when its IDGenerator and Clock are.
type Synthesizer struct {
	policy Policy
	ids    IDGenerator
	now    Clock
	logger logging.Logger
}

// NewSynthesizer validates policy.  Nil ids or now fall back to uuid and
// time.Now.
func NewSynthesizer(policy Policy, ids IDGenerator, now Clock, logger logging.Logger) (*Synthesizer, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = NewUUID
	}
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{
		policy: policy,
		ids:    ids,
		now:    now,
		logger: logging.OrNop(logger).Named("synthesizer"),
	}, nil
}

// Policy returns the policy in force.
func (s *Synthesizer) Policy() Policy { return s.policy }

// Synthesize builds the recommendation for one customer.
func (s *Synthesizer) Synthesize(in Input) ActionableRecommendation {
	now := s.now()
	sc := in.Score
	offers := in.Offers
	if len(offers) > s.policy.MaxOffersPerRecommendation {
		offers = offers[:s.policy.MaxOffersPerRecommendation]
	}
	if offers == nil {
		offers = []offer.OfferMatch{}
	}

	priority := FromLead(sc.Priority)
	action := s.actionType(in, len(offers) > 0)
	tmpl := s.policy.Template(action)

	revenue := s.expectedRevenue(offers, sc)
	conversion := sc.ConversionProbability / 100
	urgency := urgencyScore(in)

	rec := ActionableRecommendation{
		RecommendationID:      s.ids(),
		LeadID:                lead.LeadID(in.CustomerID, now),
		CustomerID:            in.CustomerID,
		CustomerName:          in.CustomerName,
		Priority:              priority,
		ActionType:            action,
		Title:                 tmpl.Title,
		Description:           description(tmpl, in.Segment, len(offers)),
		RecommendedOffers:     offers,
		ExpectedRevenue:       revenue,
		ConversionProbability: conversion,
		UrgencyScore:          urgency,
		BusinessImpactScore:   s.businessImpact(revenue, conversion, priority),
		NextSteps:             nextSteps(tmpl, offers),
		TalkingPoints:         talkingPoints(in.CustomerType, offers),
		ObjectionHandling:     copyMap(s.policy.ObjectionHandling),
		Explanation:           explain(in, offers),
		CreatedAt:             now,
		ExpiresAt:             now.AddDate(0, 0, s.policy.ExpiryDays[priority]),
		Tags:                  tags(in, action, offers),
	}

	s.logger.Debug("recommendation synthesized",
		logging.CustomerID(in.CustomerID),
		logging.String("priority", string(priority)),
		logging.String("action", string(action)),
		logging.Int("offers", len(offers)))
	return rec
}

// actionType picks the action.  Scores are normalized to [0,1] first and
// the first matching rule wins.
func (s *Synthesizer) actionType(in Input, hasOffers bool) ActionType {
	sc := in.Score
	overall := sc.OverallScore / 100
	existing := len(in.CurrentProductIDs) > 0 || in.Vector.TenureCategory != customer.TenureNew

	switch {
	case sc.UrgencyFactor/100 > 0.8 && overall > 0.7:
		return ActionImmediateCall
	case sc.ConversionProbability/100 > 0.6 && overall > 0.6:
		return ActionScheduleMeeting
	case hasOffers && overall > 0.5:
		return ActionSendProposal
	case existing && overall > 0.4 && in.Vector.UpsellPropensity >= 0.6:
		return ActionOfferUpgrade
	case in.Vector.ChurnRiskScore > 0.3:
		return ActionRetentionOutreach
	default:
		return ActionFollowUp
	}
}

// expectedRevenue annualizes the offers' monthly value and weights it by
// the overall score and the realization rate.
func (s *Synthesizer) expectedRevenue(offers []offer.OfferMatch, sc lead.LeadScore) decimal.Decimal {
	monthly := decimal.Zero
	for _, o := range offers {
		monthly = monthly.Add(o.EstimatedMonthlyValue)
	}
	return monthly.
		Mul(decimal.NewFromInt(12)).
		Mul(decimal.NewFromFloat(sc.OverallScore / 100)).
		Mul(s.policy.RealizationRate).
		Round(2)
}

func (s *Synthesizer) businessImpact(revenue decimal.Decimal, conversion float64, p Priority) float64 {
	norm := revenue.Div(s.policy.RevenueNormalizer).InexactFloat64()
	if norm > 1 {
		norm = 1
	}
	return clamp01((norm*0.5 + conversion*0.5) * s.policy.TierWeights[p])
}

func urgencyScore(in Input) float64 {
	u := in.Score.UrgencyFactor / 100
	if in.Vector.ChurnRiskScore > 0.5 {
		u += 0.3
	}
	if in.CompetitorInterest {
		u += 0.2
	}
	return clamp01(u)
}

func description(t Template, seg customer.Segment, offers int) string {
	d := t.Description + fmt.Sprintf(" Customer profile indicates %s segment with specific needs.", seg)
	if offers > 0 {
		d += fmt.Sprintf(" %d targeted offers identified for maximum relevance.", offers)
	}
	return d
}

func nextSteps(t Template, offers []offer.OfferMatch) []string {
	out := append([]string{}, t.NextSteps...)
	if len(offers) > 0 {
		out = append(out, "Prepare materials for "+offers[0].Product.Name)
	}
	return out
}

func talkingPoints(customerType string, offers []offer.OfferMatch) []string {
	var out []string
	switch customerType {
	case "enterprise":
		out = []string{
			"Scalable enterprise solutions with dedicated support",
			"Hong Kong's most reliable network infrastructure",
			"Mainland China connectivity advantages",
		}
	case "sme":
		out = []string{
			"Cost-effective business solutions",
			"Local Hong Kong support team",
			"Flexible contract terms",
		}
	default:
		out = []string{
			"Competitive consumer pricing",
			"Wide coverage across Hong Kong",
			"Latest technology offerings",
		}
	}
	for i, o := range offers {
		if i == 2 {
			break
		}
		point := "Enhanced service"
		if len(o.SellingPoints) > 0 {
			point = o.SellingPoints[0]
		}
		out = append(out, o.Product.Name+": "+point)
	}
	return out
}

func explain(in Input, offers []offer.OfferMatch) Explanation {
	sc := in.Score
	factors := []struct {
		name  string
		value float64
	}{
		{"Revenue Potential", sc.RevenuePotential / 100},
		{"Conversion Probability", sc.ConversionProbability / 100},
		{"Urgency Factor", sc.UrgencyFactor / 100},
		{"Strategic Value", sc.StrategicValue / 100},
	}
	top, positive := factors[0], 0
	for _, f := range factors {
		if f.value > top.value {
			top = f
		}
		if f.value > 0 {
			positive++
		}
	}

	e := Explanation{
		PrimaryReason:     fmt.Sprintf("High %s (%.1f%%)", top.name, top.value*100),
		SupportingFactors: []string{fmt.Sprintf("Customer segment: %s", in.Segment)},
		RiskFactors:       []string{},
		DataSources:       append([]string{}, dataSources...),
	}
	if len(offers) > 0 {
		e.SupportingFactors = append(e.SupportingFactors, fmt.Sprintf("%d relevant offers available", len(offers)))
	}
	if sc.OverallScore/100 > 0.5 {
		e.SupportingFactors = append(e.SupportingFactors, fmt.Sprintf("Strong overall lead score (%.0f%%)", sc.OverallScore))
	}
	if p, ok := strongestPattern(in.Patterns); ok {
		e.SupportingFactors = append(e.SupportingFactors, "Behaviour pattern: "+p.Name)
	}
	if in.Vector.ChurnRiskScore > 0.3 {
		e.RiskFactors = append(e.RiskFactors, "Moderate churn risk detected")
	}
	if sc.ConversionProbability/100 < 0.3 {
		e.RiskFactors = append(e.RiskFactors, "Lower conversion probability")
	}

	e.ConfidenceScore = clamp01(float64(positive)/4*0.4 + sc.Confidence*0.3 + math.Min(1, float64(len(offers))/3)*0.3)
	return e
}

// strongestPattern returns the most confident finding at or above 0.6.
func strongestPattern(ps []customer.PatternFinding) (customer.PatternFinding, bool) {
	var best customer.PatternFinding
	found := false
	for _, p := range ps {
		if p.Confidence >= 0.6 && (!found || p.Confidence > best.Confidence) {
			best, found = p, true
		}
	}
	return best, found
}

func tags(in Input, action ActionType, offers []offer.OfferMatch) []string {
	set := map[string]struct{}{
		string(action):     {},
		string(in.Segment): {},
	}
	if in.Vector.ChurnRiskScore > 0.5 {
		set["churn_risk"] = struct{}{}
	}
	for i, o := range offers {
		if i == 2 {
			break
		}
		set[string(o.Product.Category)] = struct{}{}
	}
	delete(set, "")
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
