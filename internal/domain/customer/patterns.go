package customer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
)

// Pattern types.
const (
	PatternSpending    = "spending_behavior"
	PatternUsage       = "usage_patterns"
	PatternLifecycle   = "lifecycle_stage"
	PatternEngagement  = "engagement_level"
	PatternSeasonality = "seasonality"
	PatternChurnRisk   = "churn_risk"
)

// PatternFinding is an advisory behavioural observation.  Findings feed
// explanation text and lead confidence; they never change a score.
type PatternFinding struct {
	Type               string   `json:"pattern_type"`
	Name               string   `json:"pattern_name"`
	Confidence         float64  `json:"confidence"`
	Description        string   `json:"description"`
	KeyIndicators      []string `json:"key_indicators"`
	BusinessImpact     string   `json:"business_impact"`
	RecommendedActions []string `json:"recommended_actions"`
	TrendDirection     string   `json:"trend_direction,omitempty"`
	Seasonality        string   `json:"seasonality,omitempty"`
}

// DetectorInput is what every Detector sees.
type DetectorInput struct {
	Record  Record
	History []Purchase
	Vector  FeatureVector
	Params  MarketParams
}

// Detector is an independent, stateless pattern predicate.  A detector must
// not read another detector's output.
type Detector func(in DetectorInput) []PatternFinding

// DefaultDetectors returns the built-in detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		DetectSpendingConsistency,
		DetectSpendingTrend,
		DetectUsageIntensity,
		DetectLifecycleStage,
		DetectEngagement,
		DetectSeasonality,
		DetectChurnRisk,
	}
}

// PatternAnalyzer runs a fixed set of detectors.
type PatternAnalyzer struct {
	params    MarketParams
	detectors []Detector
	logger    logging.Logger
}

// NewPatternAnalyzer returns an analyzer over detectors, or over
// DefaultDetectors when none are given.
func NewPatternAnalyzer(params MarketParams, logger logging.Logger, detectors ...Detector) *PatternAnalyzer {
	if len(detectors) == 0 {
		detectors = DefaultDetectors()
	}
	return &PatternAnalyzer{params: params, detectors: detectors, logger: logging.OrNop(logger).Named("patterns")}
}

// Analyze returns every finding of every detector.  Order follows the
// detector slice; callers must not depend on it.
func (a *PatternAnalyzer) Analyze(rec Record, history []Purchase, v FeatureVector) []PatternFinding {
	in := DetectorInput{Record: rec, History: history, Vector: v, Params: a.params}
	var out []PatternFinding
	for _, d := range a.detectors {
		out = append(out, d(in)...)
	}
	a.logger.Debug("patterns detected", logging.CustomerID(rec.CustomerID), logging.Int("count", len(out)))
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Spending
// ─────────────────────────────────────────────────────────────────────────────

// DetectSpendingConsistency flags consistent or highly variable spenders by
// the coefficient of variation of positive purchase amounts.
func DetectSpendingConsistency(in DetectorInput) []PatternFinding {
	amounts := positiveAmounts(in.History)
	if len(amounts) <= 2 {
		return nil
	}
	mean, variance := meanVariance(amounts)
	if mean <= 0 {
		return nil
	}
	cv := math.Sqrt(variance) / mean
	switch {
	case cv < 0.2:
		return []PatternFinding{{
			Type:               PatternSpending,
			Name:               "consistent_spender",
			Confidence:         0.9,
			Description:        "Customer shows consistent spending patterns with low variance",
			KeyIndicators:      []string{"Low spending variance", "Regular purchase amounts"},
			BusinessImpact:     "High predictability for revenue forecasting",
			RecommendedActions: []string{"Offer subscription plans", "Predictable billing options"},
		}}
	case cv > 0.8:
		return []PatternFinding{{
			Type:               PatternSpending,
			Name:               "variable_spender",
			Confidence:         0.8,
			Description:        "Customer shows highly variable spending patterns",
			KeyIndicators:      []string{"High spending variance", "Irregular purchase amounts"},
			BusinessImpact:     "Unpredictable revenue contribution",
			RecommendedActions: []string{"Flexible plans", "Usage-based pricing"},
		}}
	}
	return nil
}

// DetectSpendingTrend compares the average of the last three purchases with
// the first three.
func DetectSpendingTrend(in DetectorInput) []PatternFinding {
	amounts := positiveAmounts(in.History)
	if len(amounts) < 3 {
		return nil
	}
	early := (amounts[0] + amounts[1] + amounts[2]) / 3
	n := len(amounts)
	recent := (amounts[n-1] + amounts[n-2] + amounts[n-3]) / 3

	switch {
	case recent > early*1.2:
		return []PatternFinding{{
			Type:               PatternSpending,
			Name:               "increasing_spend",
			Confidence:         0.8,
			Description:        "Customer spending is trending upward",
			KeyIndicators:      []string{"Recent purchases > historical average"},
			BusinessImpact:     "Positive revenue growth potential",
			RecommendedActions: []string{"Premium upsell offers", "Value-added services"},
			TrendDirection:     "increasing",
		}}
	case recent < early*0.8:
		return []PatternFinding{{
			Type:               PatternSpending,
			Name:               "decreasing_spend",
			Confidence:         0.8,
			Description:        "Customer spending is trending downward",
			KeyIndicators:      []string{"Recent purchases < historical average"},
			BusinessImpact:     "Risk of revenue decline",
			RecommendedActions: []string{"Retention offers", "Engagement campaigns"},
			TrendDirection:     "decreasing",
		}}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Usage
// ─────────────────────────────────────────────────────────────────────────────

// DetectUsageIntensity flags heavy data, heavy voice, digitally engaged and
// minimal users.  Several may apply at once.
func DetectUsageIntensity(in DetectorInput) []PatternFinding {
	v, p := in.Vector, in.Params
	var out []PatternFinding

	if v.DataUsageGB > p.HighUsageDataGB {
		out = append(out, PatternFinding{
			Type:               PatternUsage,
			Name:               "heavy_data_user",
			Confidence:         0.9,
			Description:        "Customer is a heavy data user exceeding average consumption",
			KeyIndicators:      []string{fmt.Sprintf("Data usage: %vGB/month", v.DataUsageGB)},
			BusinessImpact:     "High value customer for unlimited plans",
			RecommendedActions: []string{"Unlimited data plans", "5G premium services"},
		})
	}
	if v.VoiceMinutes > p.HighVoiceMinutes {
		out = append(out, PatternFinding{
			Type:               PatternUsage,
			Name:               "voice_heavy_user",
			Confidence:         0.85,
			Description:        "Customer makes extensive use of voice services",
			KeyIndicators:      []string{fmt.Sprintf("Voice usage: %v minutes/month", v.VoiceMinutes)},
			BusinessImpact:     "Good candidate for voice-inclusive plans",
			RecommendedActions: []string{"Unlimited calling plans", "International calling packages"},
		})
	}
	if v.DigitalEngagement > 0.7 {
		out = append(out, PatternFinding{
			Type:               PatternUsage,
			Name:               "digitally_engaged",
			Confidence:         0.8,
			Description:        "Customer shows high digital engagement across services",
			KeyIndicators:      []string{"High app usage", "Active service interactions"},
			BusinessImpact:     "Receptive to digital services and offers",
			RecommendedActions: []string{"Digital service bundles", "App-based promotions"},
		})
	}
	if v.DataUsageGB < p.StandardDataGB && v.VoiceMinutes < 100 && v.DigitalEngagement < 0.3 {
		out = append(out, PatternFinding{
			Type:               PatternUsage,
			Name:               "minimal_user",
			Confidence:         0.75,
			Description:        "Customer shows minimal usage across all services",
			KeyIndicators:      []string{"Low data usage", "Low voice usage", "Low engagement"},
			BusinessImpact:     "At risk customer, potential for churn",
			RecommendedActions: []string{"Basic plans", "Education campaigns", "Retention efforts"},
		})
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// DetectLifecycleStage flags onboarding, loyal advocates and established
// customers at risk.
func DetectLifecycleStage(in DetectorInput) []PatternFinding {
	v := in.Vector
	var out []PatternFinding

	if v.TenureCategory == TenureNew {
		out = append(out, PatternFinding{
			Type:               PatternLifecycle,
			Name:               "new_customer_onboarding",
			Confidence:         0.9,
			Description:        "Customer is in the early onboarding phase",
			KeyIndicators:      []string{"Tenure < 6 months"},
			BusinessImpact:     "Critical period for satisfaction and retention",
			RecommendedActions: []string{"Welcome programs", "Onboarding support", "Early engagement"},
		})
	}
	if v.TenureCategory == TenureLoyal && v.SatisfactionScore >= 7 {
		out = append(out, PatternFinding{
			Type:               PatternLifecycle,
			Name:               "loyal_advocate",
			Confidence:         0.9,
			Description:        "Long-term satisfied customer with advocacy potential",
			KeyIndicators:      []string{"Tenure > 24 months", "High satisfaction"},
			BusinessImpact:     "High lifetime value and referral potential",
			RecommendedActions: []string{"Loyalty rewards", "Referral programs", "VIP services"},
		})
	}
	if (v.TenureCategory == TenureEstablished || v.TenureCategory == TenureLoyal) &&
		v.ChurnRiskScore > in.Params.ChurnRiskThreshold {
		out = append(out, PatternFinding{
			Type:               PatternLifecycle,
			Name:               "at_risk_established",
			Confidence:         0.8,
			Description:        "Established customer showing signs of dissatisfaction",
			KeyIndicators:      []string{"Long tenure but high churn risk"},
			BusinessImpact:     "High-value customer at risk of leaving",
			RecommendedActions: []string{"Retention campaigns", "Personal account management", "Service recovery"},
		})
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Engagement
// ─────────────────────────────────────────────────────────────────────────────

// DetectEngagement runs only when an engagement record was supplied.
func DetectEngagement(in DetectorInput) []PatternFinding {
	v := in.Vector
	if !v.HasEngagement {
		return nil
	}
	var out []PatternFinding

	if v.DigitalEngagement > 0.7 && v.SatisfactionScore >= 8 {
		out = append(out, PatternFinding{
			Type:               PatternEngagement,
			Name:               "highly_engaged_advocate",
			Confidence:         0.9,
			Description:        "Customer is highly engaged and satisfied",
			KeyIndicators:      []string{"High digital engagement", "High satisfaction score"},
			BusinessImpact:     "Strong candidate for premium services and advocacy",
			RecommendedActions: []string{"Premium offers", "Beta testing programs", "Referral incentives"},
		})
	}
	if v.DigitalEngagement < 0.4 && v.ServiceInteractions == 0 && v.SatisfactionScore < 6 {
		out = append(out, PatternFinding{
			Type:               PatternEngagement,
			Name:               "disengaged_at_risk",
			Confidence:         0.8,
			Description:        "Customer shows declining engagement and satisfaction",
			KeyIndicators:      []string{"Low digital engagement", "No recent interactions", "Low satisfaction"},
			BusinessImpact:     "High churn risk requiring immediate intervention",
			RecommendedActions: []string{"Re-engagement campaigns", "Proactive support", "Win-back offers"},
		})
	}
	if v.ServiceInteractions > 5 && v.ComplaintCount > 2 {
		out = append(out, PatternFinding{
			Type:               PatternEngagement,
			Name:               "high_maintenance_customer",
			Confidence:         0.75,
			Description:        "Customer requires frequent service support",
			KeyIndicators:      []string{"High service interactions", "Multiple complaints"},
			BusinessImpact:     "High service cost but potential for improvement",
			RecommendedActions: []string{"Proactive support", "Service improvement", "Alternative solutions"},
		})
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Seasonality
// ─────────────────────────────────────────────────────────────────────────────

// minSeasonalPurchases is the number of dated purchases needed before
// seasonality is considered.
const minSeasonalPurchases = 6

// DetectSeasonality flags calendar months whose average spend exceeds the
// overall monthly average by 30%.  Fewer than six dated purchases, or fewer
// than three distinct months, skip the detector silently.
func DetectSeasonality(in DetectorInput) []PatternFinding {
	type bucket struct {
		sum float64
		n   int
	}
	var order []string
	months := make(map[string]*bucket)
	dated := 0

	for _, p := range in.History {
		if p.Amount == nil || !p.Amount.IsPositive() {
			continue
		}
		m, ok := purchaseMonth(p.Date)
		if !ok {
			continue
		}
		dated++
		b, seen := months[m]
		if !seen {
			b = &bucket{}
			months[m] = b
			order = append(order, m)
		}
		b.sum += p.Amount.InexactFloat64()
		b.n++
	}
	if dated < minSeasonalPurchases || len(months) < 3 {
		return nil
	}

	var overall float64
	for _, b := range months {
		overall += b.sum / float64(b.n)
	}
	overall /= float64(len(months))

	var high []string
	for _, m := range order {
		b := months[m]
		if b.sum/float64(b.n) > overall*1.3 {
			high = append(high, m)
		}
	}
	if len(high) == 0 {
		return nil
	}
	joined := strings.Join(high, ", ")
	return []PatternFinding{{
		Type:               PatternSeasonality,
		Name:               "seasonal_high_spending",
		Confidence:         0.7,
		Description:        "Customer shows increased spending in months: " + joined,
		KeyIndicators:      []string{"High spending months: " + joined},
		BusinessImpact:     "Predictable high-value periods for targeted offers",
		RecommendedActions: []string{"Seasonal promotions", "Targeted campaigns"},
		Seasonality:        "High: " + joined,
	}}
}

var purchaseDateLayouts = []string{"2006-01-02", "2006-01", time.RFC3339, "2006-01-02 15:04:05"}

// purchaseMonth returns the two-digit month of a purchase date.
func purchaseMonth(date string) (string, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", false
	}
	for _, layout := range purchaseDateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return fmt.Sprintf("%02d", int(t.Month())), true
		}
	}
	return "", false
}

// ─────────────────────────────────────────────────────────────────────────────
// Churn
// ─────────────────────────────────────────────────────────────────────────────

// DetectChurnRisk flags customers above the churn threshold and lists the
// contributing indicators.
func DetectChurnRisk(in DetectorInput) []PatternFinding {
	v := in.Vector
	if v.ChurnRiskScore <= in.Params.ChurnRiskThreshold {
		return nil
	}
	indicators := []string{}
	if v.SatisfactionScore < 5 {
		indicators = append(indicators, "Low satisfaction score")
	}
	if v.DigitalEngagement < 0.3 {
		indicators = append(indicators, "Low digital engagement")
	}
	if v.ComplaintCount > 2 {
		indicators = append(indicators, "Multiple complaints")
	}
	if v.CompetitorSwitchRisk > 0.6 {
		indicators = append(indicators, "High competitor switch risk")
	}
	return []PatternFinding{{
		Type:           PatternChurnRisk,
		Name:           "high_churn_risk",
		Confidence:     math.Min(0.9, v.ChurnRiskScore),
		Description:    "Customer shows multiple indicators of potential churn",
		KeyIndicators:  indicators,
		BusinessImpact: "Immediate risk of customer loss",
		RecommendedActions: []string{
			"Immediate retention intervention",
			"Personal account management",
			"Service recovery program",
			"Competitive retention offers",
		},
	}}
}
