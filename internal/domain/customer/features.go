package customer

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
)

// Category values produced by the extractor.
const (
	AgeUnknown            = "unknown"
	AgeYoungAdult         = "young_adult"
	AgeEarlyCareer        = "early_career"
	AgeMidCareer          = "mid_career"
	AgeSeniorProfessional = "senior_professional"
	AgeMature             = "mature"

	LocationPremiumBusiness  = "premium_business"
	LocationUrbanResidential = "urban_residential"
	LocationSuburbanFamily   = "suburban_family"
	LocationGeneral          = "general"

	AccountPremium  = "premium"
	AccountBusiness = "business"
	AccountFamily   = "family"
	AccountStandard = "standard"

	TenureNew         = "new"
	TenureRecent      = "recent"
	TenureEstablished = "established"
	TenureLoyal       = "loyal"

	SpendPremium  = "premium"
	SpendStandard = "standard"
	SpendBudget   = "budget"
	SpendMinimal  = "minimal"

	FrequencyHigh   = "high"
	FrequencyMedium = "medium"
	FrequencyLow    = "low"

	MarketPremiumBusiness   = "premium_business"
	MarketCorporate         = "corporate"
	MarketUrbanProfessional = "urban_professional"
	MarketFamilySubscriber  = "family_subscriber"
	MarketGeneralConsumer   = "general_consumer"
)

// DefaultSatisfaction is assumed when no engagement record supplies one.
const DefaultSatisfaction = 5.0

// completenessFields is the number of extractable inputs counted by
// FeatureVector.Completeness.
const completenessFields = 14

// FeatureVector is the normalized view of one customer.  It is built once by
// Extractor.Extract and never modified afterwards.  Every score, risk and
// propensity is in [0,1].
type FeatureVector struct {
	CustomerID   string `json:"customer_id,omitempty"`
	CustomerType string `json:"customer_type,omitempty"`

	// Demographic
	AgeGroup         string  `json:"age_group"`
	LocationCategory string  `json:"location_category"`
	AccountType      string  `json:"account_type"`
	TenureCategory   string  `json:"tenure_category"`
	TenureMonths     float64 `json:"tenure_months"`

	// Financial
	MonthlySpend       decimal.Decimal `json:"monthly_spend"`
	SpendCategory      string          `json:"spend_category"`
	SpendVariance      float64         `json:"spend_variance"`
	PaymentReliability float64         `json:"payment_reliability"`

	// Usage
	DataUsageGB  float64 `json:"data_usage_gb"`
	VoiceMinutes float64 `json:"voice_minutes"`
	SMSCount     int     `json:"sms_count"`
	RoamingUsage float64 `json:"roaming_usage"`

	// Behavioral
	PurchaseFrequency   string  `json:"purchase_frequency"`
	ServiceInteractions int     `json:"service_interactions"`
	ComplaintCount      int     `json:"complaint_count"`
	SatisfactionScore   float64 `json:"satisfaction_score"`

	// Engagement
	AppUsageHours         float64 `json:"app_usage_hours"`
	DigitalEngagement     float64 `json:"digital_engagement"`
	PromotionResponseRate float64 `json:"promotion_response_rate"`
	HasEngagement         bool    `json:"has_engagement"`

	// Market
	MarketSegment        string  `json:"market_segment"`
	CompetitorSwitchRisk float64 `json:"competitor_switch_risk"`
	ComplianceScore      float64 `json:"compliance_score"`

	// Computed
	CustomerValueScore float64 `json:"customer_value_score"`
	ChurnRiskScore     float64 `json:"churn_risk_score"`
	UpsellPropensity   float64 `json:"upsell_propensity"`

	// Completeness is the fraction of extractable inputs that were supplied
	// and well formed.
	Completeness float64   `json:"completeness"`
	Warnings     []Warning `json:"warnings,omitempty"`
}

// SpendFloat returns MonthlySpend as a float for ratio arithmetic.
func (v FeatureVector) SpendFloat() float64 {
	return v.MonthlySpend.InexactFloat64()
}

// ─────────────────────────────────────────────────────────────────────────────
// Extractor
// ─────────────────────────────────────────────────────────────────────────────

// Extractor builds FeatureVectors.  It is safe for concurrent use.
type Extractor struct {
	params MarketParams
	logger logging.Logger
}

// NewExtractor returns an Extractor using params.  Callers validate params
// beforehand.
func NewExtractor(params MarketParams, logger logging.Logger) *Extractor {
	return &Extractor{params: params, logger: logging.OrNop(logger).Named("extractor")}
}

// Params returns the market calibration in use.
func (e *Extractor) Params() MarketParams { return e.params }

// Extract builds the FeatureVector for one customer.  It never fails: missing
// inputs take their default and malformed ones additionally produce a warning.
func (e *Extractor) Extract(rec Record, history []Purchase, eng *Engagement) FeatureVector {
	v := FeatureVector{
		CustomerID:        rec.CustomerID,
		CustomerType:      strings.ToLower(strings.TrimSpace(rec.CustomerType)),
		SatisfactionScore: DefaultSatisfaction,
		ComplianceScore:   1.0,
		PurchaseFrequency: FrequencyLow,
		MonthlySpend:      decimal.Zero,
	}
	v.Warnings = append(v.Warnings, rec.Warnings...)
	for _, p := range history {
		v.Warnings = append(v.Warnings, p.Warnings...)
	}
	if eng != nil {
		v.Warnings = append(v.Warnings, eng.Warnings...)
	}

	supplied := 0
	count := func(ok bool) {
		if ok {
			supplied++
		}
	}

	count(e.extractDemographic(&v, rec))
	count(rec.Location != "")
	count(rec.AccountType != "" || v.CustomerType != "")
	count(rec.TenureMonths != nil)
	count(e.extractFinancial(&v, rec, history))
	count(len(history) > 0)
	count(e.extractUsage(&v, rec))
	count(rec.VoiceMinutes != nil)
	count(rec.SMSCount != nil)
	count(rec.RoamingUsage != nil)
	supplied += e.extractEngagement(&v, eng)

	e.extractMarket(&v)
	e.computeDerived(&v)

	v.Completeness = clamp01(float64(supplied) / completenessFields)

	for _, w := range v.Warnings {
		e.logger.Warn("malformed customer field",
			logging.CustomerID(rec.CustomerID),
			logging.String("field", w.Field),
			logging.String("reason", w.Reason))
	}
	return v
}

// extractDemographic reports whether an age was supplied.
func (e *Extractor) extractDemographic(v *FeatureVector, rec Record) bool {
	switch {
	case rec.Age != nil:
		v.AgeGroup = ageGroup(*rec.Age)
	case strings.TrimSpace(rec.AgeGroup) != "":
		v.AgeGroup = strings.ToLower(strings.TrimSpace(rec.AgeGroup))
	default:
		v.AgeGroup = AgeUnknown
	}

	v.LocationCategory = locationCategory(rec.Location)

	acct := rec.AccountType
	if strings.TrimSpace(acct) == "" {
		acct = accountFromCustomerType(v.CustomerType)
	}
	v.AccountType = accountType(acct)

	if rec.TenureMonths != nil {
		v.TenureMonths = math.Max(0, *rec.TenureMonths)
	}
	v.TenureCategory = tenureCategory(v.TenureMonths)

	return rec.Age != nil || strings.TrimSpace(rec.AgeGroup) != ""
}

// extractFinancial reports whether a monthly spend was supplied.
func (e *Extractor) extractFinancial(v *FeatureVector, rec Record, history []Purchase) bool {
	if rec.MonthlySpend != nil {
		if rec.MonthlySpend.IsNegative() {
			v.Warnings = append(v.Warnings, Warning{Field: "monthly_spend", Value: rec.MonthlySpend.String(), Reason: "negative spend"})
		} else {
			v.MonthlySpend = *rec.MonthlySpend
		}
	}
	v.SpendCategory = e.spendCategory(v.SpendFloat())

	amounts := positiveAmounts(history)
	if len(amounts) > 1 {
		_, v.SpendVariance = meanVariance(amounts)
	}
	if len(amounts) > 0 {
		v.PaymentReliability = math.Min(1, float64(len(amounts))/12)
	}

	switch n := len(history); {
	case n >= 10:
		v.PurchaseFrequency = FrequencyHigh
	case n >= 5:
		v.PurchaseFrequency = FrequencyMedium
	default:
		v.PurchaseFrequency = FrequencyLow
	}
	return rec.MonthlySpend != nil && !rec.MonthlySpend.IsNegative()
}

// extractUsage reports whether data usage was supplied.
func (e *Extractor) extractUsage(v *FeatureVector, rec Record) bool {
	if rec.DataUsageGB != nil {
		v.DataUsageGB = math.Max(0, *rec.DataUsageGB)
	}
	if rec.VoiceMinutes != nil {
		v.VoiceMinutes = math.Max(0, *rec.VoiceMinutes)
	}
	if rec.SMSCount != nil && *rec.SMSCount > 0 {
		v.SMSCount = *rec.SMSCount
	}
	if rec.RoamingUsage != nil {
		v.RoamingUsage = math.Max(0, *rec.RoamingUsage)
	}
	return rec.DataUsageGB != nil
}

// extractEngagement returns how many of the four counted engagement inputs
// were supplied.
func (e *Extractor) extractEngagement(v *FeatureVector, eng *Engagement) int {
	if eng.IsEmpty() {
		return 0
	}
	v.HasEngagement = true
	n := 0

	if eng.SatisfactionScore != nil {
		s := *eng.SatisfactionScore
		if s < 0 || s > 10 {
			v.Warnings = append(v.Warnings, malformed("engagement.satisfaction_score", s, "outside 0..10"))
			s = math.Max(0, math.Min(10, s))
		}
		v.SatisfactionScore = s
		n++
	}
	if eng.AppUsageHours != nil {
		v.AppUsageHours = math.Max(0, *eng.AppUsageHours)
		n++
	}
	if eng.ServiceInteractions != nil {
		v.ServiceInteractions = maxInt(0, *eng.ServiceInteractions)
		n++
	}
	if eng.ComplaintCount != nil {
		v.ComplaintCount = maxInt(0, *eng.ComplaintCount)
		n++
	}

	score := 0.0
	if v.AppUsageHours > 0 {
		score += math.Min(0.4, v.AppUsageHours/20)
	}
	if v.ServiceInteractions > 0 {
		score += math.Min(0.3, float64(v.ServiceInteractions)/10)
	}
	if v.SatisfactionScore > 5 {
		score += math.Min(0.3, (v.SatisfactionScore-5)/5)
	}
	v.DigitalEngagement = clamp01(score)

	responses, offers := 0, 1
	if eng.PromotionResponses != nil {
		responses = maxInt(0, *eng.PromotionResponses)
	}
	if eng.PromotionOffers != nil {
		offers = *eng.PromotionOffers
	}
	if offers > 0 {
		v.PromotionResponseRate = math.Min(1, float64(responses)/float64(offers))
	} else if responses > 0 {
		v.Warnings = append(v.Warnings, malformed("engagement.promotion_offers", offers, "responses without offers"))
	}
	return n
}

func (e *Extractor) extractMarket(v *FeatureVector) {
	switch {
	case v.LocationCategory == LocationPremiumBusiness && (v.SpendCategory == SpendPremium || v.SpendCategory == SpendStandard):
		v.MarketSegment = MarketPremiumBusiness
	case v.AccountType == AccountBusiness:
		v.MarketSegment = MarketCorporate
	case v.LocationCategory == LocationUrbanResidential && (v.AgeGroup == AgeYoungAdult || v.AgeGroup == AgeEarlyCareer):
		v.MarketSegment = MarketUrbanProfessional
	case v.AccountType == AccountFamily:
		v.MarketSegment = MarketFamilySubscriber
	default:
		v.MarketSegment = MarketGeneralConsumer
	}

	risk := 0.0
	if v.SatisfactionScore < 6 {
		risk += 0.3
	}
	if v.ComplaintCount > 2 {
		risk += 0.2
	}
	if v.SpendCategory == SpendMinimal {
		risk += 0.2
	}
	if v.TenureCategory == TenureNew {
		risk += 0.15
	}
	v.CompetitorSwitchRisk = clamp01(risk)
	v.ComplianceScore = 1.0
}

var tenureValue = map[string]float64{
	TenureNew:         0.2,
	TenureRecent:      0.5,
	TenureEstablished: 0.8,
	TenureLoyal:       1.0,
}

func (e *Extractor) computeDerived(v *FeatureVector) {
	spend := v.SpendFloat()

	value := 0.40*math.Min(1, spend/e.params.PremiumThreshold) +
		0.20*tenureValue[v.TenureCategory] +
		0.25*v.DigitalEngagement +
		0.15*math.Min(1, v.SatisfactionScore/10)
	v.CustomerValueScore = clamp01(value)

	var satRisk, engRisk, complaintRisk float64
	switch {
	case v.SatisfactionScore < 5:
		satRisk = 1
	case v.SatisfactionScore < 7:
		satRisk = 0.5
	}
	switch {
	case v.DigitalEngagement < 0.3:
		engRisk = 1
	case v.DigitalEngagement < 0.6:
		engRisk = 0.5
	}
	switch {
	case v.ComplaintCount > 3:
		complaintRisk = 1
	case v.ComplaintCount > 1:
		complaintRisk = 0.5
	}
	churn := 0.40*satRisk + 0.30*engRisk + 0.20*complaintRisk + 0.10*v.CompetitorSwitchRisk
	v.ChurnRiskScore = clamp01(churn)

	var capacity float64
	switch v.SpendCategory {
	case SpendBudget, SpendMinimal:
		if spend/e.params.AverageMonthlySpend < 0.8 {
			capacity = 1
		} else {
			capacity = 0.5
		}
	case SpendStandard:
		capacity = 0.75
	default:
		capacity = 0.25
	}
	var satProp float64
	switch {
	case v.SatisfactionScore >= 8:
		satProp = 1
	case v.SatisfactionScore >= 6:
		satProp = 0.6
	default:
		satProp = 0.2
	}
	upsell := 0.40*capacity + 0.35*v.DigitalEngagement + 0.25*satProp
	v.UpsellPropensity = clamp01(upsell)
}

// ─────────────────────────────────────────────────────────────────────────────
// Category helpers
// ─────────────────────────────────────────────────────────────────────────────

func ageGroup(age float64) string {
	switch {
	case age < 25:
		return AgeYoungAdult
	case age < 35:
		return AgeEarlyCareer
	case age < 45:
		return AgeMidCareer
	case age < 55:
		return AgeSeniorProfessional
	default:
		return AgeMature
	}
}

func locationCategory(location string) string {
	l := strings.ToLower(location)
	switch {
	case strings.Contains(l, "hong kong island") || strings.Contains(l, "central"):
		return LocationPremiumBusiness
	case strings.Contains(l, "kowloon"):
		return LocationUrbanResidential
	case strings.Contains(l, "new territories"):
		return LocationSuburbanFamily
	default:
		return LocationGeneral
	}
}

func accountType(raw string) string {
	a := strings.ToLower(raw)
	switch {
	case strings.Contains(a, "premium") || strings.Contains(a, "vip"):
		return AccountPremium
	case strings.Contains(a, "business"):
		return AccountBusiness
	case strings.Contains(a, "family"):
		return AccountFamily
	default:
		return AccountStandard
	}
}

// accountFromCustomerType maps the B2B customer type onto an account type.
func accountFromCustomerType(customerType string) string {
	switch customerType {
	case "enterprise", "sme":
		return AccountBusiness
	default:
		return ""
	}
}

func tenureCategory(months float64) string {
	switch {
	case months < 6:
		return TenureNew
	case months < 12:
		return TenureRecent
	case months < 24:
		return TenureEstablished
	default:
		return TenureLoyal
	}
}

func (e *Extractor) spendCategory(spend float64) string {
	switch {
	case spend >= e.params.PremiumThreshold:
		return SpendPremium
	case spend >= e.params.AverageMonthlySpend:
		return SpendStandard
	case spend >= e.params.BudgetThreshold:
		return SpendBudget
	default:
		return SpendMinimal
	}
}

// positiveAmounts returns the strictly positive purchase amounts in order.
func positiveAmounts(history []Purchase) []float64 {
	out := make([]float64, 0, len(history))
	for _, p := range history {
		if p.Amount == nil || !p.Amount.IsPositive() {
			continue
		}
		out = append(out, p.Amount.InexactFloat64())
	}
	return out
}

// meanVariance returns the mean and population variance of xs.
func meanVariance(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, sq / float64(len(xs))
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
