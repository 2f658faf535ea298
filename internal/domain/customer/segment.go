package customer

// Segment is the market-behaviour category assigned to a customer.
type Segment string

const (
	SegmentPremiumBusiness   Segment = "premium_business"
	SegmentEnterpriseClient  Segment = "enterprise_client"
	SegmentHighValueLoyalist Segment = "high_value_loyalist"
	SegmentUrbanProfessional Segment = "urban_professional"
	SegmentFamilySubscriber  Segment = "family_subscriber"
	SegmentYoungDigital      Segment = "young_digital"
	SegmentInactiveChurner   Segment = "inactive_churner"
	SegmentBudgetConscious   Segment = "budget_conscious"
)

// AllSegments lists every segment in classification priority order.
var AllSegments = []Segment{
	SegmentPremiumBusiness,
	SegmentEnterpriseClient,
	SegmentHighValueLoyalist,
	SegmentUrbanProfessional,
	SegmentFamilySubscriber,
	SegmentYoungDigital,
	SegmentInactiveChurner,
	SegmentBudgetConscious,
}

var segmentDescriptions = map[Segment]string{
	SegmentPremiumBusiness:   "High-value business customer in premium Hong Kong locations",
	SegmentUrbanProfessional: "Career-focused urban professional with digital preferences",
	SegmentFamilySubscriber:  "Family-oriented customer with multiple line needs",
	SegmentYoungDigital:      "Digital-native young customer with high engagement",
	SegmentBudgetConscious:   "Price-sensitive customer focused on value",
	SegmentEnterpriseClient:  "Large business customer with complex needs",
	SegmentInactiveChurner:   "At-risk customer showing signs of disengagement",
	SegmentHighValueLoyalist: "Long-term high-value customer with strong loyalty",
}

// Description returns the human-readable segment description.
func (s Segment) Description() string {
	if d, ok := segmentDescriptions[s]; ok {
		return d
	}
	return "Standard customer segment"
}

// Valid reports whether s is one of the eight known segments.
func (s Segment) Valid() bool {
	_, ok := segmentDescriptions[s]
	return ok
}

func (s Segment) String() string { return string(s) }

// ParseSegment converts a segment name, returning false for unknown names.
func ParseSegment(name string) (Segment, bool) {
	s := Segment(name)
	return s, s.Valid()
}

// segmentRule is one link of the classification chain.
type segmentRule struct {
	segment    Segment
	confidence float64
	match      func(v FeatureVector, p MarketParams) bool
}

// segmentChain is evaluated in order and the first match wins.  Reordering
// it changes which segment customers land in.
var segmentChain = []segmentRule{
	{SegmentPremiumBusiness, 0.9, func(v FeatureVector, _ MarketParams) bool {
		return v.LocationCategory == LocationPremiumBusiness &&
			(v.SpendCategory == SpendPremium || v.SpendCategory == SpendStandard) &&
			(v.AccountType == AccountPremium || v.AccountType == AccountBusiness)
	}},
	{SegmentEnterpriseClient, 0.85, func(v FeatureVector, p MarketParams) bool {
		return v.AccountType == AccountBusiness && v.SpendFloat() >= p.PremiumThreshold
	}},
	{SegmentHighValueLoyalist, 0.9, func(v FeatureVector, _ MarketParams) bool {
		return v.TenureCategory == TenureLoyal && v.CustomerValueScore >= 0.8 && v.SatisfactionScore >= 8
	}},
	{SegmentUrbanProfessional, 0.8, func(v FeatureVector, _ MarketParams) bool {
		return v.LocationCategory == LocationUrbanResidential &&
			(v.AgeGroup == AgeEarlyCareer || v.AgeGroup == AgeMidCareer) &&
			v.DigitalEngagement >= 0.6
	}},
	{SegmentFamilySubscriber, 0.85, func(v FeatureVector, _ MarketParams) bool {
		return v.AccountType == AccountFamily
	}},
	{SegmentYoungDigital, 0.8, func(v FeatureVector, _ MarketParams) bool {
		return v.AgeGroup == AgeYoungAdult && v.DigitalEngagement >= 0.7
	}},
	{SegmentInactiveChurner, 0.75, func(v FeatureVector, p MarketParams) bool {
		return v.ChurnRiskScore >= p.ChurnRiskThreshold
	}},
}

const defaultSegmentConfidence = 0.6

// Classifier assigns exactly one Segment per FeatureVector.
type Classifier struct {
	params MarketParams
}

// NewClassifier returns a Classifier using params.
func NewClassifier(params MarketParams) *Classifier {
	return &Classifier{params: params}
}

// Classify walks the rule chain and returns the first matching segment with
// its confidence, or BudgetConscious.
func (c *Classifier) Classify(v FeatureVector) (Segment, float64) {
	for _, r := range segmentChain {
		if r.match(v, c.params) {
			return r.segment, r.confidence
		}
	}
	return SegmentBudgetConscious, defaultSegmentConfidence
}
