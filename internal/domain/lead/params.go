package lead

import (
	"fmt"
	"math"
	"sort"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// Weights blends the four sub-scores into the overall score.  They must sum
// to 1.0.
type Weights struct {
	Revenue    float64 `json:"revenue"`
	Conversion float64 `json:"conversion"`
	Urgency    float64 `json:"urgency"`
	Strategic  float64 `json:"strategic"`
}

func (w Weights) sum() float64 { return w.Revenue + w.Conversion + w.Urgency + w.Strategic }

// PriorityThresholds are lower bounds on the priority score.
type PriorityThresholds struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
	Low      float64 `json:"low"`
}

// QualificationThresholds are lower bounds on the conversion probability.
type QualificationThresholds struct {
	Hot  float64 `json:"hot"`
	Warm float64 `json:"warm"`
	Cold float64 `json:"cold"`
}

// Params holds every tunable number used by the Scorer.
type Params struct {
	Weights Weights `json:"weights"`

	// PriorityBlend is the share of the overall score in the priority score;
	// the remainder comes from urgency.
	PriorityBlend float64 `json:"priority_blend"`

	Priority      PriorityThresholds      `json:"priority"`
	Qualification QualificationThresholds `json:"qualification"`

	// PremiumDealSize normalizes current monthly spend to 100 points.
	PremiumDealSize       float64 `json:"premium_deal_size"`
	MinSpendQualification float64 `json:"min_spend_qualification"`

	ConversionRates       map[customer.Segment]float64 `json:"conversion_rates"`
	DefaultConversionRate float64                      `json:"default_conversion_rate"`
	LocationMultipliers   map[string]float64           `json:"location_multipliers"`
	AccountScores         map[string]float64           `json:"account_scores"`

	NewCustomerBonus float64 `json:"new_customer_bonus"`
	LoyaltyBonus     float64 `json:"loyalty_bonus"`
	ChurnerPenalty   float64 `json:"churner_penalty"`

	RenewalSeasonMultiplier       float64 `json:"renewal_season_multiplier"`
	CompetitiveCampaignMultiplier float64 `json:"competitive_campaign_multiplier"`
}

// DefaultParams returns the calibrated Hong Kong telecom scoring parameters.
func DefaultParams() Params {
	return Params{
		Weights:       Weights{Revenue: 0.35, Conversion: 0.30, Urgency: 0.20, Strategic: 0.15},
		PriorityBlend: 0.7,
		Priority:      PriorityThresholds{Critical: 85, High: 70, Medium: 50, Low: 30},
		Qualification: QualificationThresholds{Hot: 75, Warm: 50, Cold: 25},

		PremiumDealSize:       2500,
		MinSpendQualification: 200,

		ConversionRates: map[customer.Segment]float64{
			customer.SegmentPremiumBusiness:   0.25,
			customer.SegmentUrbanProfessional: 0.18,
			customer.SegmentFamilySubscriber:  0.15,
			customer.SegmentYoungDigital:      0.20,
			customer.SegmentBudgetConscious:   0.08,
			customer.SegmentEnterpriseClient:  0.35,
			customer.SegmentHighValueLoyalist: 0.40,
		},
		DefaultConversionRate: 0.12,
		LocationMultipliers: map[string]float64{
			customer.LocationPremiumBusiness:  1.3,
			customer.LocationUrbanResidential: 1.1,
			customer.LocationSuburbanFamily:   1.0,
			"remote_areas":                    0.9,
		},
		AccountScores: map[string]float64{
			"enterprise":             100,
			customer.AccountBusiness: 80,
			customer.AccountPremium:  70,
			customer.AccountFamily:   50,
			customer.AccountStandard: 40,
		},

		NewCustomerBonus: 1.2,
		LoyaltyBonus:     1.1,
		ChurnerPenalty:   0.8,

		RenewalSeasonMultiplier:       1.3,
		CompetitiveCampaignMultiplier: 1.2,
	}
}

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeScoringParams, fmt.Sprintf(format, args...))
}

type namedValue struct {
	name string
	x    float64
}

// Validate reports the first inconsistency as a LEAD_002 error.  Checks run
// in a fixed order, so the same Params always yield the same error.
func (p Params) Validate() error {
	w := p.Weights
	for _, c := range []namedValue{
		{"revenue", w.Revenue},
		{"conversion", w.Conversion},
		{"urgency", w.Urgency},
		{"strategic", w.Strategic},
	} {
		if c.x < 0 {
			return invalid("weight %s must be >= 0, got %.3f", c.name, c.x)
		}
	}
	if math.Abs(w.sum()-1.0) > 1e-6 {
		return invalid("weights must sum to 1.0, got %.6f", w.sum())
	}
	if p.PriorityBlend < 0 || p.PriorityBlend > 1 {
		return invalid("priority blend must be in [0,1], got %.3f", p.PriorityBlend)
	}

	t := p.Priority
	if !(t.Critical <= 100 && t.Critical > t.High && t.High > t.Medium && t.Medium > t.Low && t.Low > 0) {
		return invalid("priority thresholds must satisfy 100 >= critical > high > medium > low > 0")
	}
	q := p.Qualification
	if !(q.Hot <= 100 && q.Hot > q.Warm && q.Warm > q.Cold && q.Cold > 0) {
		return invalid("qualification thresholds must satisfy 100 >= hot > warm > cold > 0")
	}

	if p.PremiumDealSize <= 0 {
		return invalid("premium deal size must be positive")
	}
	if p.DefaultConversionRate < 0 || p.DefaultConversionRate > 1 {
		return invalid("default conversion rate must be in [0,1]")
	}
	segs := make([]string, 0, len(p.ConversionRates))
	for seg := range p.ConversionRates {
		segs = append(segs, string(seg))
	}
	sort.Strings(segs)
	for _, seg := range segs {
		if r := p.ConversionRates[customer.Segment(seg)]; r < 0 || r > 1 {
			return invalid("conversion rate for %s must be in [0,1], got %.3f", seg, r)
		}
	}
	locs := make([]string, 0, len(p.LocationMultipliers))
	for loc := range p.LocationMultipliers {
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	for _, loc := range locs {
		if p.LocationMultipliers[loc] <= 0 {
			return invalid("location multiplier for %s must be positive", loc)
		}
	}
	for _, c := range []namedValue{
		{"new customer bonus", p.NewCustomerBonus},
		{"loyalty bonus", p.LoyaltyBonus},
		{"churner penalty", p.ChurnerPenalty},
		{"renewal season multiplier", p.RenewalSeasonMultiplier},
		{"competitive campaign multiplier", p.CompetitiveCampaignMultiplier},
	} {
		if c.x <= 0 {
			return invalid("%s must be positive", c.name)
		}
	}
	return nil
}
