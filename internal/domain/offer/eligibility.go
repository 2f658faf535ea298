package offer

import (
	"fmt"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
)

// EligibilityStatus is the outcome of the eligibility chain.
type EligibilityStatus string

const (
	Eligible              EligibilityStatus = "eligible"
	ConditionallyEligible EligibilityStatus = "conditionally_eligible"
	RequiresVerification  EligibilityStatus = "requires_verification"
	NotEligible           EligibilityStatus = "not_eligible"
)

// Eligibility is the verdict for one product and one customer.  Conditions
// lists what must happen before the offer can be sold (or, for NotEligible,
// why it cannot).  ConfidenceFactor discounts the match confidence.
type Eligibility struct {
	Status           EligibilityStatus `json:"status"`
	Conditions       []string          `json:"conditions"`
	ConfidenceFactor float64           `json:"confidence_factor"`
}

func notEligible(reason string) Eligibility {
	return Eligibility{Status: NotEligible, Conditions: []string{reason}}
}

// Evaluate runs the eligibility chain for p.  Hard failures stop the chain;
// conditional outcomes accumulate and the weakest status wins.
func Evaluate(p Product, v customer.FeatureVector, seg customer.Segment, current []string, params BusinessParams) Eligibility {
	out := Eligibility{Status: Eligible, Conditions: []string{}, ConfidenceFactor: 1}

	if p.MinMonthlySpend.GreaterThan(v.MonthlySpend) {
		if p.MinMonthlySpend.GreaterThan(params.PremiumSpendThreshold) {
			return notEligible(fmt.Sprintf("Minimum spend requirement: HKD %s", p.MinMonthlySpend.StringFixed(0)))
		}
		out.Status = ConditionallyEligible
		out.Conditions = append(out.Conditions, "Spend increase required")
		out.ConfidenceFactor *= 0.7
	}

	if len(p.RequiredSegments) > 0 && !contains(p.RequiredSegments, seg.String()) {
		return notEligible(fmt.Sprintf("Customer segment not eligible: %s", seg))
	}
	if contains(p.ExcludedSegments, seg.String()) {
		return notEligible(fmt.Sprintf("Customer segment excluded: %s", seg))
	}
	if len(p.LocationRestrictions) > 0 && !contains(p.LocationRestrictions, v.LocationCategory) {
		return notEligible(fmt.Sprintf("Not available in location: %s", v.LocationCategory))
	}

	if v.TenureMonths < float64(p.RequiredTenureMonths) {
		out.Status = ConditionallyEligible
		out.Conditions = append(out.Conditions, fmt.Sprintf("Minimum tenure: %d months", p.RequiredTenureMonths))
		out.ConfidenceFactor *= 0.8
	}

	if contains(current, p.ID) {
		return notEligible("Customer already has this product")
	}

	if p.RequiresCreditCheck && v.ChurnRiskScore > params.CreditCheckChurnThreshold {
		out.Status = RequiresVerification
		out.Conditions = append(out.Conditions, "Credit check required")
		out.ConfidenceFactor *= 0.6
	}
	return out
}
