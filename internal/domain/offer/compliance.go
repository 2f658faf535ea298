package offer

import (
	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
)

// Compliance lists the regulatory steps attached to an offer.  It is
// computed independently of eligibility.
type Compliance struct {
	Compliant       bool     `json:"is_compliant"`
	Score           float64  `json:"compliance_score"`
	Violations      []string `json:"violations"`
	Warnings        []string `json:"warnings"`
	RequiredActions []string `json:"required_actions"`
	Documentation   []string `json:"documentation_needed"`
}

// ValidateCompliance checks p against the regulatory rules for v.  The score
// starts at 100; an offer below MinComplianceScore or with any violation is
// non-compliant.
func ValidateCompliance(p Product, v customer.FeatureVector, params BusinessParams) Compliance {
	c := Compliance{
		Score:           100,
		Violations:      []string{},
		Warnings:        []string{},
		RequiredActions: []string{},
		Documentation:   []string{},
	}
	require := func(action, doc string) {
		c.RequiredActions = append(c.RequiredActions, action)
		c.Documentation = append(c.Documentation, doc)
	}

	if p.RequiresIncomeVerification && v.AgeGroup == customer.AgeYoungAdult {
		require("Income verification required", "Proof of income")
	}
	if p.MinMonthlySpend.GreaterThan(v.MonthlySpend) && p.MinMonthlySpend.GreaterThan(params.PremiumSpendThreshold) {
		c.Warnings = append(c.Warnings, "Customer may not meet minimum spend requirement")
		c.Score -= 10
	}
	if p.RequiresCreditCheck {
		require("Credit check verification", "Credit assessment")
	}
	if params.ContractDisclosureRequired {
		require("Contract terms disclosure", "Signed disclosure acknowledgment")
	}
	if params.DataPrivacyConsentRequired {
		require("Data privacy consent verification", "Privacy consent form")
	}

	if c.Score < params.MinComplianceScore {
		c.Violations = append(c.Violations, "Compliance score below threshold")
	}
	c.Compliant = len(c.Violations) == 0
	return c
}
