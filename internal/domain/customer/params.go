package customer

import (
	"fmt"

	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// MarketParams holds the market calibration used by extraction, pattern
// detection and segmentation.  Currency values are monthly spend units.
type MarketParams struct {
	AverageMonthlySpend float64 `json:"average_monthly_spend"`
	PremiumThreshold    float64 `json:"premium_threshold"`
	BudgetThreshold     float64 `json:"budget_threshold"`
	HighUsageDataGB     float64 `json:"high_usage_data_gb"`
	StandardDataGB      float64 `json:"standard_data_gb"`
	HighVoiceMinutes    float64 `json:"high_voice_minutes"`
	ChurnRiskThreshold  float64 `json:"churn_risk_threshold"`
	UpsellThreshold     float64 `json:"upsell_threshold"`
}

// DefaultMarketParams returns the Hong Kong consumer calibration.
func DefaultMarketParams() MarketParams {
	return MarketParams{
		AverageMonthlySpend: 650,
		PremiumThreshold:    1000,
		BudgetThreshold:     300,
		HighUsageDataGB:     50,
		StandardDataGB:      20,
		HighVoiceMinutes:    500,
		ChurnRiskThreshold:  0.7,
		UpsellThreshold:     0.6,
	}
}

// Validate returns a CFG_001 error when the thresholds are non-positive or
// out of order.
func (p MarketParams) Validate() error {
	if p.BudgetThreshold <= 0 || p.AverageMonthlySpend <= 0 || p.PremiumThreshold <= 0 {
		return errors.Configuration("market spend thresholds must be positive")
	}
	if !(p.BudgetThreshold <= p.AverageMonthlySpend && p.AverageMonthlySpend <= p.PremiumThreshold) {
		return errors.Configuration(fmt.Sprintf(
			"market spend thresholds out of order: budget=%.2f average=%.2f premium=%.2f",
			p.BudgetThreshold, p.AverageMonthlySpend, p.PremiumThreshold))
	}
	if p.StandardDataGB <= 0 || p.HighUsageDataGB < p.StandardDataGB {
		return errors.Configuration("data usage tiers must be positive with high >= standard")
	}
	if p.HighVoiceMinutes <= 0 {
		return errors.Configuration("high voice minutes must be positive")
	}
	if p.ChurnRiskThreshold <= 0 || p.ChurnRiskThreshold > 1 {
		return errors.Configuration("churn risk threshold must be in (0,1]")
	}
	if p.UpsellThreshold <= 0 || p.UpsellThreshold > 1 {
		return errors.Configuration("upsell threshold must be in (0,1]")
	}
	return nil
}
