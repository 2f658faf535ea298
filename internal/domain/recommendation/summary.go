package recommendation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates a recommendation list for export.
type Summary struct {
	GeneratedAt                  time.Time          `json:"generated_at"`
	Total                        int                `json:"total_recommendations"`
	ByPriority                   map[Priority]int   `json:"by_priority"`
	ByActionType                 map[ActionType]int `json:"by_action_type"`
	TotalExpectedRevenue         decimal.Decimal    `json:"total_expected_revenue"`
	AverageConversionProbability float64            `json:"average_conversion_probability"`
}

// Summarize counts recs per tier and action type.  Every tier is present in
// ByPriority, zero or not.
func Summarize(recs []ActionableRecommendation, now time.Time) Summary {
	s := Summary{
		GeneratedAt:          now,
		Total:                len(recs),
		ByPriority:           make(map[Priority]int, len(AllPriorities)),
		ByActionType:         map[ActionType]int{},
		TotalExpectedRevenue: decimal.Zero,
	}
	for _, p := range AllPriorities {
		s.ByPriority[p] = 0
	}
	conv := 0.0
	for _, r := range recs {
		s.ByPriority[r.Priority]++
		s.ByActionType[r.ActionType]++
		s.TotalExpectedRevenue = s.TotalExpectedRevenue.Add(r.ExpectedRevenue)
		conv += r.ConversionProbability
	}
	if len(recs) > 0 {
		s.AverageConversionProbability = conv / float64(len(recs))
	}
	return s
}

// Export is the document written by exporters: the summary plus the list.
type Export struct {
	Summary         Summary                    `json:"summary"`
	Recommendations []ActionableRecommendation `json:"recommendations"`
}

// NewExport bundles recs with their summary.
func NewExport(recs []ActionableRecommendation, now time.Time) Export {
	if recs == nil {
		recs = []ActionableRecommendation{}
	}
	return Export{Summary: Summarize(recs, now), Recommendations: recs}
}
