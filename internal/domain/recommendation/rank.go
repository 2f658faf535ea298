package recommendation

import (
	"sort"

	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// RankKey is the global ordering key of r; higher ranks first.
func (p Policy) RankKey(r ActionableRecommendation) float64 {
	return 0.4*r.BusinessImpactScore +
		0.3*p.TierWeights[r.Priority] +
		0.2*r.ConversionProbability +
		0.1*r.UrgencyScore
}

// Rank returns recs ordered by RankKey, descending.  Ties keep input order.
func Rank(recs []ActionableRecommendation, p Policy) []ActionableRecommendation {
	out := make([]ActionableRecommendation, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		return p.RankKey(out[i]) > p.RankKey(out[j])
	})
	return out
}

// Quotas returns the per-tier limits for n recommendations.  A tier absent
// from the result is unlimited.
func (p Policy) Quotas(n int) map[Priority]int {
	out := make(map[Priority]int, len(p.QuotaDivisors))
	for tier, d := range p.QuotaDivisors {
		if d > 0 {
			out[tier] = n / d
		}
	}
	return out
}

// ApplyQuotas walks ranked in order and keeps each item while its tier is
// under quota, stopping at n items.  Items over quota are dropped even if
// a lower tier later fills the list.
func ApplyQuotas(ranked []ActionableRecommendation, n int, p Policy) ([]ActionableRecommendation, error) {
	if n < 1 {
		return nil, errors.New(errors.ErrCodeInvalidMaxCount, "max recommendations must be >= 1")
	}
	quotas := p.Quotas(n)
	used := map[Priority]int{}
	out := make([]ActionableRecommendation, 0, minInt(n, len(ranked)))
	for _, r := range ranked {
		if len(out) == n {
			break
		}
		if limit, capped := quotas[r.Priority]; capped && used[r.Priority] >= limit {
			continue
		}
		used[r.Priority]++
		out = append(out, r)
	}
	return out, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
