package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		file       string
		offersOnly bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one customer: segment, lead score, insights and matched offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			req, err := readCustomer(cmd, file)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			if offersOnly {
				matches, err := cliCtx.Backend.MatchOffers(ctx, req)
				if err != nil {
					return err
				}
				return PrintResult(cmd, offersView{customerID: req.Customer.Record.CustomerID, offers: matches})
			}

			analysis, err := cliCtx.Backend.Analyze(ctx, req)
			if err != nil {
				return err
			}
			return PrintResult(cmd, analysisView{a: analysis})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "customer JSON file, - for stdin (required)")
	cmd.Flags().BoolVar(&offersOnly, "offers", false, "print only the matched offers")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type analysisView struct {
	a *recommendation.Analysis
}

func (v analysisView) Raw() interface{} { return v.a }

func (v analysisView) TableHeaders() []string { return offersView{}.TableHeaders() }

func (v analysisView) TableRows() [][]string { return offersView{offers: v.a.Offers}.TableRows() }

func (v analysisView) Footer() string {
	a := v.a
	in := a.Insights
	var sb strings.Builder
	fmt.Fprintf(&sb, "customer %s: segment %s (%.0f%%), lead %s score %.1f (%s)\n",
		a.CustomerID, a.Segment, a.SegmentConfidence*100,
		colorPriority(string(a.Score.Priority)), a.Score.OverallScore, a.Score.Qualification)
	fmt.Fprintf(&sb, "churn risk %s (%.2f), upsell potential %s (%.2f), health %.1f",
		in.ChurnRisk.Level, in.ChurnRisk.Score, in.UpsellPotential.Level, in.UpsellPotential.Score, in.HealthScore)
	for _, p := range a.Patterns {
		fmt.Fprintf(&sb, "\npattern %s (%.0f%%): %s", p.Name, p.Confidence*100, p.Description)
	}
	return sb.String()
}

func (v analysisView) String() string {
	var sb strings.Builder
	sb.WriteString(v.Footer())
	for _, f := range v.a.Insights.ChurnRisk.RiskFactors {
		fmt.Fprintf(&sb, "\nrisk: %s", f)
	}
	for _, o := range v.a.Insights.UpsellPotential.UpsellOpportunities {
		fmt.Fprintf(&sb, "\nopportunity: %s", o)
	}
	for i, m := range v.a.Offers {
		fmt.Fprintf(&sb, "\noffer %d: %s %s at %s (match %.2f)",
			i+1, m.Product.ID, m.OfferType, m.RecommendedPrice.StringFixed(2), m.MatchScore)
	}
	return sb.String()
}

type offersView struct {
	customerID string
	offers     []offer.OfferMatch
}

func (v offersView) Raw() interface{} {
	return map[string]interface{}{"customer_id": v.customerID, "offers": v.offers, "total": len(v.offers)}
}

func (v offersView) TableHeaders() []string {
	return []string{"#", "PRODUCT", "CATEGORY", "OFFER", "PRICE", "DISCOUNT", "MATCH", "ELIGIBILITY"}
}

func (v offersView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.offers))
	for i, m := range v.offers {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			m.Product.ID,
			string(m.Product.Category),
			string(m.OfferType),
			m.RecommendedPrice.StringFixed(2),
			m.DiscountAmount.StringFixed(2),
			fmt.Sprintf("%.2f", m.MatchScore),
			string(m.Eligibility),
		})
	}
	return rows
}

func (v offersView) Footer() string {
	return fmt.Sprintf("%d offers for %s", len(v.offers), v.customerID)
}

func (v offersView) String() string {
	var sb strings.Builder
	for i, m := range v.offers {
		fmt.Fprintf(&sb, "%d. %s (%s) %s at %s, match %.2f\n",
			i+1, m.Product.Name, m.Product.ID, m.OfferType, m.RecommendedPrice.StringFixed(2), m.MatchScore)
	}
	sb.WriteString(v.Footer())
	return sb.String()
}
