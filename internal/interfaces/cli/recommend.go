package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/lead"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
)

func newRecommendCmd() *cobra.Command {
	var (
		file      string
		batchID   string
		maxRecs   int
		export    bool
		skipCache bool
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate ranked recommendations for a customer batch",
		Long: "Reads a JSON array of customers, or a batch document with customers and\n" +
			"market_context, and prints the ranked recommendations.  Use -f - to read stdin.",
		Example: "  revintel recommend -f customers.json --max 5\n" +
			"  cat batch.json | revintel recommend -f - -o json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			batch, err := readBatch(cmd, file)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			cliCtx.Logger.Debug("generating recommendations",
				logging.Int("customers", len(batch.Customers)),
				logging.Int("max", maxRecs))

			resp, err := cliCtx.Backend.Recommend(ctx, &recommendation.RecommendRequest{
				BatchID:            batchID,
				Batch:              batch,
				MaxRecommendations: maxRecs,
				SkipCache:          skipCache,
				Export:             export,
			})
			if err != nil {
				return err
			}
			return PrintResult(cmd, recommendView{resp: resp})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "customer batch JSON file, - for stdin (required)")
	f.StringVar(&batchID, "batch-id", "", "batch id; generated when empty")
	f.IntVar(&maxRecs, "max", 0, "maximum recommendations; the engine default when 0")
	f.BoolVar(&export, "export", false, "export the result to the report store (server mode)")
	f.BoolVar(&skipCache, "skip-cache", false, "bypass the result cache (server mode)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newLeadsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Prioritize a customer batch as a sales lead queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			batch, err := readBatch(cmd, file)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			leads, err := cliCtx.Backend.PrioritizeLeads(ctx, batch)
			if err != nil {
				return err
			}
			return PrintResult(cmd, leadsView{leads: leads})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "customer batch JSON file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

type recommendView struct {
	resp *recommendation.RecommendResponse
}

func (v recommendView) Raw() interface{} { return v.resp }

func (v recommendView) TableHeaders() []string {
	return []string{"#", "PRIORITY", "CUSTOMER", "ACTION", "TITLE", "EXPECTED REVENUE", "CONVERSION", "IMPACT"}
}

func (v recommendView) TableRows() [][]string {
	if v.resp.BatchResult == nil {
		return nil
	}
	rows := make([][]string, 0, len(v.resp.Recommendations))
	for i, r := range v.resp.Recommendations {
		name := r.CustomerName
		if name == "" {
			name = r.CustomerID
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			colorPriority(string(r.Priority)),
			truncateString(name, 28),
			string(r.ActionType),
			truncateString(r.Title, 48),
			r.ExpectedRevenue.StringFixed(2),
			fmt.Sprintf("%.0f%%", r.ConversionProbability*100),
			fmt.Sprintf("%.1f", r.BusinessImpactScore),
		})
	}
	return rows
}

func (v recommendView) Footer() string {
	if v.resp.BatchResult == nil {
		return fmt.Sprintf("batch %s: no result", v.resp.BatchID)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "batch %s: %d recommendations, %d processed, %d skipped, expected revenue %s",
		v.resp.BatchID, len(v.resp.Recommendations), v.resp.Processed, v.resp.Skipped,
		v.resp.Summary.TotalExpectedRevenue.StringFixed(2))
	if v.resp.Cached {
		sb.WriteString(" (cached)")
	}
	for _, r := range v.resp.Results {
		if r.Skipped {
			fmt.Fprintf(&sb, "\nskipped customer %d (%s): %s", r.Index, r.CustomerID, r.Error)
		}
	}
	if v.resp.ExportLocation != "" {
		fmt.Fprintf(&sb, "\nexported to %s", v.resp.ExportLocation)
	}
	for _, e := range v.resp.SinkErrors {
		fmt.Fprintf(&sb, "\nwarning: %s", e)
	}
	return sb.String()
}

func (v recommendView) String() string {
	var sb strings.Builder
	if v.resp.BatchResult != nil {
		for i, r := range v.resp.Recommendations {
			fmt.Fprintf(&sb, "%d. [%s] %s (%s): %s\n   action %s, expected revenue %s, conversion %.0f%%\n",
				i+1, colorPriority(string(r.Priority)), r.CustomerName, r.CustomerID, r.Title,
				r.ActionType, r.ExpectedRevenue.StringFixed(2), r.ConversionProbability*100)
			for _, step := range r.NextSteps {
				fmt.Fprintf(&sb, "   - %s\n", step)
			}
		}
	}
	sb.WriteString(v.Footer())
	return sb.String()
}

type leadsView struct {
	leads []lead.PrioritizedLead
}

func (v leadsView) Raw() interface{} { return v.leads }

func (v leadsView) TableHeaders() []string {
	return []string{"POS", "LEAD", "CUSTOMER", "PRIORITY", "SCORE", "QUALIFICATION", "FOLLOW UP", "OFFERS"}
}

func (v leadsView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.leads))
	for _, l := range v.leads {
		name := l.CustomerName
		if name == "" {
			name = l.CustomerID
		}
		rows = append(rows, []string{
			strconv.Itoa(l.QueuePosition),
			l.LeadID,
			truncateString(name, 28),
			colorPriority(string(l.Score.Priority)),
			fmt.Sprintf("%.1f", l.Score.OverallScore),
			string(l.Score.Qualification),
			l.FollowUpAt.Format("2006-01-02"),
			strings.Join(l.RelevantOffers, ","),
		})
	}
	return rows
}

func (v leadsView) Footer() string {
	return fmt.Sprintf("%d leads", len(v.leads))
}

func (v leadsView) String() string {
	var sb strings.Builder
	for _, l := range v.leads {
		fmt.Fprintf(&sb, "%d. %s %s [%s] score %.1f, follow up %s\n",
			l.QueuePosition, l.CustomerID, l.CustomerName, colorPriority(string(l.Score.Priority)),
			l.Score.OverallScore, l.FollowUpAt.Format("2006-01-02"))
	}
	sb.WriteString(v.Footer())
	return sb.String()
}
