package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the product catalog and campaigns",
	}
	cmd.AddCommand(
		newCatalogListCmd(),
		newCatalogShowCmd(),
		newCatalogStatsCmd(),
		newCatalogCampaignsCmd(),
		newCatalogCampaignCmd(),
	)
	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var category, segment, query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products, optionally filtered by category, segment and text",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := offer.Category(category)
			if cat != "" && !cat.Valid() {
				return errors.InvalidParam("unknown product category").WithDetail(category)
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			products, err := cliCtx.Backend.Products(ctx, offer.ProductFilter{Category: cat, Segment: segment, Query: query})
			if err != nil {
				return err
			}
			return PrintResult(cmd, productsView{products: products})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "product category, e.g. mobile_plans")
	cmd.Flags().StringVar(&segment, "segment", "", "target or priority segment")
	cmd.Flags().StringVarP(&query, "query", "q", "", "text matched against id, name and features")
	return cmd
}

func newCatalogShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <product-id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			p, err := cliCtx.Backend.Product(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, productView{p: p})
		},
	}
}

func newCatalogStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			stats, err := cliCtx.Backend.CatalogStats(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, statsView{s: stats})
		},
	}
}

func newCatalogCampaignsCmd() *cobra.Command {
	var (
		segment string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "List promotional products, largest discount first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			products, err := cliCtx.Backend.Campaigns(ctx, segment, !all)
			if err != nil {
				return err
			}
			return PrintResult(cmd, productsView{products: products})
		},
	}

	cmd.Flags().StringVar(&segment, "segment", "", "only campaigns for this segment")
	cmd.Flags().BoolVar(&all, "all", false, "include expired promotions")
	return cmd
}

func newCatalogCampaignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "campaign <code>",
		Short: "List the products of one campaign code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			products, err := cliCtx.Backend.Campaign(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, productsView{products: products})
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

type productsView struct {
	products []offer.Product
}

func (v productsView) Raw() interface{} {
	return map[string]interface{}{"products": v.products, "total": len(v.products)}
}

func (v productsView) TableHeaders() []string {
	return []string{"ID", "NAME", "CATEGORY", "MONTHLY", "CONTRACT", "CAMPAIGN", "DISCOUNT"}
}

func (v productsView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.products))
	for _, p := range v.products {
		rows = append(rows, []string{
			p.ID,
			truncateString(p.Name, 32),
			string(p.Category),
			p.MonthlyPrice.StringFixed(2) + " " + p.Currency,
			strconv.Itoa(p.ContractMonths) + "m",
			p.CampaignCode,
			p.PromotionalDiscount.StringFixed(2),
		})
	}
	return rows
}

func (v productsView) Footer() string { return fmt.Sprintf("%d products", len(v.products)) }

func (v productsView) String() string {
	var sb strings.Builder
	for _, p := range v.products {
		fmt.Fprintf(&sb, "%s  %s  %s %s/month\n", p.ID, p.Name, p.MonthlyPrice.StringFixed(2), p.Currency)
	}
	sb.WriteString(v.Footer())
	return sb.String()
}

type productView struct {
	p *offer.Product
}

func (v productView) Raw() interface{} { return v.p }

func (v productView) TableHeaders() []string { return []string{"FIELD", "VALUE"} }

func (v productView) TableRows() [][]string {
	p := v.p
	rows := [][]string{
		{"id", p.ID},
		{"name", p.Name},
		{"category", string(p.Category)},
		{"monthly price", p.MonthlyPrice.StringFixed(2) + " " + p.Currency},
		{"setup fee", p.SetupFee.StringFixed(2)},
		{"contract", strconv.Itoa(p.ContractMonths) + " months"},
		{"min monthly spend", p.MinMonthlySpend.StringFixed(2)},
		{"required tenure", strconv.Itoa(p.RequiredTenureMonths) + " months"},
		{"features", strings.Join(p.Features, ", ")},
		{"target segments", strings.Join(p.TargetSegments, ", ")},
	}
	if p.CampaignCode != "" {
		rows = append(rows,
			[]string{"campaign", p.CampaignCode},
			[]string{"promotional discount", p.PromotionalDiscount.StringFixed(2)})
	}
	return rows
}

func (v productView) String() string {
	var sb strings.Builder
	for _, row := range v.TableRows() {
		fmt.Fprintf(&sb, "%s: %s\n", row[0], row[1])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

type statsView struct {
	s *offer.Stats
}

func (v statsView) Raw() interface{} { return v.s }

func (v statsView) TableHeaders() []string { return []string{"CATEGORY", "PRODUCTS"} }

func (v statsView) TableRows() [][]string {
	cats := make([]string, 0, len(v.s.ByCategory))
	for c := range v.s.ByCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{c, strconv.Itoa(v.s.ByCategory[offer.Category(c)])})
	}
	return rows
}

func (v statsView) Footer() string {
	return fmt.Sprintf("%d products, monthly price %s to %s (average %s), %d active campaigns",
		v.s.TotalProducts, v.s.MinPrice.StringFixed(2), v.s.MaxPrice.StringFixed(2),
		v.s.AveragePrice.StringFixed(2), v.s.ActiveCampaigns)
}

func (v statsView) String() string { return v.Footer() }
