package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

const productsTable = "products"

// productColumns are written on insert.  The full product is kept as JSON in
// document; the flat columns exist for indexing and ad-hoc reporting.
var productColumns = []string{
	"id", "name", "category", "monthly_price", "setup_fee", "contract_months",
	"currency", "campaign_code", "promotion_end_date", "document",
}

type postgresProductRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewPostgresProductRepo returns the catalog repository backed by the
// products table.
func NewPostgresProductRepo(conn *postgres.Connection, log logging.Logger) offer.ProductRepository {
	return &postgresProductRepo{
		conn:     conn,
		log:      logging.OrNop(log).Named("product-repo"),
		executor: conn.DB(),
	}
}

func (r *postgresProductRepo) List(ctx context.Context) ([]offer.Product, error) {
	query, args, err := psql.Select("document").From(productsTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build product query")
	}

	rows, err := r.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list products")
	}
	defer rows.Close()

	var products []offer.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate products")
	}

	r.log.Debug("Loaded products", logging.Int("count", len(products)))
	return products, nil
}

func (r *postgresProductRepo) Upsert(ctx context.Context, p offer.Product) error {
	p, err := offer.Prepare(p)
	if err != nil {
		return err
	}
	values, err := productValues(p)
	if err != nil {
		return err
	}

	updates := make([]string, 0, len(productColumns))
	for _, col := range productColumns[1:] {
		updates = append(updates, col+" = EXCLUDED."+col)
	}
	query, args, err := psql.Insert(productsTable).
		Columns(productColumns...).
		Values(values...).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(updates, ", ") + ", updated_at = NOW()").
		ToSql()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build product upsert")
	}

	if _, err := r.executor.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert product").WithDetailf("product_id=%s", p.ID)
	}
	return nil
}

// Seed inserts all products in one transaction.  A bad product aborts the
// whole seed.
func (r *postgresProductRepo) Seed(ctx context.Context, products []offer.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.conn.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, p := range products {
			p, err := offer.Prepare(p)
			if err != nil {
				return err
			}
			values, err := productValues(p)
			if err != nil {
				return err
			}
			query, args, err := psql.Insert(productsTable).
				Columns(productColumns...).
				Values(values...).
				Suffix("ON CONFLICT (id) DO NOTHING").
				ToSql()
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build product insert")
			}

			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to seed product").WithDetailf("product_id=%s", p.ID)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Info("Seeded product catalog",
		logging.Int("offered", len(products)),
		logging.Int("inserted", inserted))
	return inserted, nil
}

func productValues(p offer.Product) ([]interface{}, error) {
	document, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode product").WithDetailf("product_id=%s", p.ID)
	}
	campaign := sql.NullString{String: p.CampaignCode, Valid: p.CampaignCode != ""}
	var promoEnd sql.NullTime
	if p.PromotionEndsAt != nil {
		promoEnd = sql.NullTime{Time: *p.PromotionEndsAt, Valid: true}
	}
	return []interface{}{
		p.ID, p.Name, string(p.Category), p.MonthlyPrice, p.SetupFee, p.ContractMonths,
		p.Currency, campaign, promoEnd, document,
	}, nil
}

func scanProduct(row scanner) (offer.Product, error) {
	var (
		document []byte
		p        offer.Product
	)
	if err := row.Scan(&document); err != nil {
		return p, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan product")
	}
	if err := json.Unmarshal(document, &p); err != nil {
		return p, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode stored product")
	}
	return p, nil
}
