package offer

import "context"

// ProductRepository persists the product catalog.  Implementations return
// products ordered by id.
type ProductRepository interface {
	// List returns every stored product.
	List(ctx context.Context) ([]Product, error)

	// Upsert inserts p or replaces the stored product with the same id.
	Upsert(ctx context.Context, p Product) error

	// Seed inserts the products whose ids are not stored yet and returns how
	// many were inserted.  Existing rows are left untouched.
	Seed(ctx context.Context, products []Product) (int, error)
}

// LoadCatalog builds a validated catalog from repo.  An empty repository
// yields CAT_004.
func LoadCatalog(ctx context.Context, repo ProductRepository) (*Catalog, error) {
	products, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewCatalog(products)
}
