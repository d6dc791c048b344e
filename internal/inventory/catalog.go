package inventory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog serves read-only product lookups outside any transaction.
type Catalog struct {
	DB     *pgxpool.Pool
	Ledger Ledger
}

func (c *Catalog) Products(ctx context.Context, ids []string) ([]Product, error) {
	return c.Ledger.Products(ctx, c.DB, ids)
}

func (c *Catalog) List(ctx context.Context) ([]Product, error) {
	return c.Ledger.List(ctx, c.DB)
}
