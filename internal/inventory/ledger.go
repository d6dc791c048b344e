// Package inventory owns the durable stock counters and authoritative
// prices. Reserve and Release run against a caller-supplied transaction
// scope so order persistence and stock movement commit or roll back as one.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MarcosDevYT/ecommerce-core/internal/postgres"
)

type Line struct {
	ProductID string
	Qty       int
}

type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type ProductNotFoundError struct {
	ProductID string
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// Ledger is stateless; every method runs against the Querier it is given,
// which is either the pool (plain reads) or an open transaction.
type Ledger struct{}

// Reserve locks each product row (FOR UPDATE) in ascending product-id order
// and decrements its stock. Stable lock ordering keeps concurrent
// reservations from deadlocking each other. The first shortfall aborts with
// InsufficientStockError; the caller's rollback undoes any decrements
// already applied.
func (Ledger) Reserve(ctx context.Context, q postgres.Querier, lines []Line) error {
	for _, ln := range normalize(lines) {
		if ln.Qty <= 0 {
			return fmt.Errorf("invalid quantity %d for product %s", ln.Qty, ln.ProductID)
		}
		var stock int
		err := q.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, ln.ProductID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductNotFoundError{ProductID: ln.ProductID}
		}
		if err != nil {
			return err
		}
		if stock < ln.Qty {
			return InsufficientStockError{ProductID: ln.ProductID, Requested: ln.Qty, Available: stock}
		}
		if _, err := q.Exec(ctx,
			`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`,
			ln.ProductID, ln.Qty); err != nil {
			return err
		}
	}
	return nil
}

// Release restores stock for a cancelled order inside the caller's
// transaction. Same lock ordering as Reserve.
func (Ledger) Release(ctx context.Context, q postgres.Querier, lines []Line) error {
	for _, ln := range normalize(lines) {
		if _, err := q.Exec(ctx,
			`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
			ln.ProductID, ln.Qty); err != nil {
			return err
		}
	}
	return nil
}

// Prices returns authoritative unit prices. Every requested id must exist;
// the first missing one is reported as ProductNotFoundError.
func (Ledger) Prices(ctx context.Context, q postgres.Querier, ids []string) (map[string]int64, error) {
	rows, err := q.Query(ctx, `SELECT id, price_cents FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make(map[string]int64, len(ids))
	for rows.Next() {
		var id string
		var price int64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		prices[id] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := prices[id]; !ok {
			return nil, ProductNotFoundError{ProductID: id}
		}
	}
	return prices, nil
}

// Products is a best-effort display lookup; missing ids are simply absent
// from the result.
func (Ledger) Products(ctx context.Context, q postgres.Querier, ids []string) ([]Product, error) {
	rows, err := q.Query(ctx, `SELECT id, sku, name, price_cents, stock, created_at, updated_at
	                           FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (Ledger) List(ctx context.Context, q postgres.Querier) ([]Product, error) {
	rows, err := q.Query(ctx, `SELECT id, sku, name, price_cents, stock, created_at, updated_at
	                           FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// normalize merges duplicate product lines and sorts by product id so lock
// acquisition order is identical for all concurrent callers.
func normalize(lines []Line) []Line {
	byID := make(map[string]int, len(lines))
	for _, ln := range lines {
		byID[ln.ProductID] += ln.Qty
	}
	out := make([]Line, 0, len(byID))
	for id, qty := range byID {
		out = append(out, Line{ProductID: id, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
