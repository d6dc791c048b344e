// Package cart keeps the per-customer cart in Redis. The cart is a
// convenience cache: it never validates stock or price, and every write
// refreshes the expiry so abandoned carts age out on their own.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MarcosDevYT/ecommerce-core/internal/inventory"
	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
	"github.com/MarcosDevYT/ecommerce-core/internal/redisx"
)

// CatalogReader supplies display data for the detailed cart view.
type CatalogReader interface {
	Products(ctx context.Context, ids []string) ([]inventory.Product, error)
}

type Store struct {
	R       *redis.Client
	TTL     time.Duration
	Catalog CatalogReader
}

// DetailedItem is a cart line joined with catalog display data. Price here
// is informational only; checkout re-reads the authoritative price.
type DetailedItem struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

func key(customerID string) string { return fmt.Sprintf(redisx.KeyCart, customerID) }

func (s *Store) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return redisx.TTLCart
}

func (s *Store) Get(ctx context.Context, customerID string) ([]orders.CartItem, error) {
	raw, err := s.R.Get(ctx, key(customerID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []orders.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("corrupt cart for %s: %w", customerID, err)
	}
	return items, nil
}

// GetDetailed joins cart lines with catalog data. A product missing from
// the catalog degrades to a placeholder instead of failing the view.
func (s *Store) GetDetailed(ctx context.Context, customerID string) ([]DetailedItem, error) {
	items, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []DetailedItem{}, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Catalog.Products(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]inventory.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]DetailedItem, 0, len(items))
	for _, it := range items {
		d := DetailedItem{ProductID: it.ProductID, Quantity: it.Quantity, Name: "Unknown Product"}
		if p, ok := byID[it.ProductID]; ok {
			d.Name = p.Name
			d.PriceCents = p.PriceCents
		}
		out = append(out, d)
	}
	return out, nil
}

// Add merges deltaQty into an existing line or appends a new one.
func (s *Store) Add(ctx context.Context, customerID, productID string, deltaQty int) ([]orders.CartItem, error) {
	items, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, customerID, upsertLine(items, productID, deltaQty))
}

// SetQuantity replaces the line quantity; zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, customerID, productID string, qty int) ([]orders.CartItem, error) {
	items, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, customerID, setLine(items, productID, qty))
}

func (s *Store) Remove(ctx context.Context, customerID, productID string) ([]orders.CartItem, error) {
	return s.SetQuantity(ctx, customerID, productID, 0)
}

func (s *Store) Clear(ctx context.Context, customerID string) error {
	return s.R.Del(ctx, key(customerID)).Err()
}

func (s *Store) save(ctx context.Context, customerID string, items []orders.CartItem) ([]orders.CartItem, error) {
	if len(items) == 0 {
		if err := s.Clear(ctx, customerID); err != nil {
			return nil, err
		}
		return items, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if err := s.R.Set(ctx, key(customerID), b, s.ttl()).Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func upsertLine(items []orders.CartItem, productID string, delta int) []orders.CartItem {
	for i, it := range items {
		if it.ProductID == productID {
			items[i].Quantity += delta
			if items[i].Quantity <= 0 {
				return append(items[:i], items[i+1:]...)
			}
			return items
		}
	}
	if delta <= 0 {
		return items
	}
	return append(items, orders.CartItem{ProductID: productID, Quantity: delta})
}

func setLine(items []orders.CartItem, productID string, qty int) []orders.CartItem {
	for i, it := range items {
		if it.ProductID == productID {
			if qty <= 0 {
				return append(items[:i], items[i+1:]...)
			}
			items[i].Quantity = qty
			return items
		}
	}
	if qty > 0 {
		items = append(items, orders.CartItem{ProductID: productID, Quantity: qty})
	}
	return items
}
