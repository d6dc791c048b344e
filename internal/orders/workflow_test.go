package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/MarcosDevYT/ecommerce-core/internal/inventory"
)

// fakeCarts implements CartStore.
type fakeCarts struct {
	mu       sync.Mutex
	items    map[string][]CartItem
	cleared  int
	clearErr error
}

func (f *fakeCarts) Get(_ context.Context, customerID string) ([]CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CartItem(nil), f.items[customerID]...), nil
}

func (f *fakeCarts) Clear(_ context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared++
	delete(f.items, customerID)
	return nil
}

// fakeStore backs both the unit of work and the read-side Store.
type fakeStore struct {
	mu     sync.Mutex
	stock  map[string]int
	prices map[string]int64
	orders map[string]*Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stock:  map[string]int{},
		prices: map[string]int64{},
		orders: map[string]*Order{},
	}
}

func (f *fakeStore) Order(_ context.Context, orderID string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) OrdersFor(_ context.Context, customerID string) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

// fakeUOW serializes units of work over the fake store and rolls back stock
// decrements and inserts when the step function fails.
type fakeUOW struct{ s *fakeStore }

func (u *fakeUOW) Run(_ context.Context, fn func(tx Checkout) error) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	tx := &fakeTx{s: u.s, dec: map[string]int{}}
	if err := fn(tx); err != nil {
		for id, qty := range tx.dec {
			u.s.stock[id] += qty
		}
		for _, id := range tx.inserted {
			delete(u.s.orders, id)
		}
		return err
	}
	return nil
}

type fakeTx struct {
	s        *fakeStore
	dec      map[string]int
	inserted []string
}

func (t *fakeTx) Reserve(_ context.Context, lines []inventory.Line) error {
	for _, ln := range lines {
		if ln.Qty <= 0 {
			return fmt.Errorf("invalid quantity %d for product %s", ln.Qty, ln.ProductID)
		}
		avail, ok := t.s.stock[ln.ProductID]
		if !ok {
			return inventory.ProductNotFoundError{ProductID: ln.ProductID}
		}
		if avail < ln.Qty {
			return inventory.InsufficientStockError{ProductID: ln.ProductID, Requested: ln.Qty, Available: avail}
		}
		t.s.stock[ln.ProductID] -= ln.Qty
		t.dec[ln.ProductID] += ln.Qty
	}
	return nil
}

func (t *fakeTx) Prices(_ context.Context, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		p, ok := t.s.prices[id]
		if !ok {
			return nil, inventory.ProductNotFoundError{ProductID: id}
		}
		out[id] = p
	}
	return out, nil
}

func (t *fakeTx) Insert(_ context.Context, o *Order) error {
	t.s.orders[o.ID] = o
	t.inserted = append(t.inserted, o.ID)
	return nil
}

type fakePublisher struct {
	mu    sync.Mutex
	count int
}

func (p *fakePublisher) Publish(_, _ []byte, _ ...kafkago.Header) {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
}

func newWorkflow(carts *fakeCarts, store *fakeStore, pub *fakePublisher) *Workflow {
	return &Workflow{
		Carts:    carts,
		UOW:      &fakeUOW{s: store},
		Store:    store,
		Producer: pub,
		Service:  "test",
		Log:      zap.NewNop(),
	}
}

func TestCreateFromCart_EmptyCart(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[string][]CartItem{}}
	wf := newWorkflow(carts, store, &fakePublisher{})

	_, err := wf.CreateFromCart(context.Background(), Customer{ID: "c1"})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if len(store.orders) != 0 {
		t.Errorf("expected no orders, got %d", len(store.orders))
	}
}

func TestCreateFromCart_Success(t *testing.T) {
	store := newFakeStore()
	store.stock["prod-a"] = 5
	store.prices["prod-a"] = 1000
	carts := &fakeCarts{items: map[string][]CartItem{
		"c1": {{ProductID: "prod-a", Quantity: 2}},
	}}
	pub := &fakePublisher{}
	wf := newWorkflow(carts, store, pub)

	o, err := wf.CreateFromCart(context.Background(), Customer{ID: "c1", Email: "c1@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.TotalCents != 2000 {
		t.Errorf("expected total 2000, got %d", o.TotalCents)
	}
	if o.Status != StatusPending || o.PaymentStatus != PaymentPending {
		t.Errorf("expected PENDING/PENDING, got %s/%s", o.Status, o.PaymentStatus)
	}
	if store.stock["prod-a"] != 3 {
		t.Errorf("expected stock 3, got %d", store.stock["prod-a"])
	}
	if len(o.Items) != 1 || o.Items[0].UnitPriceCents != 1000 || o.Items[0].Qty != 2 {
		t.Errorf("unexpected items: %+v", o.Items)
	}
	if carts.cleared != 1 {
		t.Errorf("expected cart cleared once, got %d", carts.cleared)
	}
	if pub.count != 1 {
		t.Errorf("expected one order.created event, got %d", pub.count)
	}
}

func TestCreateFromCart_InsufficientStock(t *testing.T) {
	store := newFakeStore()
	store.stock["prod-a"] = 1
	store.prices["prod-a"] = 1000
	carts := &fakeCarts{items: map[string][]CartItem{
		"c1": {{ProductID: "prod-a", Quantity: 2}},
	}}
	wf := newWorkflow(carts, store, &fakePublisher{})

	_, err := wf.CreateFromCart(context.Background(), Customer{ID: "c1"})
	var short inventory.InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if short.ProductID != "prod-a" {
		t.Errorf("error names product %s, want prod-a", short.ProductID)
	}
	if store.stock["prod-a"] != 1 {
		t.Errorf("stock changed on failed checkout: %d", store.stock["prod-a"])
	}
	if len(store.orders) != 0 {
		t.Errorf("order row created on failed checkout")
	}
	if carts.cleared != 0 {
		t.Errorf("cart cleared on failed checkout")
	}
}

func TestCreateFromCart_AllOrNothing(t *testing.T) {
	store := newFakeStore()
	store.stock["prod-a"] = 10
	store.stock["prod-b"] = 2
	store.prices["prod-a"] = 500
	store.prices["prod-b"] = 700
	carts := &fakeCarts{items: map[string][]CartItem{
		"c1": {
			{ProductID: "prod-a", Quantity: 1},
			{ProductID: "prod-b", Quantity: 5},
		},
	}}
	wf := newWorkflow(carts, store, &fakePublisher{})

	_, err := wf.CreateFromCart(context.Background(), Customer{ID: "c1"})
	var short inventory.InsufficientStockError
	if !errors.As(err, &short) || short.ProductID != "prod-b" {
		t.Fatalf("expected InsufficientStockError on prod-b, got %v", err)
	}
	if store.stock["prod-a"] != 10 {
		t.Errorf("partial decrement survived rollback: prod-a stock %d", store.stock["prod-a"])
	}
	if store.stock["prod-b"] != 2 {
		t.Errorf("prod-b stock changed: %d", store.stock["prod-b"])
	}
	if len(store.orders) != 0 {
		t.Errorf("expected zero orders, got %d", len(store.orders))
	}
}

func TestCreateFromCart_PriceSnapshot(t *testing.T) {
	store := newFakeStore()
	store.stock["prod-a"] = 5
	store.prices["prod-a"] = 1000
	carts := &fakeCarts{items: map[string][]CartItem{
		"c1": {{ProductID: "prod-a", Quantity: 1}},
	}}
	wf := newWorkflow(carts, store, &fakePublisher{})

	o, err := wf.CreateFromCart(context.Background(), Customer{ID: "c1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A later catalog price change must not touch the snapshot.
	store.prices["prod-a"] = 9999
	got, err := store.Order(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Items[0].UnitPriceCents != 1000 || got.TotalCents != 1000 {
		t.Errorf("price snapshot changed: unit=%d total=%d", got.Items[0].UnitPriceCents, got.TotalCents)
	}
}

func TestCreateFromCart_ConcurrentNeverOversells(t *testing.T) {
	const initialStock = 20
	const attempts = 50

	store := newFakeStore()
	store.stock["prod-a"] = initialStock
	store.prices["prod-a"] = 100
	items := map[string][]CartItem{}
	for i := 0; i < attempts; i++ {
		items[fmt.Sprintf("c%d", i)] = []CartItem{{ProductID: "prod-a", Quantity: 1}}
	}
	carts := &fakeCarts{items: items}
	wf := newWorkflow(carts, store, &fakePublisher{})

	var success atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := wf.CreateFromCart(context.Background(), Customer{ID: fmt.Sprintf("c%d", i)}); err == nil {
				success.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if success.Load() != initialStock {
		t.Errorf("expected %d successful checkouts, got %d", initialStock, success.Load())
	}
	if store.stock["prod-a"] != 0 {
		t.Errorf("expected stock 0, got %d", store.stock["prod-a"])
	}
	if store.stock["prod-a"] < 0 {
		t.Errorf("stock went negative: %d", store.stock["prod-a"])
	}
}

func TestOrder_OwnershipDenied(t *testing.T) {
	store := newFakeStore()
	store.orders["ord-1"] = &Order{ID: "ord-1", CustomerID: "owner"}
	wf := newWorkflow(&fakeCarts{items: map[string][]CartItem{}}, store, &fakePublisher{})

	_, err := wf.Order(context.Background(), "ord-1", "intruder")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	_, err = wf.Order(context.Background(), "ord-missing", "owner")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	got, err := wf.Order(context.Background(), "ord-1", "owner")
	if err != nil || got.ID != "ord-1" {
		t.Fatalf("owner read failed: %v", err)
	}
}
