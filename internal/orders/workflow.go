package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/MarcosDevYT/ecommerce-core/internal/inventory"
	kafkax "github.com/MarcosDevYT/ecommerce-core/internal/kafka"
)

// CartStore is the slice of the cart cache the workflow needs.
type CartStore interface {
	Get(ctx context.Context, customerID string) ([]CartItem, error)
	Clear(ctx context.Context, customerID string) error
}

// Checkout is the transactional view handed to the checkout steps. Stock
// reservation, price reads and order persistence all run against the same
// atomic scope.
type Checkout interface {
	Reserve(ctx context.Context, lines []inventory.Line) error
	Prices(ctx context.Context, ids []string) (map[string]int64, error)
	Insert(ctx context.Context, o *Order) error
}

// UnitOfWork opens one atomic scope around fn. An error from fn rolls the
// whole unit back.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(tx Checkout) error) error
}

// Store serves order reads outside the checkout transaction.
type Store interface {
	Order(ctx context.Context, orderID string) (*Order, error)
	OrdersFor(ctx context.Context, customerID string) ([]Order, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Workflow converts carts into durable orders and serves order reads.
type Workflow struct {
	Carts    CartStore
	UOW      UnitOfWork
	Store    Store
	Producer Publisher
	Service  string
	Log      *zap.Logger
}

// CreateFromCart turns the customer's cart into a PENDING order.
//
// Reservation, authoritative pricing and order persistence share one unit of
// work: InsufficientStock on any line aborts everything and the cart is left
// untouched. Cart clearing happens only after commit and is deliberately
// outside the unit — a crash in between leaves a stale cart, never a lost
// reservation.
func (s *Workflow) CreateFromCart(ctx context.Context, cust Customer) (*Order, error) {
	items, err := s.Carts.Get(ctx, cust.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	var order *Order
	err = s.UOW.Run(ctx, func(tx Checkout) error {
		lines := make([]inventory.Line, 0, len(items))
		ids := make([]string, 0, len(items))
		for _, it := range items {
			lines = append(lines, inventory.Line{ProductID: it.ProductID, Qty: it.Quantity})
			ids = append(ids, it.ProductID)
		}
		if err := tx.Reserve(ctx, lines); err != nil {
			return err
		}

		// Re-read the authoritative price inside the same transaction;
		// whatever the cart displayed earlier is not trusted.
		prices, err := tx.Prices(ctx, ids)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		o := &Order{
			ID:            uuid.NewString(),
			CustomerID:    cust.ID,
			CustomerEmail: cust.Email,
			CustomerName:  cust.Name,
			Status:        StatusPending,
			PaymentStatus: PaymentPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		for _, it := range items {
			unit := prices[it.ProductID]
			o.Items = append(o.Items, OrderItem{
				OrderID:        o.ID,
				ProductID:      it.ProductID,
				Qty:            it.Quantity,
				UnitPriceCents: unit,
			})
			o.TotalCents += unit * int64(it.Quantity)
		}
		order = o
		return tx.Insert(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	if err := s.Carts.Clear(ctx, cust.ID); err != nil {
		// Self-healing: the next checkout attempt re-clears it.
		s.Log.Warn("cart clear after commit failed", zap.String("customer_id", cust.ID), zap.Error(err))
	}

	s.publishCreated(order)
	return order, nil
}

// Order returns the order with its items, owner only. A foreign caller gets
// ErrForbidden, which the HTTP layer renders exactly like not-found.
func (s *Workflow) Order(ctx context.Context, orderID, callerID string) (*Order, error) {
	o, err := s.Store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != callerID {
		return nil, ErrForbidden
	}
	return o, nil
}

// OrdersFor lists the caller's order history, newest first.
func (s *Workflow) OrdersFor(ctx context.Context, customerID string) ([]Order, error) {
	return s.Store.OrdersFor(ctx, customerID)
}

func (s *Workflow) publishCreated(o *Order) {
	if s.Producer == nil {
		return
	}
	lines := make([]ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, ItemLine{ProductID: it.ProductID, Qty: it.Qty, UnitPriceCents: it.UnitPriceCents})
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(OrderCreatedPayload{
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
			Items:      lines,
			TotalCents: o.TotalCents,
		}),
	}
	s.Producer.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
