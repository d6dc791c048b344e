package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/MarcosDevYT/ecommerce-core/internal/kafka"
	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
)

// OrderTransitions is the slice of the order store the reconciler drives.
// Both transitions are guarded on the current status, so applying one twice
// is a no-op reported through the applied flag.
type OrderTransitions interface {
	IDBySession(ctx context.Context, sessionID string) (string, error)
	MarkPaid(ctx context.Context, orderID, paymentRef string) (*orders.Order, bool, error)
	MarkCancelled(ctx context.Context, orderID string) (bool, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Reconciler consumes verified gateway events idempotently. The adapter has
// already checked the signature before an Event reaches Handle.
type Reconciler struct {
	Events          EventLedger
	Orders          OrderTransitions
	PaidEvents      Publisher
	CancelledEvents Publisher
	Service         string
	Log             *zap.Logger
}

// Handle returns an error only on infrastructure failure, which the HTTP
// layer turns into a retryable response for the gateway. Business failures
// after successful verification are recorded and acknowledged so the
// gateway stops retrying something that will never succeed.
func (r *Reconciler) Handle(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventCheckoutCompleted, EventCheckoutExpired:
	default:
		return nil // not ours, ack
	}

	fresh, err := r.Events.Record(ctx, ev.ID, ev.Type)
	if err != nil {
		return err
	}
	if !fresh {
		// At-least-once delivery: replays past the first processing are a
		// successful no-op, no further mutation, no second notification.
		r.Log.Debug("duplicate webhook event", zap.String("event_id", ev.ID))
		return nil
	}

	orderID, err := r.resolveOrder(ctx, ev)
	if err != nil {
		return err
	}
	if orderID == "" {
		r.Log.Warn("webhook event has no resolvable order",
			zap.String("event_id", ev.ID), zap.String("session_id", ev.SessionID))
		return r.Events.SetResult(ctx, ev.ID, ResultFailed)
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		return r.complete(ctx, ev, orderID)
	case EventCheckoutExpired:
		return r.expire(ctx, ev, orderID)
	}
	return nil
}

func (r *Reconciler) resolveOrder(ctx context.Context, ev Event) (string, error) {
	if ev.OrderID != "" {
		return ev.OrderID, nil
	}
	if ev.SessionID == "" {
		return "", nil
	}
	id, err := r.Orders.IDBySession(ctx, ev.SessionID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return "", nil
	}
	return id, err
}

func (r *Reconciler) complete(ctx context.Context, ev Event, orderID string) error {
	o, applied, err := r.Orders.MarkPaid(ctx, orderID, ev.PaymentRef)
	if errors.Is(err, orders.ErrOrderNotFound) {
		r.Log.Warn("webhook names unknown order", zap.String("event_id", ev.ID), zap.String("order_id", orderID))
		return r.Events.SetResult(ctx, ev.ID, ResultFailed)
	}
	if err != nil {
		return err
	}
	if !applied {
		// Lost a race against another delivery, or the order was already
		// terminal. Nothing more to do.
		return r.Events.SetResult(ctx, ev.ID, ResultSkipped)
	}

	r.Log.Info("order reconciled as paid",
		zap.String("order_id", orderID), zap.String("payment_ref", ev.PaymentRef))
	r.publishPaid(o, ev.PaymentRef)
	return r.Events.SetResult(ctx, ev.ID, ResultProcessed)
}

func (r *Reconciler) expire(ctx context.Context, ev Event, orderID string) error {
	applied, err := r.Orders.MarkCancelled(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return r.Events.SetResult(ctx, ev.ID, ResultFailed)
	}
	if err != nil {
		return err
	}
	if !applied {
		return r.Events.SetResult(ctx, ev.ID, ResultSkipped)
	}
	r.Log.Info("order cancelled, stock released", zap.String("order_id", orderID))
	r.publishCancelled(orderID)
	return r.Events.SetResult(ctx, ev.ID, ResultProcessed)
}

func (r *Reconciler) publishPaid(o *orders.Order, paymentRef string) {
	if r.PaidEvents == nil {
		return
	}
	lines := make([]orders.ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, orders.ItemLine{ProductID: it.ProductID, Qty: it.Qty, UnitPriceCents: it.UnitPriceCents})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPaidPayload{
			OrderID:       o.ID,
			CustomerID:    o.CustomerID,
			CustomerEmail: o.CustomerEmail,
			CustomerName:  o.CustomerName,
			PaymentRef:    paymentRef,
			Items:         lines,
			TotalCents:    o.TotalCents,
		}),
	}
	r.PaidEvents.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (r *Reconciler) publishCancelled(orderID string) {
	if r.CancelledEvents == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.OrderCancelledPayload{
			OrderID: orderID,
			Reason:  "CHECKOUT_EXPIRED",
		}),
	}
	r.CancelledEvents.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
