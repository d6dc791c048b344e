package payment

import (
	"context"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
)

type fakeEventLedger struct {
	mu      sync.Mutex
	seen    map[string]string
	results map[string]string
}

func newFakeEventLedger() *fakeEventLedger {
	return &fakeEventLedger{seen: map[string]string{}, results: map[string]string{}}
}

func (l *fakeEventLedger) Record(_ context.Context, eventID, eventType string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[eventID]; ok {
		return false, nil
	}
	l.seen[eventID] = eventType
	return true, nil
}

func (l *fakeEventLedger) SetResult(_ context.Context, eventID, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[eventID] = status
	return nil
}

type fakeTransitions struct {
	mu        sync.Mutex
	orders    map[string]*orders.Order
	bySession map[string]string
	released  map[string]bool
}

func newFakeTransitions() *fakeTransitions {
	return &fakeTransitions{
		orders:    map[string]*orders.Order{},
		bySession: map[string]string{},
		released:  map[string]bool{},
	}
}

func (f *fakeTransitions) IDBySession(_ context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.bySession[sessionID]
	if !ok {
		return "", orders.ErrOrderNotFound
	}
	return id, nil
}

func (f *fakeTransitions) MarkPaid(_ context.Context, orderID, paymentRef string) (*orders.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, false, orders.ErrOrderNotFound
	}
	if o.Status != orders.StatusPending {
		return nil, false, nil
	}
	o.Status = orders.StatusPaid
	o.PaymentStatus = orders.PaymentCompleted
	o.PaymentRef = paymentRef
	cp := *o
	return &cp, true, nil
}

func (f *fakeTransitions) MarkCancelled(_ context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, orders.ErrOrderNotFound
	}
	if o.Status != orders.StatusPending {
		return false, nil
	}
	o.Status = orders.StatusCancelled
	o.PaymentStatus = orders.PaymentFailed
	f.released[orderID] = true
	return true, nil
}

type countingPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *countingPublisher) Publish(_, _ []byte, _ ...kafkago.Header) {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
}

func newReconciler(led *fakeEventLedger, tr *fakeTransitions, pub *countingPublisher) *Reconciler {
	return &Reconciler{Events: led, Orders: tr, PaidEvents: pub, CancelledEvents: pub, Service: "test", Log: zap.NewNop()}
}

func pendingOrder(id string) *orders.Order {
	return &orders.Order{
		ID:            id,
		CustomerID:    "c1",
		CustomerEmail: "c1@example.com",
		Status:        orders.StatusPending,
		PaymentStatus: orders.PaymentPending,
		TotalCents:    2000,
	}
}

func TestHandle_PaidThenDuplicate(t *testing.T) {
	led := newFakeEventLedger()
	tr := newFakeTransitions()
	pub := &countingPublisher{}
	tr.orders["ord-1"] = pendingOrder("ord-1")
	rec := newReconciler(led, tr, pub)

	ev := Event{ID: "evt-1", Type: EventCheckoutCompleted, OrderID: "ord-1", PaymentRef: "pi_123"}
	if err := rec.Handle(context.Background(), ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if tr.orders["ord-1"].Status != orders.StatusPaid {
		t.Errorf("order not PAID: %s", tr.orders["ord-1"].Status)
	}
	if tr.orders["ord-1"].PaymentRef != "pi_123" {
		t.Errorf("payment ref not stored")
	}
	if pub.count != 1 {
		t.Errorf("expected 1 notification event, got %d", pub.count)
	}
	if led.results["evt-1"] != ResultProcessed {
		t.Errorf("ledger result = %q, want PROCESSED", led.results["evt-1"])
	}

	// Replay: success, no further mutation, no second notification.
	if err := rec.Handle(context.Background(), ev); err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if pub.count != 1 {
		t.Errorf("duplicate produced another notification: %d", pub.count)
	}
	if led.results["evt-1"] != ResultProcessed {
		t.Errorf("duplicate overwrote ledger result: %q", led.results["evt-1"])
	}
}

func TestHandle_GuardedTransitionRace(t *testing.T) {
	led := newFakeEventLedger()
	tr := newFakeTransitions()
	pub := &countingPublisher{}
	tr.orders["ord-1"] = pendingOrder("ord-1")
	rec := newReconciler(led, tr, pub)

	// Two distinct event ids targeting the same order: the guard makes the
	// second a no-op.
	if err := rec.Handle(context.Background(), Event{ID: "evt-1", Type: EventCheckoutCompleted, OrderID: "ord-1"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := rec.Handle(context.Background(), Event{ID: "evt-2", Type: EventCheckoutCompleted, OrderID: "ord-1"}); err != nil {
		t.Fatalf("second: %v", err)
	}
	if pub.count != 1 {
		t.Errorf("expected one notification, got %d", pub.count)
	}
	if led.results["evt-2"] != ResultSkipped {
		t.Errorf("second event result = %q, want SKIPPED", led.results["evt-2"])
	}
}

func TestHandle_UnresolvableOrderIsAcked(t *testing.T) {
	led := newFakeEventLedger()
	rec := newReconciler(led, newFakeTransitions(), &countingPublisher{})

	ev := Event{ID: "evt-1", Type: EventCheckoutCompleted, SessionID: "cs_unknown"}
	if err := rec.Handle(context.Background(), ev); err != nil {
		t.Fatalf("expected ack for unresolvable order, got %v", err)
	}
	if led.results["evt-1"] != ResultFailed {
		t.Errorf("ledger result = %q, want FAILED", led.results["evt-1"])
	}
}

func TestHandle_SessionFallback(t *testing.T) {
	led := newFakeEventLedger()
	tr := newFakeTransitions()
	tr.orders["ord-1"] = pendingOrder("ord-1")
	tr.bySession["cs_1"] = "ord-1"
	rec := newReconciler(led, tr, &countingPublisher{})

	ev := Event{ID: "evt-1", Type: EventCheckoutCompleted, SessionID: "cs_1"}
	if err := rec.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if tr.orders["ord-1"].Status != orders.StatusPaid {
		t.Errorf("session fallback did not reconcile the order")
	}
}

func TestHandle_ExpiredCancelsAndReleases(t *testing.T) {
	led := newFakeEventLedger()
	tr := newFakeTransitions()
	pub := &countingPublisher{}
	tr.orders["ord-1"] = pendingOrder("ord-1")
	rec := newReconciler(led, tr, pub)

	ev := Event{ID: "evt-1", Type: EventCheckoutExpired, OrderID: "ord-1"}
	if err := rec.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if tr.orders["ord-1"].Status != orders.StatusCancelled {
		t.Errorf("order not CANCELLED: %s", tr.orders["ord-1"].Status)
	}
	if !tr.released["ord-1"] {
		t.Errorf("stock not released on cancellation")
	}
	if pub.count != 1 {
		t.Errorf("expected one cancellation event, got %d", pub.count)
	}
}

func TestHandle_ForeignEventTypesIgnored(t *testing.T) {
	led := newFakeEventLedger()
	rec := newReconciler(led, newFakeTransitions(), &countingPublisher{})

	if err := rec.Handle(context.Background(), Event{ID: "evt-1", Type: "payment_intent.created"}); err != nil {
		t.Fatalf("expected nil for foreign event type, got %v", err)
	}
	if len(led.seen) != 0 {
		t.Errorf("foreign event recorded in ledger")
	}
}
