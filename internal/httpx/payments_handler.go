package httpx

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MarcosDevYT/ecommerce-core/internal/inventory"
	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
	"github.com/MarcosDevYT/ecommerce-core/internal/payment"
)

// maxWebhookBody caps the raw payload read for signature verification.
const maxWebhookBody = 1 << 20

// SessionAttacher stores the issued gateway session id on the order.
type SessionAttacher interface {
	AttachSession(ctx context.Context, orderID, sessionID string) error
}

type PaymentsHandler struct {
	Workflow   *orders.Workflow
	Gateway    payment.Gateway
	Reconciler *payment.Reconciler
	Catalog    *inventory.Catalog
	Sessions   SessionAttacher
	Log        *zap.Logger
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payments/checkout/{orderID}", h.createSession)
	r.Post("/payments/webhook", h.webhook)
}

// createSession opens a hosted checkout for one of the caller's PENDING
// orders. A gateway failure leaves the order PENDING with its stock
// reserved, so the customer can retry for a payment link.
func (h *PaymentsHandler) createSession(w http.ResponseWriter, r *http.Request) {
	cust, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.Workflow.Order(ctx, chi.URLParam(r, "orderID"), cust.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if order.Status != orders.StatusPending {
		writeErr(w, orders.ErrInvalidOrderState)
		return
	}

	items, err := h.lineItems(ctx, order)
	if err != nil {
		writeErr(w, err)
		return
	}

	sess, err := h.Gateway.CreateCheckoutSession(ctx, order, items, cust.Email)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.Sessions.AttachSession(ctx, order.ID, sess.ID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// lineItems joins order items with catalog names for the hosted checkout
// display. A product deleted since purchase degrades to a placeholder name;
// the snapshotted price is what gets charged either way.
func (h *PaymentsHandler) lineItems(ctx context.Context, order *orders.Order) ([]payment.LineItem, error) {
	ids := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := h.Catalog.Products(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	items := make([]payment.LineItem, 0, len(order.Items))
	for _, it := range order.Items {
		name := names[it.ProductID]
		if name == "" {
			name = "Unknown Product"
		}
		items = append(items, payment.LineItem{
			Name:           name,
			UnitPriceCents: it.UnitPriceCents,
			Quantity:       it.Qty,
		})
	}
	return items, nil
}

// webhook receives gateway deliveries. Signature verification happens on
// the raw body before anything else; unverifiable payloads never reach the
// reconciler. After successful verification only infrastructure errors are
// answered with a retryable status.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		writeErrMsg(w, http.StatusBadRequest, "missing signature header")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeErrMsg(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := h.Gateway.VerifyEvent(body, sig)
	if err != nil {
		h.Log.Warn("webhook rejected", zap.Error(err))
		writeErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Reconciler.Handle(ctx, ev); err != nil {
		h.Log.Error("webhook reconciliation failed", zap.String("event_id", ev.ID), zap.Error(err))
		writeErrMsg(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
