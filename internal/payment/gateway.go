// Package payment holds the gateway adapter and the webhook reconciler that
// drives orders to their paid terminal state.
package payment

import (
	"context"
	"errors"

	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
)

var (
	// ErrSignatureInvalid: the webhook payload failed cryptographic
	// verification and must not reach any state lookup.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrGatewayUnavailable: the outbound call to the provider failed; the
	// caller may retry, the order stays PENDING with its stock reserved.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// LineItem is the display form of an order line sent to the hosted checkout.
type LineItem struct {
	Name           string
	UnitPriceCents int64
	Quantity       int
}

// Session is a hosted checkout session the customer is redirected to.
type Session struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// Event is a verified, decoded webhook event. OrderID comes from the
// correlation metadata set at session creation; SessionID is the fallback
// lookup key.
type Event struct {
	ID         string
	Type       string
	SessionID  string
	OrderID    string
	PaymentRef string
}

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

type Gateway interface {
	// CreateCheckoutSession opens a hosted checkout for a PENDING order.
	CreateCheckoutSession(ctx context.Context, o *orders.Order, items []LineItem, customerEmail string) (Session, error)

	// VerifyEvent checks the signature over the raw payload before any
	// field of it is trusted.
	VerifyEvent(payload []byte, sigHeader string) (Event, error)
}
