package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
)

// StripeGateway implements Gateway on Stripe hosted checkout.
type StripeGateway struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(secretKey, webhookSecret, successURL, cancelURL string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, o *orders.Order, items []LineItem, customerEmail string) (Session, error) {
	if o.Status != orders.StatusPending {
		return Session{}, orders.ErrInvalidOrderState
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(it.UnitPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
			Quantity: stripe.Int64(int64(it.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(g.successURL),
		CancelURL:     stripe.String(g.cancelURL),
		CustomerEmail: stripe.String(customerEmail),
		LineItems:     lineItems,
	}
	params.Context = ctx
	// Correlation id: echoed back in webhook event metadata.
	params.AddMetadata("order_id", o.ID)

	s, err := session.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) VerifyEvent(payload []byte, sigHeader string) (Event, error) {
	ev, err := webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err == nil {
		out.SessionID = cs.ID
		out.OrderID = cs.Metadata["order_id"]
		if cs.PaymentIntent != nil {
			out.PaymentRef = cs.PaymentIntent.ID
		}
	}
	return out, nil
}
