package orders

import "time"

// CartItem is a single cart line. Referential validity against the catalog
// is only checked at checkout.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Customer is the already-authenticated identity handed in by the upstream
// auth layer. No credential checks happen here.
type Customer struct {
	ID    string
	Email string
	Name  string
}

type Order struct {
	ID               string      `json:"id"`
	CustomerID       string      `json:"customer_id"`
	CustomerEmail    string      `json:"customer_email"`
	CustomerName     string      `json:"customer_name"`
	Status           Status      `json:"status"`
	PaymentStatus    PayStatus   `json:"payment_status"`
	TotalCents       int64       `json:"total_cents"`
	GatewaySessionID string      `json:"gateway_session_id,omitempty"`
	PaymentRef       string      `json:"payment_ref,omitempty"`
	Items            []OrderItem `json:"items"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// OrderItem snapshots the unit price at purchase time; later catalog price
// changes never touch it.
type OrderItem struct {
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}
