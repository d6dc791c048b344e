package orders

import "errors"

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOrderNotFound = errors.New("order not found")

	// ErrForbidden means the order exists but belongs to another customer.
	// The HTTP layer answers it exactly like ErrOrderNotFound so order ids
	// cannot be enumerated.
	ErrForbidden = errors.New("order belongs to another customer")

	// ErrInvalidOrderState: a checkout session was requested for an order
	// that is no longer awaiting payment.
	ErrInvalidOrderState = errors.New("order is not awaiting payment")
)
