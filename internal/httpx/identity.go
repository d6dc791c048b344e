package httpx

import (
	"net/http"

	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
)

// Identity headers are set by the upstream auth layer; this service performs
// no credential checks of its own.
const (
	headerCustomerID    = "X-Customer-Id"
	headerCustomerEmail = "X-Customer-Email"
	headerCustomerName  = "X-Customer-Name"
)

func customerFrom(r *http.Request) (orders.Customer, bool) {
	c := orders.Customer{
		ID:    r.Header.Get(headerCustomerID),
		Email: r.Header.Get(headerCustomerEmail),
		Name:  r.Header.Get(headerCustomerName),
	}
	return c, c.ID != ""
}

// requireCustomer writes a 401 and returns false when no identity was
// forwarded.
func requireCustomer(w http.ResponseWriter, r *http.Request) (orders.Customer, bool) {
	c, ok := customerFrom(r)
	if !ok {
		writeErrMsg(w, http.StatusUnauthorized, "missing customer identity")
	}
	return c, ok
}
