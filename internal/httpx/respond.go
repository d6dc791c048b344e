package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MarcosDevYT/ecommerce-core/internal/inventory"
	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
	"github.com/MarcosDevYT/ecommerce-core/internal/payment"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrMsg(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeErr maps domain failures onto HTTP statuses. ErrForbidden is
// deliberately rendered with the exact not-found body so ownership of an
// order id cannot be probed.
func writeErr(w http.ResponseWriter, err error) {
	var short inventory.InsufficientStockError
	var missing inventory.ProductNotFoundError
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		writeErrMsg(w, http.StatusBadRequest, "cart is empty")
	case errors.As(err, &short):
		writeErrMsg(w, http.StatusBadRequest, short.Error())
	case errors.As(err, &missing):
		writeErrMsg(w, http.StatusBadRequest, missing.Error())
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, orders.ErrForbidden):
		writeErrMsg(w, http.StatusNotFound, "order not found")
	case errors.Is(err, orders.ErrInvalidOrderState):
		writeErrMsg(w, http.StatusBadRequest, "order is already processed or cancelled")
	case errors.Is(err, payment.ErrSignatureInvalid):
		writeErrMsg(w, http.StatusBadRequest, "webhook signature invalid")
	case errors.Is(err, payment.ErrGatewayUnavailable):
		writeErrMsg(w, http.StatusBadGateway, "payment gateway unavailable")
	default:
		writeErrMsg(w, http.StatusInternalServerError, "internal error")
	}
}
