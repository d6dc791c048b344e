package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MarcosDevYT/ecommerce-core/internal/cart"
)

type CartHandler struct {
	Carts *cart.Store
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.get)
	r.Post("/cart", h.add)
	r.Put("/cart/{productID}", h.setQuantity)
	r.Delete("/cart/{productID}", h.remove)
	r.Delete("/cart", h.clear)
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

func reqCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 3*time.Second)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	cust, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	items, err := h.Carts.GetDetailed(ctx, cust.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	cust, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.ProductID == "" || req.Quantity < 0 {
		writeErrMsg(w, http.StatusBadRequest, "product_id required and quantity must be positive")
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	items, err := h.Carts.Add(ctx, cust.ID, req.ProductID, req.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "item added to cart", "cart": items})
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	cust, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	var req setQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Quantity < 0 {
		writeErrMsg(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	ctx, cancel := reqCtx(r)
	defer cancel()

	items, err := h.Carts.SetQuantity(ctx, cust.ID, productID, req.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "cart updated", "cart": items})
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	cust, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	items, err := h.Carts.Remove(ctx, cust.ID, chi.URLParam(r, "productID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "item removed from cart", "cart": items})
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	cust, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	if err := h.Carts.Clear(ctx, cust.ID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}
