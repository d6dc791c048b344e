package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MarcosDevYT/ecommerce-core/internal/inventory"
	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
)

type OrdersHandler struct {
	Workflow *orders.Workflow
	Catalog  *inventory.Catalog
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.create)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	cust, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Workflow.CreateFromCart(ctx, cust)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "order created successfully", "order": order})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	cust, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	out, err := h.Workflow.OrdersFor(ctx, cust.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	cust, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()

	order, err := h.Workflow.Order(ctx, chi.URLParam(r, "id"), cust.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ps == nil {
		ps = []inventory.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}
