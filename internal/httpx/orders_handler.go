package httpx

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payment"
	"github.com/go-chi/chi/v5"
	"log"
	"net/http"
	"strings"
	"time"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type CreateOrderResp struct {
	Order      domain.Order     `json:"order"`
	Payment    *payment.Session `json:"payment,omitempty"`
	Idempotent bool             `json:"idempotent"`
}

type statusReq struct {
	Status string `json:"status"`
}

type paymentReq struct {
	PaymentStatus string `json:"payment_status"`
}

func (a *API) registerOrders(r chi.Router) {
	r.Post("/orders", a.createOrder)
	r.Get("/orders", a.listOrders)
	r.Get("/orders/{id}", a.getOrder)
	r.Get("/orders/{id}/status", a.getOrderStatus)
	r.Patch("/orders/{id}/status", a.updateOrderStatus)
	r.Post("/orders/{id}/cancel", a.cancelOrder)
	r.Post("/orders/{id}/payment", a.setPaymentStatus)
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r)
	var req orders.CheckoutInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// A retried checkout with the same key returns the order it created.
	idemKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if orderID, ok := a.Cache.CheckoutOrder(ctx, who.UserID, idemKey); ok {
		o, err := a.Orders.Get(ctx, who, orderID)
		if err == nil {
			writeJSON(w, http.StatusOK, CreateOrderResp{Order: o, Payment: a.paymentSession(ctx, o), Idempotent: true})
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			writeError(w, r, err)
			return
		}
	}

	o, err := a.Orders.Create(ctx, who, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.Cache.RememberCheckout(ctx, who.UserID, idemKey, o.ID)
	writeJSON(w, http.StatusCreated, CreateOrderResp{Order: o, Payment: a.paymentSession(ctx, o)})
}

// paymentSession asks the payment collaborator for a handoff. The order is
// already committed, so a failure here only leaves payment pending.
func (a *API) paymentSession(ctx context.Context, o domain.Order) *payment.Session {
	if a.Payments == nil {
		return nil
	}
	s, err := a.Payments.Start(ctx, o)
	if err != nil {
		log.Printf("payment handoff for order %s: %v", o.ID, err)
		return nil
	}
	return s
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := a.Orders.ListMine(ctx, identityFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := a.Orders.Get(ctx, identityFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves the cached status view when the caller may see it and
// falls back to the store otherwise.
func (a *API) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r)
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if v, ok := a.Cache.OrderStatus(ctx, orderID); ok && who.UserID != "" && (v.UserID == who.UserID || who.IsAdmin()) {
		writeJSON(w, http.StatusOK, v)
		return
	}
	o, err := a.Orders.Get(ctx, who, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.Cache.SetOrderStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": o.UserID, "status": o.Status, "payment_status": o.PaymentStatus, "updated_at": o.UpdatedAt,
	})
}

func (a *API) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := a.Orders.UpdateStatus(ctx, identityFrom(r), chi.URLParam(r, "id"), to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := a.Orders.Cancel(ctx, identityFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) setPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ps, err := domain.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := a.Orders.SetPaymentStatus(ctx, identityFrom(r), chi.URLParam(r, "id"), ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
