package httpx

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/go-chi/chi/v5"
	"net/http"
	"time"
)

type priceReq struct {
	PriceCents *int64 `json:"price_cents"`
}

type activeReq struct {
	IsActive *bool `json:"is_active"`
}

type stockReq struct {
	Delta int `json:"delta"`
}

func (a *API) registerProducts(r chi.Router) {
	r.Post("/products", a.createProduct)
	r.Get("/products/{id}", a.getProduct)
	r.Patch("/products/{id}/price", a.setPrice)
	r.Patch("/products/{id}/active", a.setActive)
	r.Patch("/products/{id}/stock", a.adjustStock)
	r.Get("/products/{id}/ledger", a.getLedger)
	r.Post("/products/{id}/reconcile", a.reconcile)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := a.Catalog.Create(ctx, identityFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := a.Catalog.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) setPrice(w http.ResponseWriter, r *http.Request) {
	var req priceReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PriceCents == nil {
		writeError(w, r, fmt.Errorf("%w: price_cents is required", domain.ErrValidation))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := a.Catalog.SetPrice(ctx, identityFrom(r), chi.URLParam(r, "id"), *req.PriceCents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) setActive(w http.ResponseWriter, r *http.Request) {
	var req activeReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IsActive == nil {
		writeError(w, r, fmt.Errorf("%w: is_active is required", domain.ErrValidation))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := a.Catalog.SetActive(ctx, identityFrom(r), chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	productID := chi.URLParam(r, "id")
	stock, err := a.Inventory.Adjust(ctx, identityFrom(r), productID, req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "stock": stock})
}

// getLedger returns the caller's ledger entry. Admins may pass ?user=.
func (a *API) getLedger(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r)
	userID := who.UserID
	if u := r.URL.Query().Get("user"); u != "" && u != who.UserID {
		if !who.IsAdmin() {
			writeError(w, r, fmt.Errorf("%w: ledger of another user", domain.ErrForbidden))
			return
		}
		userID = u
	}
	if userID == "" {
		writeError(w, r, fmt.Errorf("%w: no authenticated user", domain.ErrForbidden))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	up, err := a.Ledger.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (a *API) reconcile(w http.ResponseWriter, r *http.Request) {
	if !identityFrom(r).IsAdmin() {
		writeError(w, r, fmt.Errorf("%w: reconcile is admin only", domain.ErrForbidden))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rep, err := a.Reviews.Reconcile(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
