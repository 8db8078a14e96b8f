package httpx

import (
	"context"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/reviews"
	"github.com/go-chi/chi/v5"
	"net/http"
	"time"
)

type reviewResp struct {
	Review  *domain.Review `json:"review"`
	Ratings domain.Ratings `json:"ratings"`
}

func (a *API) registerReviews(r chi.Router) {
	r.Get("/products/{id}/reviews", a.listReviews)
	r.Get("/products/{id}/review", a.getReview)
	r.Put("/products/{id}/review", a.upsertReview)
	r.Delete("/products/{id}/review", a.deleteReview)
}

func (a *API) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := a.Reviews.List(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.Review{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rv, err := a.Reviews.Get(ctx, identityFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*domain.Review{"review": rv})
}

func (a *API) upsertReview(w http.ResponseWriter, r *http.Request) {
	var req reviews.UpsertInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rv, ratings, err := a.Reviews.Upsert(ctx, identityFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResp{Review: &rv, Ratings: ratings})
}

func (a *API) deleteReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ratings, err := a.Reviews.Delete(ctx, identityFrom(r), chi.URLParam(r, "id"), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResp{Ratings: ratings})
}
