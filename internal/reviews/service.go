package reviews

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/events"
	"github.com/ariefcatur/go-storefront-orders/internal/ledger"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"log"
	"strings"
)

type CacheInvalidator interface {
	InvalidateProduct(ctx context.Context, productID string)
}

type Service struct {
	Store  store.Store
	Events *events.Emitter
	Cache  CacheInvalidator
}

type UpsertInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Title   string `json:"title" validate:"max=200"`
	Comment string `json:"comment" validate:"max=5000"`
}

func requireUser(who domain.Identity) error {
	if who.UserID == "" {
		return fmt.Errorf("%w: no authenticated user", domain.ErrForbidden)
	}
	return nil
}

// Upsert creates or replaces the caller's review of a product. The review
// row, the product ratings and the ledger flag commit together.
func (s *Service) Upsert(ctx context.Context, who domain.Identity, productID string, in UpsertInput) (r domain.Review, ratings domain.Ratings, err error) {
	defer func() { metrics.RecordOperation("review_upsert", err) }()

	if err := requireUser(who); err != nil {
		return domain.Review{}, domain.Ratings{}, err
	}
	if err := domain.ValidateID("product_id", productID); err != nil {
		return domain.Review{}, domain.Ratings{}, err
	}
	if err := domain.Validate(in); err != nil {
		return domain.Review{}, domain.Ratings{}, err
	}

	err = s.Store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return fmt.Errorf("%w: product %s is inactive", domain.ErrNotFound, productID)
		}

		r = domain.Review{
			ProductID: productID,
			UserID:    who.UserID,
			Rating:    in.Rating,
			Title:     strings.TrimSpace(in.Title),
			Comment:   strings.TrimSpace(in.Comment),
		}
		if err := tx.UpsertReview(ctx, &r); err != nil {
			return err
		}
		if ratings, err = Recompute(ctx, tx, productID); err != nil {
			return err
		}
		return ledger.MarkReviewed(ctx, tx, who.UserID, productID, true)
	})
	if err != nil {
		return domain.Review{}, domain.Ratings{}, err
	}

	s.afterWrite(ctx, events.EventReviewUpserted, events.ReviewChangedPayload{
		ProductID: productID, UserID: who.UserID, Rating: r.Rating, Active: true, Ratings: ratings,
	})
	return r, ratings, nil
}

// Delete soft-deletes the active review of userID for a product. An empty
// userID means the caller's own review; deleting someone else's needs admin.
func (s *Service) Delete(ctx context.Context, who domain.Identity, productID, userID string) (ratings domain.Ratings, err error) {
	defer func() { metrics.RecordOperation("review_delete", err) }()

	if err := requireUser(who); err != nil {
		return domain.Ratings{}, err
	}
	if userID == "" {
		userID = who.UserID
	}
	if userID != who.UserID && !who.IsAdmin() {
		return domain.Ratings{}, fmt.Errorf("%w: review belongs to another user", domain.ErrForbidden)
	}
	if err := domain.ValidateID("product_id", productID); err != nil {
		return domain.Ratings{}, err
	}

	err = s.Store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockProduct(ctx, productID); err != nil {
			return err
		}
		if err := tx.DeactivateReview(ctx, productID, userID); err != nil {
			return err
		}
		if ratings, err = Recompute(ctx, tx, productID); err != nil {
			return err
		}
		return ledger.MarkReviewed(ctx, tx, userID, productID, false)
	})
	if err != nil {
		return domain.Ratings{}, err
	}

	s.afterWrite(ctx, events.EventReviewDeleted, events.ReviewChangedPayload{
		ProductID: productID, UserID: userID, Active: false, Ratings: ratings,
	})
	return ratings, nil
}

func (s *Service) afterWrite(ctx context.Context, eventType string, p events.ReviewChangedPayload) {
	if s.Cache != nil {
		s.Cache.InvalidateProduct(ctx, p.ProductID)
	}
	s.Events.Emit(ctx, events.TopicReviews, eventType, p.ProductID, p)
}

// Get returns the caller's active review, or nil when there is none.
func (s *Service) Get(ctx context.Context, who domain.Identity, productID string) (*domain.Review, error) {
	if err := requireUser(who); err != nil {
		return nil, err
	}
	if err := domain.ValidateID("product_id", productID); err != nil {
		return nil, err
	}
	var out *domain.Review
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetActiveReview(ctx, productID, who.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &r
		return nil
	})
	return out, err
}

// List returns the active reviews of a product, most recently updated first.
func (s *Service) List(ctx context.Context, productID string) ([]domain.Review, error) {
	if err := domain.ValidateID("product_id", productID); err != nil {
		return nil, err
	}
	var out []domain.Review
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListActiveReviews(ctx, productID)
		return err
	})
	return out, err
}

type Report struct {
	ProductID      string         `json:"product_id"`
	Before         domain.Ratings `json:"before"`
	After          domain.Ratings `json:"after"`
	RatingsDrifted bool           `json:"ratings_drifted"`
	LedgerRepaired int            `json:"ledger_repaired"`
}

func (r Report) Drifted() bool { return r.RatingsDrifted || r.LedgerRepaired > 0 }

// Reconcile recomputes a product's ratings and every ledger review flag of
// that product from the review rows, repairing whatever drifted.
func (s *Service) Reconcile(ctx context.Context, productID string) (rep Report, err error) {
	defer func() { metrics.RecordOperation("reconcile", err) }()

	if err := domain.ValidateID("product_id", productID); err != nil {
		return Report{}, err
	}
	rep.ProductID = productID
	err = s.Store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		rep.Before = p.Ratings
		if rep.After, err = Recompute(ctx, tx, productID); err != nil {
			return err
		}
		rep.RatingsDrifted = rep.Before != rep.After

		active, err := tx.ListActiveReviews(ctx, productID)
		if err != nil {
			return err
		}
		reviewers := make(map[string]bool, len(active))
		for _, r := range active {
			reviewers[r.UserID] = true
		}
		rep.LedgerRepaired, err = ledger.Repair(ctx, tx, productID, reviewers)
		return err
	})
	if err != nil {
		return Report{}, err
	}

	if rep.Drifted() {
		log.Printf("reconcile product=%s: ratings %+v -> %+v, ledger rows repaired=%d",
			productID, rep.Before, rep.After, rep.LedgerRepaired)
		metrics.RecordDriftRepair()
		if s.Cache != nil {
			s.Cache.InvalidateProduct(ctx, productID)
		}
		s.Events.Emit(ctx, events.TopicReviews, events.EventRatingsReconciled, productID, events.RatingsReconciledPayload{
			ProductID: productID, Before: rep.Before, After: rep.After, LedgerRepaired: rep.LedgerRepaired,
		})
	}
	return rep, nil
}
