// Package ledger maintains the per-(user, product) purchase ledger. Only the
// delivery transition and review writes call into it, always inside the unit
// of work that changes the order or the review.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"time"
)

// RecordDelivery counts one purchase per distinct product of a delivered order.
func RecordDelivery(ctx context.Context, tx store.LedgerTx, o domain.Order, at time.Time) error {
	seen := make(map[string]bool, len(o.Items))
	for _, it := range o.Items {
		if seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		if err := tx.RecordPurchase(ctx, o.UserID, it.ProductID, at); err != nil {
			return fmt.Errorf("ledger: order %s product %s: %w", o.ID, it.ProductID, err)
		}
	}
	return nil
}

// MarkReviewed mirrors whether the user currently has an active review.
func MarkReviewed(ctx context.Context, tx store.LedgerTx, userID, productID string, reviewed bool) error {
	if err := tx.SetReviewed(ctx, userID, productID, reviewed); err != nil {
		return fmt.Errorf("ledger: user %s product %s: %w", userID, productID, err)
	}
	return nil
}

// Repair re-derives is_reviewed for every ledger row of a product from the
// set of users holding an active review, creating rows that are missing.
// It returns how many rows changed.
func Repair(ctx context.Context, tx store.LedgerTx, productID string, activeReviewers map[string]bool) (int, error) {
	rows, err := tx.ListUserProductsByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	repaired := 0
	seen := make(map[string]bool, len(rows))
	for _, up := range rows {
		seen[up.UserID] = true
		want := activeReviewers[up.UserID]
		if up.IsReviewed == want {
			continue
		}
		if err := MarkReviewed(ctx, tx, up.UserID, productID, want); err != nil {
			return repaired, err
		}
		repaired++
	}
	for userID := range activeReviewers {
		if seen[userID] {
			continue
		}
		if err := MarkReviewed(ctx, tx, userID, productID, true); err != nil {
			return repaired, err
		}
		repaired++
	}
	return repaired, nil
}

type Service struct {
	Store store.Store
}

// Get returns the ledger entry, or a zero entry when the user never bought or
// reviewed the product.
func (s *Service) Get(ctx context.Context, userID, productID string) (domain.UserProduct, error) {
	if err := domain.ValidateID("product_id", productID); err != nil {
		return domain.UserProduct{}, err
	}
	var up domain.UserProduct
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		var err error
		up, err = tx.GetUserProduct(ctx, userID, productID)
		if errors.Is(err, domain.ErrNotFound) {
			up, err = domain.UserProduct{UserID: userID, ProductID: productID}, nil
		}
		return err
	})
	return up, err
}
