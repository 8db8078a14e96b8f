package reviews

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

// Recompute rebuilds the product's ratings from its active reviews and writes
// them back, inside the caller's unit of work. The product row must already be
// locked by the caller so concurrent review writes on the same product queue
// behind each other and every recompute sees the previous commit.
func Recompute(ctx context.Context, tx store.Tx, productID string) (domain.Ratings, error) {
	r, err := tx.AggregateRatings(ctx, productID)
	if err != nil {
		return domain.Ratings{}, fmt.Errorf("aggregate product %s: %w", productID, err)
	}
	if err := tx.SetRatings(ctx, productID, r); err != nil {
		return domain.Ratings{}, fmt.Errorf("store ratings of product %s: %w", productID, err)
	}
	return r, nil
}
