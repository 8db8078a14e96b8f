package inventory

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

// CacheInvalidator drops cached product views after a stock change.
type CacheInvalidator interface {
	InvalidateProduct(ctx context.Context, productID string)
}

type Service struct {
	Store store.Store
	Cache CacheInvalidator
}

// Adjust applies an administrative stock delta; the result is clamped at zero.
func (s *Service) Adjust(ctx context.Context, who domain.Identity, productID string, delta int) (stock int, err error) {
	defer func() { metrics.RecordOperation("stock_adjust", err) }()

	if !who.CanManageCatalog() {
		return 0, fmt.Errorf("%w: stock adjustments need a catalog role", domain.ErrForbidden)
	}
	if err := domain.ValidateID("product_id", productID); err != nil {
		return 0, err
	}
	err = s.Store.InTx(ctx, func(tx store.Tx) error {
		var err error
		stock, err = tx.AdjustStock(ctx, productID, delta)
		return err
	})
	if err != nil {
		return 0, err
	}
	if s.Cache != nil {
		s.Cache.InvalidateProduct(ctx, productID)
	}
	return stock, nil
}
