// Package catalog owns product creation and editing. Pricing and reservation
// only read products; price edits here never touch existing orders.
package catalog

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"strings"
)

type Cache interface {
	Product(ctx context.Context, id string, load func(context.Context) (domain.Product, error)) (domain.Product, error)
	InvalidateProduct(ctx context.Context, productID string)
}

type Service struct {
	Store store.Store
	Cache Cache
}

type CreateInput struct {
	Name       string `json:"name" validate:"required,max=200"`
	PriceCents int64  `json:"price_cents" validate:"min=0"`
	Stock      int    `json:"stock" validate:"min=0"`
	// Inactive creates the product hidden from checkout and reviews.
	Inactive bool `json:"inactive"`
}

func requireCatalogRole(who domain.Identity) error {
	if !who.CanManageCatalog() {
		return fmt.Errorf("%w: catalog changes need a seller or admin role", domain.ErrForbidden)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, who domain.Identity, in CreateInput) (p domain.Product, err error) {
	defer func() { metrics.RecordOperation("product_create", err) }()

	if err := requireCatalogRole(who); err != nil {
		return domain.Product{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := domain.Validate(in); err != nil {
		return domain.Product{}, err
	}
	p = domain.Product{Name: in.Name, PriceCents: in.PriceCents, Stock: in.Stock, IsActive: !in.Inactive}
	err = s.Store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateProduct(ctx, &p)
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx, p.ID)
	return p, nil
}

// Get returns an active product. Inactive and unknown products are NotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := domain.ValidateID("product_id", id); err != nil {
		return domain.Product{}, err
	}
	load := func(ctx context.Context) (domain.Product, error) {
		var p domain.Product
		err := s.Store.InTx(ctx, func(tx store.Tx) error {
			var err error
			p, err = tx.GetProduct(ctx, id)
			return err
		})
		if err != nil {
			return domain.Product{}, err
		}
		if !p.IsActive {
			return domain.Product{}, fmt.Errorf("%w: product %s is inactive", domain.ErrNotFound, id)
		}
		return p, nil
	}
	if s.Cache == nil {
		return load(ctx)
	}
	return s.Cache.Product(ctx, id, load)
}

func (s *Service) SetPrice(ctx context.Context, who domain.Identity, id string, priceCents int64) (p domain.Product, err error) {
	defer func() { metrics.RecordOperation("product_price", err) }()

	if priceCents < 0 {
		return domain.Product{}, fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	return s.update(ctx, who, id, func(tx store.Tx) error {
		return tx.UpdateProductPrice(ctx, id, priceCents)
	})
}

func (s *Service) SetActive(ctx context.Context, who domain.Identity, id string, active bool) (p domain.Product, err error) {
	defer func() { metrics.RecordOperation("product_active", err) }()

	return s.update(ctx, who, id, func(tx store.Tx) error {
		return tx.SetProductActive(ctx, id, active)
	})
}

func (s *Service) update(ctx context.Context, who domain.Identity, id string, change func(tx store.Tx) error) (domain.Product, error) {
	if err := requireCatalogRole(who); err != nil {
		return domain.Product{}, err
	}
	if err := domain.ValidateID("product_id", id); err != nil {
		return domain.Product{}, err
	}
	var p domain.Product
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockProduct(ctx, id); err != nil {
			return err
		}
		if err := change(tx); err != nil {
			return err
		}
		var err error
		p, err = tx.GetProduct(ctx, id)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx, id)
	return p, nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.Cache != nil {
		s.Cache.InvalidateProduct(ctx, id)
	}
}
