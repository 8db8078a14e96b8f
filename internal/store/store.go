// Package store defines the transactional boundary shared by every component
// that mutates more than one entity.
package store

import (
	"context"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/domain"
)

// Store runs units of work. InTx commits only when fn returns nil; any error
// from fn rolls everything back and is returned unchanged. Failures to begin
// or commit are reported as domain.ErrTransaction.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside one unit of work.
// Lookups return domain.ErrNotFound when the row does not exist.
type Tx interface {
	ProductTx
	OrderTx
	ReviewTx
	LedgerTx
}

type ProductTx interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	// LockProduct reads the product and holds it until the unit of work ends.
	LockProduct(ctx context.Context, id string) (domain.Product, error)
	UpdateProductPrice(ctx context.Context, id string, priceCents int64) error
	SetProductActive(ctx context.Context, id string, active bool) error

	// ReserveStock decrements stock by qty only if the product is active and
	// stock >= qty, as one check-and-set. It returns the product after the
	// decrement, domain.ErrNotFound for missing or inactive products and
	// domain.ErrInsufficientStock otherwise.
	ReserveStock(ctx context.Context, id string, qty int) (domain.Product, error)
	// AdjustStock applies stock = max(0, stock + delta) and returns the new stock.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
	SetRatings(ctx context.Context, id string, r domain.Ratings) error
}

type OrderTx interface {
	InsertOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	LockOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.Status, payment domain.PaymentStatus) error
}

type ReviewTx interface {
	// UpsertReview writes the review keyed by (ProductID, UserID), forcing it
	// active. ID and CreatedAt of an existing row are kept and copied into r.
	UpsertReview(ctx context.Context, r *domain.Review) error
	GetActiveReview(ctx context.Context, productID, userID string) (domain.Review, error)
	DeactivateReview(ctx context.Context, productID, userID string) error
	ListActiveReviews(ctx context.Context, productID string) ([]domain.Review, error)
	// AggregateRatings scans the active reviews of a product.
	AggregateRatings(ctx context.Context, productID string) (domain.Ratings, error)
}

type LedgerTx interface {
	// RecordPurchase upserts the entry, incrementing purchase_count in place.
	RecordPurchase(ctx context.Context, userID, productID string, at time.Time) error
	SetReviewed(ctx context.Context, userID, productID string, reviewed bool) error
	GetUserProduct(ctx context.Context, userID, productID string) (domain.UserProduct, error)
	ListUserProductsByProduct(ctx context.Context, productID string) ([]domain.UserProduct, error)
}
