// Package memstore keeps every entity in process memory. Units of work are
// serialized behind one mutex and run against a private copy of the state
// that replaces the live state only on success.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/google/uuid"
)

type pairKey struct{ a, b string }

type state struct {
	products map[string]domain.Product
	orders   map[string]domain.Order
	reviews  map[pairKey]domain.Review      // (product, user)
	ledger   map[pairKey]domain.UserProduct // (user, product)
}

func newState() *state {
	return &state{
		products: map[string]domain.Product{},
		orders:   map[string]domain.Order{},
		reviews:  map[pairKey]domain.Review{},
		ledger:   map[pairKey]domain.UserProduct{},
	}
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[string]domain.Product, len(s.products)),
		orders:   make(map[string]domain.Order, len(s.orders)),
		reviews:  make(map[pairKey]domain.Review, len(s.reviews)),
		ledger:   make(map[pairKey]domain.UserProduct, len(s.ledger)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = v
	}
	return c
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the timestamp source used for created/updated stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrTransaction, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrTransaction, err)
	}
	s.st = work
	return nil
}

type tx struct {
	st  *state
	now func() time.Time
}

// ---- products ----

func (t *tx) CreateProduct(_ context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := t.st.products[p.ID]; ok {
		return fmt.Errorf("%w: product %s already exists", domain.ErrValidation, p.ID)
	}
	now := t.now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.st.products[p.ID] = *p
	return nil
}

func (t *tx) GetProduct(_ context.Context, id string) (domain.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return p, nil
}

func (t *tx) LockProduct(ctx context.Context, id string) (domain.Product, error) {
	return t.GetProduct(ctx, id)
}

func (t *tx) UpdateProductPrice(ctx context.Context, id string, priceCents int64) error {
	p, err := t.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	p.PriceCents = priceCents
	p.UpdatedAt = t.now()
	t.st.products[id] = p
	return nil
}

func (t *tx) SetProductActive(ctx context.Context, id string, active bool) error {
	p, err := t.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	p.IsActive = active
	p.UpdatedAt = t.now()
	t.st.products[id] = p
	return nil
}

func (t *tx) ReserveStock(_ context.Context, id string, qty int) (domain.Product, error) {
	p, ok := t.st.products[id]
	if !ok || !p.IsActive {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	if p.Stock < qty {
		return domain.Product{}, fmt.Errorf("%w: product %s requested %d available %d",
			domain.ErrInsufficientStock, id, qty, p.Stock)
	}
	p.Stock -= qty
	p.UpdatedAt = t.now()
	t.st.products[id] = p
	return p, nil
}

func (t *tx) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	p, err := t.GetProduct(ctx, id)
	if err != nil {
		return 0, err
	}
	p.Stock = max(0, p.Stock+delta)
	p.UpdatedAt = t.now()
	t.st.products[id] = p
	return p.Stock, nil
}

func (t *tx) SetRatings(ctx context.Context, id string, r domain.Ratings) error {
	p, err := t.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	p.Ratings = r
	p.UpdatedAt = t.now()
	t.st.products[id] = p
	return nil
}

// ---- orders ----

func (t *tx) InsertOrder(_ context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, ok := t.st.orders[o.ID]; ok {
		return fmt.Errorf("%w: order %s already exists", domain.ErrValidation, o.ID)
	}
	for _, other := range t.st.orders {
		if other.Number == o.Number {
			return fmt.Errorf("%w: order number %s already used", domain.ErrValidation, o.Number)
		}
	}
	now := t.now()
	o.CreatedAt, o.UpdatedAt = now, now
	t.st.orders[o.ID] = o.Clone()
	return nil
}

func (t *tx) GetOrder(_ context.Context, id string) (domain.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	return o.Clone(), nil
}

func (t *tx) LockOrder(ctx context.Context, id string) (domain.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tx) ListOrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range t.st.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number > out[j].Number
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (t *tx) UpdateOrderStatus(ctx context.Context, id string, status domain.Status, payment domain.PaymentStatus) error {
	o, err := t.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	o.Status = status
	o.PaymentStatus = payment
	o.UpdatedAt = t.now()
	t.st.orders[id] = o
	return nil
}

// ---- reviews ----

func (t *tx) UpsertReview(_ context.Context, r *domain.Review) error {
	k := pairKey{r.ProductID, r.UserID}
	now := t.now()
	if cur, ok := t.st.reviews[k]; ok {
		r.ID = cur.ID
		r.CreatedAt = cur.CreatedAt
	} else {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.CreatedAt = now
	}
	r.IsActive = true
	r.UpdatedAt = now
	t.st.reviews[k] = *r
	return nil
}

func (t *tx) GetActiveReview(_ context.Context, productID, userID string) (domain.Review, error) {
	r, ok := t.st.reviews[pairKey{productID, userID}]
	if !ok || !r.IsActive {
		return domain.Review{}, fmt.Errorf("%w: review for product %s by user %s", domain.ErrNotFound, productID, userID)
	}
	return r, nil
}

func (t *tx) DeactivateReview(ctx context.Context, productID, userID string) error {
	r, err := t.GetActiveReview(ctx, productID, userID)
	if err != nil {
		return err
	}
	r.IsActive = false
	r.UpdatedAt = t.now()
	t.st.reviews[pairKey{productID, userID}] = r
	return nil
}

func (t *tx) ListActiveReviews(_ context.Context, productID string) ([]domain.Review, error) {
	var out []domain.Review
	for _, r := range t.st.reviews {
		if r.ProductID == productID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (t *tx) AggregateRatings(_ context.Context, productID string) (domain.Ratings, error) {
	var count, sum int
	for _, r := range t.st.reviews {
		if r.ProductID == productID && r.IsActive {
			count++
			sum += r.Rating
		}
	}
	return domain.RatingsFrom(count, sum), nil
}

// ---- ledger ----

func (t *tx) RecordPurchase(_ context.Context, userID, productID string, at time.Time) error {
	k := pairKey{userID, productID}
	up := t.st.ledger[k]
	up.UserID, up.ProductID = userID, productID
	up.PurchaseCount++
	up.LastPurchasedAt = at
	t.st.ledger[k] = up
	return nil
}

func (t *tx) SetReviewed(_ context.Context, userID, productID string, reviewed bool) error {
	k := pairKey{userID, productID}
	up := t.st.ledger[k]
	up.UserID, up.ProductID = userID, productID
	up.IsReviewed = reviewed
	t.st.ledger[k] = up
	return nil
}

func (t *tx) GetUserProduct(_ context.Context, userID, productID string) (domain.UserProduct, error) {
	up, ok := t.st.ledger[pairKey{userID, productID}]
	if !ok {
		return domain.UserProduct{}, fmt.Errorf("%w: ledger entry for user %s product %s", domain.ErrNotFound, userID, productID)
	}
	return up, nil
}

func (t *tx) ListUserProductsByProduct(_ context.Context, productID string) ([]domain.UserProduct, error) {
	var out []domain.UserProduct
	for _, up := range t.st.ledger {
		if up.ProductID == productID {
			out = append(out, up)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
