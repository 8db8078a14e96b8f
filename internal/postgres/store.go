package postgres

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

// Store runs each unit of work in one READ COMMITTED transaction. Cross-row
// consistency comes from row locks (FOR UPDATE) and guarded updates rather
// than from the isolation level.
type Store struct{ DB *pgxpool.Pool }

var _ store.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrTransaction, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrTransaction, err)
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

// mapErr keeps the error kind for rows that are missing or rejected by a
// constraint; everything else is an infrastructure failure of the unit of work.
func mapErr(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23514", "22P02", "23503":
			return fmt.Errorf("%w: %s: %s", domain.ErrValidation, what, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrTransaction, what, err)
}

// ---- products ----

const productCols = `id, name, price_cents, stock, is_active, rating_avg, rating_count, rating_sum, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.IsActive,
		&p.Ratings.Average, &p.Ratings.Count, &p.Ratings.Sum, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (t *pgTx) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO products (id, name, price_cents, stock, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.PriceCents, p.Stock, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapErr("create product "+p.ID, err)
	}
	return nil
}

func (t *pgTx) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if err != nil {
		return domain.Product{}, mapErr("product "+id, err)
	}
	return p, nil
}

func (t *pgTx) LockProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return domain.Product{}, mapErr("product "+id, err)
	}
	return p, nil
}

func (t *pgTx) execOne(ctx context.Context, what, sql string, args ...any) error {
	ct, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(what, err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return nil
}

func (t *pgTx) UpdateProductPrice(ctx context.Context, id string, priceCents int64) error {
	return t.execOne(ctx, "product "+id,
		`UPDATE products SET price_cents=$2, updated_at=NOW() WHERE id=$1`, id, priceCents)
}

func (t *pgTx) SetProductActive(ctx context.Context, id string, active bool) error {
	return t.execOne(ctx, "product "+id,
		`UPDATE products SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
}

func (t *pgTx) ReserveStock(ctx context.Context, id string, qty int) (domain.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND is_active AND stock >= $2
		RETURNING `+productCols, id, qty))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, mapErr("reserve product "+id, err)
	}

	// guard failed: tell missing/inactive apart from short stock
	var active bool
	var stock int
	err = t.tx.QueryRow(ctx, `SELECT is_active, stock FROM products WHERE id=$1`, id).Scan(&active, &stock)
	if err != nil {
		return domain.Product{}, mapErr("product "+id, err)
	}
	if !active {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return domain.Product{}, fmt.Errorf("%w: product %s requested %d available %d",
		domain.ErrInsufficientStock, id, qty, stock)
}

func (t *pgTx) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var stock int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET stock = GREATEST(0, stock + $2), updated_at = NOW()
		WHERE id = $1
		RETURNING stock`, id, delta).Scan(&stock)
	if err != nil {
		return 0, mapErr("adjust product "+id, err)
	}
	return stock, nil
}

func (t *pgTx) SetRatings(ctx context.Context, id string, r domain.Ratings) error {
	return t.execOne(ctx, "product "+id, `
		UPDATE products SET rating_avg=$2, rating_count=$3, rating_sum=$4, updated_at=NOW()
		WHERE id=$1`, id, r.Average, r.Count, r.Sum)
}

// ---- orders ----

const orderCols = `id, order_number, user_id, sub_total_cents, shipping_cents, tax_cents, total_cents,
	shipping_address, payment_method, payment_status, status, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var payment, status string
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.SubTotalCents, &o.ShippingCents, &o.TaxCents,
		&o.TotalCents, &o.ShippingAddress, &o.PaymentMethod, &payment, &status, &o.CreatedAt, &o.UpdatedAt)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.Status = domain.Status(status)
	return o, err
}

func (t *pgTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (id, order_number, user_id, sub_total_cents, shipping_cents, tax_cents, total_cents,
			shipping_address, payment_method, payment_status, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		o.ID, o.Number, o.UserID, o.SubTotalCents, o.ShippingCents, o.TaxCents, o.TotalCents,
		o.ShippingAddress, o.PaymentMethod, string(o.PaymentStatus), string(o.Status),
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return mapErr("insert order "+o.ID, err)
	}

	for i, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, name, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, i+1, it.ProductID, it.Name, it.Qty, it.PriceCents,
		); err != nil {
			return mapErr("insert order item", err)
		}
	}
	return nil
}

func (t *pgTx) loadItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	idx := make(map[string]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		idx[o.ID] = i
	}
	rows, err := t.tx.Query(ctx, `
		SELECT order_id, product_id, name, qty, price_cents
		FROM order_items WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, line_no`, ids)
	if err != nil {
		return mapErr("order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var it domain.LineItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Qty, &it.PriceCents); err != nil {
			return mapErr("scan order item", err)
		}
		i := idx[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return mapErr("order items", err)
	}
	return nil
}

func (t *pgTx) getOrder(ctx context.Context, id, suffix string) (domain.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`+suffix, id))
	if err != nil {
		return domain.Order{}, mapErr("order "+id, err)
	}
	out := []domain.Order{o}
	if err := t.loadItems(ctx, out); err != nil {
		return domain.Order{}, err
	}
	return out[0], nil
}

func (t *pgTx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return t.getOrder(ctx, id, "")
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (domain.Order, error) {
	return t.getOrder(ctx, id, " FOR UPDATE")
}

func (t *pgTx) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1
		ORDER BY created_at DESC, order_number DESC`, userID)
	if err != nil {
		return nil, mapErr("orders of "+userID, err)
	}
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, mapErr("scan order", err)
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapErr("orders of "+userID, err)
	}
	if err := t.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, id string, status domain.Status, payment domain.PaymentStatus) error {
	return t.execOne(ctx, "order "+id,
		`UPDATE orders SET status=$2, payment_status=$3, updated_at=NOW() WHERE id=$1`,
		id, string(status), string(payment))
}

// ---- reviews ----

const reviewCols = `id, product_id, user_id, rating, title, comment, is_active, created_at, updated_at`

func scanReview(row pgx.Row) (domain.Review, error) {
	var r domain.Review
	err := row.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Title, &r.Comment,
		&r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (t *pgTx) UpsertReview(ctx context.Context, r *domain.Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO reviews (id, product_id, user_id, rating, title, comment, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,TRUE)
		ON CONFLICT (product_id, user_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			title = EXCLUDED.title,
			comment = EXCLUDED.comment,
			is_active = TRUE,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		r.ID, r.ProductID, r.UserID, r.Rating, r.Title, r.Comment,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return mapErr("upsert review", err)
	}
	r.IsActive = true
	return nil
}

func (t *pgTx) GetActiveReview(ctx context.Context, productID, userID string) (domain.Review, error) {
	r, err := scanReview(t.tx.QueryRow(ctx, `SELECT `+reviewCols+` FROM reviews
		WHERE product_id=$1 AND user_id=$2 AND is_active`, productID, userID))
	if err != nil {
		return domain.Review{}, mapErr(fmt.Sprintf("review for product %s by user %s", productID, userID), err)
	}
	return r, nil
}

func (t *pgTx) DeactivateReview(ctx context.Context, productID, userID string) error {
	return t.execOne(ctx, fmt.Sprintf("review for product %s by user %s", productID, userID), `
		UPDATE reviews SET is_active=FALSE, updated_at=NOW()
		WHERE product_id=$1 AND user_id=$2 AND is_active`, productID, userID)
}

func (t *pgTx) ListActiveReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+reviewCols+` FROM reviews
		WHERE product_id=$1 AND is_active ORDER BY updated_at DESC, id`, productID)
	if err != nil {
		return nil, mapErr("reviews of "+productID, err)
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, mapErr("scan review", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("reviews of "+productID, err)
	}
	return out, nil
}

func (t *pgTx) AggregateRatings(ctx context.Context, productID string) (domain.Ratings, error) {
	var count, sum int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(rating), 0)
		FROM reviews WHERE product_id=$1 AND is_active`, productID).Scan(&count, &sum)
	if err != nil {
		return domain.Ratings{}, mapErr("aggregate ratings "+productID, err)
	}
	return domain.RatingsFrom(count, sum), nil
}

// ---- ledger ----

func (t *pgTx) RecordPurchase(ctx context.Context, userID, productID string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_products (user_id, product_id, purchase_count, last_purchased_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			purchase_count = user_products.purchase_count + 1,
			last_purchased_at = EXCLUDED.last_purchased_at`, userID, productID, at)
	if err != nil {
		return mapErr("record purchase", err)
	}
	return nil
}

func (t *pgTx) SetReviewed(ctx context.Context, userID, productID string, reviewed bool) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_products (user_id, product_id, is_reviewed)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET is_reviewed = EXCLUDED.is_reviewed`,
		userID, productID, reviewed)
	if err != nil {
		return mapErr("set reviewed", err)
	}
	return nil
}

const userProductCols = `user_id, product_id, purchase_count, last_purchased_at, is_reviewed`

func scanUserProduct(row pgx.Row) (domain.UserProduct, error) {
	var up domain.UserProduct
	var last *time.Time
	err := row.Scan(&up.UserID, &up.ProductID, &up.PurchaseCount, &last, &up.IsReviewed)
	if last != nil {
		up.LastPurchasedAt = *last
	}
	return up, err
}

func (t *pgTx) GetUserProduct(ctx context.Context, userID, productID string) (domain.UserProduct, error) {
	up, err := scanUserProduct(t.tx.QueryRow(ctx, `SELECT `+userProductCols+` FROM user_products
		WHERE user_id=$1 AND product_id=$2`, userID, productID))
	if err != nil {
		return domain.UserProduct{}, mapErr(fmt.Sprintf("ledger entry for user %s product %s", userID, productID), err)
	}
	return up, nil
}

func (t *pgTx) ListUserProductsByProduct(ctx context.Context, productID string) ([]domain.UserProduct, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+userProductCols+` FROM user_products
		WHERE product_id=$1 ORDER BY user_id`, productID)
	if err != nil {
		return nil, mapErr("ledger of "+productID, err)
	}
	defer rows.Close()

	var out []domain.UserProduct
	for rows.Next() {
		up, err := scanUserProduct(rows)
		if err != nil {
			return nil, mapErr("scan ledger", err)
		}
		out = append(out, up)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("ledger of "+productID, err)
	}
	return out, nil
}
