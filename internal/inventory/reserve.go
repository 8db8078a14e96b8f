package inventory

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"math"
	"sort"
)

// MaxQty caps a merged line quantity at what the stock column can hold.
const MaxQty = math.MaxInt32

type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Normalize validates requested lines and merges repeated products, keeping
// the order in which products first appear.
func Normalize(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no items", domain.ErrValidation)
	}
	out := make([]Line, 0, len(lines))
	pos := make(map[string]int, len(lines))
	for _, l := range lines {
		if err := domain.ValidateID("product_id", l.ProductID); err != nil {
			return nil, err
		}
		if l.Qty <= 0 {
			return nil, fmt.Errorf("%w: qty for product %s must be positive", domain.ErrValidation, l.ProductID)
		}
		if l.Qty > MaxQty {
			return nil, fmt.Errorf("%w: qty for product %s exceeds %d", domain.ErrValidation, l.ProductID, MaxQty)
		}
		if i, ok := pos[l.ProductID]; ok {
			if out[i].Qty > MaxQty-l.Qty {
				return nil, fmt.Errorf("%w: qty for product %s exceeds %d", domain.ErrValidation, l.ProductID, MaxQty)
			}
			out[i].Qty += l.Qty
			continue
		}
		pos[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

// Reserve decrements stock for every line inside tx and returns line items
// with the unit price frozen at this moment. Products are touched in id order
// so concurrent checkouts lock rows in the same sequence. Any failure leaves
// the caller to roll back the whole unit of work.
func Reserve(ctx context.Context, tx store.ProductTx, lines []Line) ([]domain.LineItem, error) {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return lines[order[a]].ProductID < lines[order[b]].ProductID })

	items := make([]domain.LineItem, len(lines))
	for _, i := range order {
		l := lines[i]
		p, err := tx.ReserveStock(ctx, l.ProductID, l.Qty)
		if err != nil {
			return nil, err
		}
		items[i] = domain.LineItem{ProductID: p.ID, Name: p.Name, Qty: l.Qty, PriceCents: p.PriceCents}
	}
	return items, nil
}

// Restore returns the quantities of items to stock, in the same product id
// order Reserve locks rows in.
func Restore(ctx context.Context, tx store.ProductTx, items []domain.LineItem) error {
	sorted := append([]domain.LineItem(nil), items...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].ProductID < sorted[b].ProductID })
	for _, it := range sorted {
		if _, err := tx.AdjustStock(ctx, it.ProductID, it.Qty); err != nil {
			return fmt.Errorf("restore product %s: %w", it.ProductID, err)
		}
	}
	return nil
}
