package orders

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/events"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/ledger"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/google/uuid"
	"strings"
	"time"
)

// Cache receives best-effort updates after a unit of work commits.
type Cache interface {
	SetOrderStatus(ctx context.Context, o domain.Order)
	InvalidateProduct(ctx context.Context, productID string)
}

type Service struct {
	Store   store.Store
	Pricing Pricing
	// RestockOnCancel returns reserved quantities to stock when an order is
	// cancelled. Off by default: cancelled stock is written off.
	RestockOnCancel bool
	Events          *events.Emitter
	Cache           Cache
	Now             func() time.Time
}

type CheckoutInput struct {
	Items           []inventory.Line `json:"items"`
	ShippingAddress domain.Address   `json:"shipping_address"`
	PaymentMethod   string           `json:"payment_method" validate:"required,max=40"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func requireUser(who domain.Identity) error {
	if who.UserID == "" {
		return fmt.Errorf("%w: no authenticated user", domain.ErrForbidden)
	}
	return nil
}

func newOrderNumber(at time.Time) string {
	return "ORD-" + at.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

// Create prices the cart, reserves stock and stores the order as one unit of
// work. Either every line is reserved and the order exists, or nothing changed.
func (s *Service) Create(ctx context.Context, who domain.Identity, in CheckoutInput) (o domain.Order, err error) {
	defer func() { metrics.RecordOperation("order_create", err) }()

	if err := requireUser(who); err != nil {
		return domain.Order{}, err
	}
	if err := domain.Validate(in); err != nil {
		return domain.Order{}, err
	}
	lines, err := inventory.Normalize(in.Items)
	if err != nil {
		return domain.Order{}, err
	}

	err = s.Store.InTx(ctx, func(tx store.Tx) error {
		items, err := inventory.Reserve(ctx, tx, lines)
		if err != nil {
			return err
		}
		o = domain.Order{
			Number:          newOrderNumber(s.now()),
			UserID:          who.UserID,
			Items:           items,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   strings.ToLower(strings.TrimSpace(in.PaymentMethod)),
			PaymentStatus:   domain.PaymentPending,
			Status:          domain.InitialStatus(in.PaymentMethod),
		}
		s.Pricing.Quote(items).apply(&o)
		return tx.InsertOrder(ctx, &o)
	})
	if err != nil {
		return domain.Order{}, err
	}

	if s.Cache != nil {
		s.Cache.SetOrderStatus(ctx, o)
		for _, it := range o.Items {
			s.Cache.InvalidateProduct(ctx, it.ProductID)
		}
	}
	s.Events.Emit(ctx, events.TopicOrders, events.EventOrderCreated, o.ID, events.OrderCreatedFrom(o))
	return o, nil
}

// Get returns an order to its owner or to an admin.
func (s *Service) Get(ctx context.Context, who domain.Identity, orderID string) (domain.Order, error) {
	if err := requireUser(who); err != nil {
		return domain.Order{}, err
	}
	if err := domain.ValidateID("order_id", orderID); err != nil {
		return domain.Order{}, err
	}
	var o domain.Order
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != who.UserID && !who.IsAdmin() {
		return domain.Order{}, fmt.Errorf("%w: order %s belongs to another user", domain.ErrForbidden, orderID)
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, who domain.Identity) ([]domain.Order, error) {
	if err := requireUser(who); err != nil {
		return nil, err
	}
	var out []domain.Order
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListOrdersByUser(ctx, who.UserID)
		return err
	})
	return out, err
}

// UpdateStatus is the administrative transition path. It carries no ownership
// check and leaves payment status untouched.
func (s *Service) UpdateStatus(ctx context.Context, who domain.Identity, orderID string, to domain.Status) (o domain.Order, err error) {
	defer func() { metrics.RecordOperation("order_status_"+string(to), err) }()

	if !who.IsAdmin() {
		return domain.Order{}, fmt.Errorf("%w: status updates are admin only", domain.ErrForbidden)
	}
	return s.transition(ctx, orderID, to,
		func(domain.Order) error { return nil },
		func(o domain.Order) domain.PaymentStatus { return o.PaymentStatus },
	)
}

// Cancel lets the owner cancel their order. Admins pass the ownership check.
// Captured payments become refunded, anything else failed.
func (s *Service) Cancel(ctx context.Context, who domain.Identity, orderID string) (o domain.Order, err error) {
	defer func() { metrics.RecordOperation("order_cancel", err) }()

	if err := requireUser(who); err != nil {
		return domain.Order{}, err
	}
	return s.transition(ctx, orderID, domain.StatusCancelled,
		func(o domain.Order) error {
			if o.UserID != who.UserID && !who.IsAdmin() {
				return fmt.Errorf("%w: order %s belongs to another user", domain.ErrForbidden, o.ID)
			}
			return nil
		},
		func(o domain.Order) domain.PaymentStatus { return domain.PaymentAfterCancel(o.PaymentStatus) },
	)
}

func (s *Service) transition(
	ctx context.Context,
	orderID string,
	to domain.Status,
	authorize func(domain.Order) error,
	payment func(domain.Order) domain.PaymentStatus,
) (domain.Order, error) {
	if err := domain.ValidateID("order_id", orderID); err != nil {
		return domain.Order{}, err
	}

	var o domain.Order
	var from domain.Status
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(o); err != nil {
			return err
		}
		if err := domain.CheckTransition(o.Status, to); err != nil {
			return fmt.Errorf("order %s: %w", o.ID, err)
		}

		from = o.Status
		o.Status = to
		o.PaymentStatus = payment(o)
		if err := tx.UpdateOrderStatus(ctx, o.ID, o.Status, o.PaymentStatus); err != nil {
			return err
		}

		switch to {
		case domain.StatusDelivered:
			return ledger.RecordDelivery(ctx, tx, o, s.now())
		case domain.StatusCancelled:
			if s.RestockOnCancel {
				return inventory.Restore(ctx, tx, o.Items)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if s.Cache != nil {
		s.Cache.SetOrderStatus(ctx, o)
		if to == domain.StatusCancelled && s.RestockOnCancel {
			for _, it := range o.Items {
				s.Cache.InvalidateProduct(ctx, it.ProductID)
			}
		}
	}
	s.Events.Emit(ctx, events.TopicOrders, events.EventOrderStatusChanged, o.ID, events.OrderStatusChangedPayload{
		OrderID: o.ID, UserID: o.UserID, From: from, To: to, PaymentStatus: o.PaymentStatus,
	})
	return o, nil
}

// SetPaymentStatus records the outcome reported by the payment collaborator.
// It never moves the order status.
func (s *Service) SetPaymentStatus(ctx context.Context, who domain.Identity, orderID string, ps domain.PaymentStatus) (o domain.Order, err error) {
	defer func() { metrics.RecordOperation("order_payment", err) }()

	if !who.IsAdmin() {
		return domain.Order{}, fmt.Errorf("%w: payment updates are admin only", domain.ErrForbidden)
	}
	if ps != domain.PaymentPaid && ps != domain.PaymentFailed {
		return domain.Order{}, fmt.Errorf("%w: payment status %q cannot be reported", domain.ErrValidation, ps)
	}
	if err := domain.ValidateID("order_id", orderID); err != nil {
		return domain.Order{}, err
	}
	err = s.Store.InTx(ctx, func(tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == domain.StatusCancelled {
			return fmt.Errorf("%w: order %s is cancelled", domain.ErrInvalidTransition, o.ID)
		}
		o.PaymentStatus = ps
		return tx.UpdateOrderStatus(ctx, o.ID, o.Status, o.PaymentStatus)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if s.Cache != nil {
		s.Cache.SetOrderStatus(ctx, o)
	}
	return o, nil
}
