// Package payment hands an order over to the hosted payment page. Capture
// happens elsewhere; the outcome comes back through orders.SetPaymentStatus.
package payment

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/shopspring/decimal"
	"net/url"
	"strings"
)

type Session struct {
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	ApproveURL  string `json:"approve_url"`
	CallbackURL string `json:"callback_url"`
}

type Handoff interface {
	Start(ctx context.Context, o domain.Order) (*Session, error)
}

// HostedCheckout builds approve links for a hosted payment page at BaseURL.
// Cash on delivery orders and orders already settled get no session.
type HostedCheckout struct {
	BaseURL    string
	ServiceURL string
}

func (h HostedCheckout) Start(_ context.Context, o domain.Order) (*Session, error) {
	if domain.IsCashOnDelivery(o.PaymentMethod) || o.PaymentStatus != domain.PaymentPending {
		return nil, nil
	}
	if h.BaseURL == "" {
		return nil, fmt.Errorf("%w: checkout base url not configured", domain.ErrValidation)
	}
	base, err := url.Parse(strings.TrimRight(h.BaseURL, "/") + "/pay")
	if err != nil {
		return nil, fmt.Errorf("%w: checkout base url: %v", domain.ErrValidation, err)
	}

	amount := decimal.New(o.TotalCents, -2).StringFixed(2)
	q := base.Query()
	q.Set("order", o.Number)
	q.Set("amount", amount)
	q.Set("method", o.PaymentMethod)
	base.RawQuery = q.Encode()

	s := &Session{OrderID: o.ID, Amount: amount, ApproveURL: base.String()}
	if h.ServiceURL != "" {
		s.CallbackURL = fmt.Sprintf("%s/orders/%s/payment", strings.TrimRight(h.ServiceURL, "/"), o.ID)
	}
	return s, nil
}
