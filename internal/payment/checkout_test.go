package payment

import (
	"context"
	"net/url"
	"testing"

	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostedCheckout(t *testing.T) {
	h := HostedCheckout{BaseURL: "https://pay.example.test/", ServiceURL: "https://shop.example.test"}
	o := domain.Order{
		ID: "b0c6", Number: "ORD-20260301-ABCD1234", PaymentMethod: "card",
		PaymentStatus: domain.PaymentPending, Status: domain.StatusPending, TotalCents: 6480,
	}

	s, err := h.Start(context.Background(), o)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "64.80", s.Amount)
	assert.Equal(t, "https://shop.example.test/orders/b0c6/payment", s.CallbackURL)

	u, err := url.Parse(s.ApproveURL)
	require.NoError(t, err)
	assert.Equal(t, "pay.example.test", u.Host)
	assert.Equal(t, "/pay", u.Path)
	assert.Equal(t, "ORD-20260301-ABCD1234", u.Query().Get("order"))
	assert.Equal(t, "64.80", u.Query().Get("amount"))
	assert.Equal(t, "card", u.Query().Get("method"))
}

func TestHostedCheckoutSkips(t *testing.T) {
	h := HostedCheckout{BaseURL: "https://pay.example.test"}

	s, err := h.Start(context.Background(), domain.Order{PaymentMethod: "cod", PaymentStatus: domain.PaymentPending})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = h.Start(context.Background(), domain.Order{PaymentMethod: "card", PaymentStatus: domain.PaymentPaid})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestHostedCheckoutNeedsBaseURL(t *testing.T) {
	_, err := HostedCheckout{}.Start(context.Background(), domain.Order{PaymentMethod: "card", PaymentStatus: domain.PaymentPending})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
