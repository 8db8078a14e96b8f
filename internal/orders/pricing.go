package orders

import (
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/shopspring/decimal"
)

// Pricing holds the business constants applied once at checkout.
type Pricing struct {
	ShippingFlatCents          int64
	FreeShippingThresholdCents int64
	TaxRate                    decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		ShippingFlatCents:          1000,
		FreeShippingThresholdCents: 5000,
		TaxRate:                    decimal.RequireFromString("0.08"),
	}
}

func PricingFromConfig(c config.Pricing) Pricing {
	return Pricing{
		ShippingFlatCents:          c.ShippingFlatCents,
		FreeShippingThresholdCents: c.FreeShippingThresholdCents,
		TaxRate:                    c.TaxRate,
	}
}

type Totals struct {
	SubTotalCents int64
	ShippingCents int64
	TaxCents      int64
	TotalCents    int64
}

// Quote prices line items whose unit prices are already frozen.
// Tax is rounded half away from zero to whole minor units.
func (p Pricing) Quote(items []domain.LineItem) Totals {
	var t Totals
	for _, it := range items {
		t.SubTotalCents += it.PriceCents * int64(it.Qty)
	}
	if t.SubTotalCents < p.FreeShippingThresholdCents {
		t.ShippingCents = p.ShippingFlatCents
	}
	t.TaxCents = decimal.NewFromInt(t.SubTotalCents).Mul(p.TaxRate).Round(0).IntPart()
	t.TotalCents = t.SubTotalCents + t.ShippingCents + t.TaxCents
	return t
}

func (t Totals) apply(o *domain.Order) {
	o.SubTotalCents = t.SubTotalCents
	o.ShippingCents = t.ShippingCents
	o.TaxCents = t.TaxCents
	o.TotalCents = t.TotalCents
}
