package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Pricing holds the checkout charges applied on top of the item subtotal.
type Pricing struct {
	ShippingFee int64
	TaxRate     decimal.Decimal
}

func ParseTaxRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tax rate: %w", err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("tax rate %s out of range [0,1)", s)
	}
	return d, nil
}

// Compute rounds tax half away from zero to a whole currency unit.
func (p Pricing) Compute(items []Item) Totals {
	var sub int64
	for _, it := range items {
		sub += it.TotalPrice
	}
	tax := decimal.NewFromInt(sub).Mul(p.TaxRate).Round(0).IntPart()
	return Totals{
		Subtotal: sub,
		Shipping: p.ShippingFee,
		Tax:      tax,
		Total:    sub + p.ShippingFee + tax,
	}
}

// NewOrderNumber returns a sortable, externally visible order number.
func NewOrderNumber(now time.Time) string {
	return "ORD-" + now.UTC().Format("20060102") + "-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
