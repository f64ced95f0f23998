package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/orderflowhq/orderflow-backend/pkg/config"
)

// Pricing holds the checkout pricing policy as decimals. Parsed once at
// startup so a bad knob fails the boot, not a customer's order.
type Pricing struct {
	TaxRate               decimal.Decimal
	ShippingFlatFee       decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// NewPricing parses the configured checkout knobs.
func NewPricing(cfg config.CheckoutConfig) (Pricing, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return Pricing{}, fmt.Errorf("parsing tax rate %q: %w", cfg.TaxRate, err)
	}
	flatFee, err := decimal.NewFromString(cfg.ShippingFlatFee)
	if err != nil {
		return Pricing{}, fmt.Errorf("parsing shipping flat fee %q: %w", cfg.ShippingFlatFee, err)
	}
	threshold, err := decimal.NewFromString(cfg.FreeShippingThreshold)
	if err != nil {
		return Pricing{}, fmt.Errorf("parsing free shipping threshold %q: %w", cfg.FreeShippingThreshold, err)
	}
	if taxRate.IsNegative() || flatFee.IsNegative() || threshold.IsNegative() {
		return Pricing{}, fmt.Errorf("checkout pricing knobs must be non-negative")
	}
	return Pricing{
		TaxRate:               taxRate,
		ShippingFlatFee:       flatFee,
		FreeShippingThreshold: threshold,
	}, nil
}

// Totals computes tax, shipping and total for a subtotal. Shipping is waived
// at or above the free-shipping threshold.
func (p Pricing) Totals(subtotal decimal.Decimal) (tax, shipping, total decimal.Decimal) {
	tax = subtotal.Mul(p.TaxRate).Round(2)
	shipping = p.ShippingFlatFee
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	total = subtotal.Add(tax).Add(shipping)
	return tax, shipping, total
}
