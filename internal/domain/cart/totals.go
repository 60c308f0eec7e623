package cart

import "github.com/shopspring/decimal"

// Fee schedule. The printing fee applies per unit whenever a line carries any
// customization; a variant may override the default via Variant.PrintingFee.
// Shipping is a flat fee waived above the free-shipping threshold and for
// empty carts. Gold members get a flat percentage off the subtotal.
var (
	DefaultPrintingFee    = decimal.NewFromInt(15)
	ShippingFlatFee       = decimal.NewFromInt(10)
	FreeShippingThreshold = decimal.NewFromInt(150)
	GoldDiscountRate      = decimal.NewFromFloat(0.10)
)

// Tier is the customer loyalty classification carried on the profile.
type Tier string

// TierGold is the only tier that currently qualifies for the loyalty discount.
const TierGold Tier = "Gold"

// QualifiesForDiscount reports whether the tier earns the loyalty discount.
func (t Tier) QualifiesForDiscount() bool {
	return t == TierGold
}

// Totals is the monetary breakdown of a cart snapshot. All values are
// non-negative. Amounts are kept at full precision; rounding to two decimal
// places happens only at display time.
type Totals struct {
	Subtotal decimal.Decimal `json:"-"`
	Shipping decimal.Decimal `json:"-"`
	Discount decimal.Decimal `json:"-"`
	Grand    decimal.Decimal `json:"-"`
}

// Compute derives cart totals from the line collection and loyalty tier.
// It is a pure function of its inputs.
func Compute(lines []Line, tier Tier) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		subtotal = subtotal.Add(l.Variant.Price.Mul(qty))
		if l.Customized() {
			fee := l.Variant.PrintingFee
			if fee.IsZero() {
				fee = DefaultPrintingFee
			}
			subtotal = subtotal.Add(fee.Mul(qty))
		}
	}

	shipping := decimal.Zero
	if subtotal.GreaterThan(decimal.Zero) && !subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = ShippingFlatFee
	}

	discount := decimal.Zero
	if tier.QualifiesForDiscount() {
		discount = subtotal.Mul(GoldDiscountRate)
	}

	grand := subtotal.Sub(discount).Add(shipping)
	if grand.IsNegative() {
		grand = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Discount: discount,
		Grand:    grand,
	}
}
