// Package cart holds the cart aggregate shared by the guest and remote
// cart backends: line identity, customization matching and the totals
// schedule applied at checkout.
package cart

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Variant references a purchasable product variant (SKU). Price and the
// printing fee come from the catalog; Stock is the last known stock count
// and is nil when unknown (e.g. a line restored from a persisted snapshot).
type Variant struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Price       decimal.Decimal `json:"price"`
	PrintingFee decimal.Decimal `json:"printing_fee"`
	Stock       *int            `json:"stock,omitempty"`
}

// Line is a single cart line. Lines with the same variant but different
// customization are distinct lines. Quantity is always positive: a line
// whose quantity would drop to zero or below is removed, never stored.
type Line struct {
	ID           string  `json:"id"`
	Variant      Variant `json:"variant"`
	Quantity     int     `json:"quantity"`
	CustomName   string  `json:"custom_name,omitempty"`
	CustomNumber string  `json:"custom_number,omitempty"`
}

// Customized reports whether either customization field is set.
func (l Line) Customized() bool {
	return l.CustomName != "" || l.CustomNumber != ""
}

// Matches reports whether the line matches the (variant, customization)
// identity triple used for guest-cart merging.
func (l Line) Matches(variantID, customName, customNumber string) bool {
	return l.Variant.ID == variantID && l.CustomName == customName && l.CustomNumber == customNumber
}

// NormalizeCustomization applies the canonical form used for line identity:
// printed names are upper-cased and trimmed, numbers are trimmed.
func NormalizeCustomization(name, number string) (string, string) {
	return strings.ToUpper(strings.TrimSpace(name)), strings.TrimSpace(number)
}

// NewGuestLineID mints a locally-generated line id for an unauthenticated cart.
func NewGuestLineID() string {
	return "guest-" + uuid.NewString()
}

// QuantityOf returns the current quantity of the line matching the identity
// triple, or zero when no such line exists.
func QuantityOf(lines []Line, variantID, customName, customNumber string) int {
	for _, l := range lines {
		if l.Matches(variantID, customName, customNumber) {
			return l.Quantity
		}
	}
	return 0
}

// Merge applies a guest-cart quantity delta and returns the updated lines.
// An existing line matching the identity triple absorbs the delta; a line
// reduced to zero or below is dropped. A negative delta with no matching
// line is a no-op, as is a zero delta.
func Merge(lines []Line, variant Variant, delta int, customName, customNumber string) []Line {
	if delta == 0 {
		return lines
	}

	for i, l := range lines {
		if !l.Matches(variant.ID, customName, customNumber) {
			continue
		}
		updated := make([]Line, len(lines))
		copy(updated, lines)
		updated[i].Quantity += delta
		if variant.Stock != nil {
			updated[i].Variant.Stock = variant.Stock
		}
		if updated[i].Quantity <= 0 {
			return append(updated[:i], updated[i+1:]...)
		}
		return updated
	}

	if delta < 0 {
		return lines
	}

	return append(append([]Line(nil), lines...), Line{
		ID:           NewGuestLineID(),
		Variant:      variant,
		Quantity:     delta,
		CustomName:   customName,
		CustomNumber: customNumber,
	})
}

// Remove drops the line with the given id entirely, never decrementing.
func Remove(lines []Line, lineID string) []Line {
	updated := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ID != lineID {
			updated = append(updated, l)
		}
	}
	return updated
}
