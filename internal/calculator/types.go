package calculator

const (
	// CategoryLuxury marks a cart line as a luxury item.
	CategoryLuxury = "lux"
	// PromoCodeSave10 is the only promo code that grants a discount.
	PromoCodeSave10 = "SAVE10"
	// MidweekDay is the day of week (0 = Sunday) that enables the midweek discount.
	MidweekDay = 3
)

// CartLine represents one purchasable entry. Nil pointers are treated as
// missing fields.
type CartLine struct {
	Price    *float64
	Qty      *float64
	Category string
	Weight   *float64
}

// Counters is a caller-owned usage sink. Quote increments PromoUsed in place
// whenever the SAVE10 promo code matches. PromoUsed may hold any number the
// caller supplies, fractional or beyond the int range. The increment is not
// atomic; callers sharing a Counters value across goroutines must synchronise
// access.
type Counters struct {
	PromoUsed float64 `json:"promoUsed"`
}

// Config carries per-call pricing options. Every field is optional; nil
// numeric fields fall back to the Rules passed to the calculator.
type Config struct {
	TaxRate           *float64
	FreeShipThreshold *float64
	ShipPerKg         *float64
	PromoCode         string
	DayOfWeek         *int
	Counters          *Counters
}

// Rules holds the fallback values used when a Config omits a numeric field.
type Rules struct {
	TaxRate           float64
	FreeShipThreshold float64
	ShipPerKg         float64
}

// DefaultRules returns the built-in pricing rules.
func DefaultRules() Rules {
	return Rules{
		TaxRate:           0.10,
		FreeShipThreshold: 100,
		ShipPerKg:         2.5,
	}
}

// DiscountKind names the discount that was applied to a quote.
type DiscountKind string

const (
	DiscountNone    DiscountKind = ""
	DiscountMidweek DiscountKind = "midweek"
	DiscountPromo   DiscountKind = "promo"
)

// Quote is the result of pricing a cart. Total is the payable amount; the
// remaining fields expose how it was derived. A zero Quote is returned for
// empty carts and carts without any valid line.
type Quote struct {
	ValidLines       int          `json:"validLines"`
	Subtotal         float64      `json:"subtotal"`
	TotalWeight      float64      `json:"totalWeight"`
	Luxury           bool         `json:"luxury"`
	EffectiveTaxRate float64      `json:"effectiveTaxRate"`
	Discount         float64      `json:"discount"`
	DiscountKind     DiscountKind `json:"discountKind,omitempty"`
	PromoApplied     bool         `json:"promoApplied"`
	Taxed            float64      `json:"taxed"`
	Shipping         float64      `json:"shipping"`
	Total            float64      `json:"total"`
}

// Calculator describes the behaviour required from an order total calculator.
type Calculator interface {
	Quote(cart []*CartLine, cfg Config, base Rules) Quote
}

// Ptr returns a pointer to v. It keeps literal carts and configs readable.
func Ptr[T any](v T) *T {
	return &v
}
