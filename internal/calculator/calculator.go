package calculator

import (
	"math"
)

const (
	luxurySurcharge     = 0.05
	midweekDiscountRate = 0.05
	promoDiscountRate   = 0.10
)

type orderCalculator struct{}

// New creates the default Calculator.
func New() Calculator {
	return &orderCalculator{}
}

// Compute prices cart with DefaultRules as fallbacks.
func Compute(cart []*CartLine, cfg Config) Quote {
	return New().Quote(cart, cfg, DefaultRules())
}

// Total returns the payable amount for cart. It never fails: invalid input
// yields 0 and invalid lines are ignored.
func Total(cart []*CartLine, cfg Config) float64 {
	return Compute(cart, cfg).Total
}

// settings is a Config with every optional field resolved.
type settings struct {
	taxRate           float64
	freeShipThreshold float64
	shipPerKg         float64
	promo             bool
	midweek           bool
	counters          *Counters
}

func normalize(cfg Config, base Rules) settings {
	s := settings{
		taxRate:           base.TaxRate,
		freeShipThreshold: base.FreeShipThreshold,
		shipPerKg:         base.ShipPerKg,
		promo:             cfg.PromoCode == PromoCodeSave10,
		midweek:           cfg.DayOfWeek != nil && *cfg.DayOfWeek == MidweekDay,
		counters:          cfg.Counters,
	}
	if cfg.TaxRate != nil {
		s.taxRate = *cfg.TaxRate
	}
	if cfg.FreeShipThreshold != nil {
		s.freeShipThreshold = *cfg.FreeShipThreshold
	}
	if cfg.ShipPerKg != nil {
		s.shipPerKg = *cfg.ShipPerKg
	}
	return s
}

// Quote prices cart. When the SAVE10 promo matches, cfg.Counters.PromoUsed is
// incremented before the total is computed, whether or not the promo ends up
// being the larger discount.
func (c *orderCalculator) Quote(cart []*CartLine, cfg Config, base Rules) Quote {
	if len(cart) == 0 {
		return Quote{}
	}

	s := normalize(cfg, base)

	var q Quote
	for _, line := range cart {
		if !validLine(line) {
			continue
		}
		qty := *line.Qty
		q.ValidLines++
		// Every product below is wrapped in an explicit conversion so the
		// compiler cannot fuse it into a multiply-add.
		q.Subtotal += float64(*line.Price * qty)
		if line.Weight != nil && *line.Weight > 0 {
			q.TotalWeight += float64(*line.Weight * qty)
		}
		if line.Category == CategoryLuxury {
			q.Luxury = true
		}
	}

	// Lines that sum to nothing are treated like an empty cart.
	if q.Subtotal == 0 {
		return Quote{}
	}

	q.EffectiveTaxRate = s.taxRate
	if q.Luxury {
		q.EffectiveTaxRate += luxurySurcharge
	}

	if s.midweek {
		q.Discount = float64(q.Subtotal * midweekDiscountRate)
		q.DiscountKind = DiscountMidweek
	}
	if s.promo {
		q.PromoApplied = true
		if s.counters != nil {
			s.counters.PromoUsed++
		}
		if promo := float64(q.Subtotal * promoDiscountRate); promo > q.Discount {
			q.Discount = promo
			q.DiscountKind = DiscountPromo
		}
	}

	q.Taxed = Round2(float64((q.Subtotal - q.Discount) * (1 + q.EffectiveTaxRate)))

	if q.Taxed < s.freeShipThreshold {
		q.Shipping = float64(math.Ceil(q.TotalWeight) * s.shipPerKg)
	}

	q.Total = math.Max(0, Round2(q.Taxed+q.Shipping))
	return q
}

// Round2 rounds x to the nearest cent, with ties rounded towards positive
// infinity.
func Round2(x float64) float64 {
	return math.Floor(float64(x*100)+0.5) / 100
}

func validLine(line *CartLine) bool {
	if line == nil || line.Price == nil || line.Qty == nil {
		return false
	}
	price, qty := *line.Price, *line.Qty
	if !finite(price) || !finite(qty) {
		return false
	}
	return price >= 0 && qty > 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
