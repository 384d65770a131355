package calculator

import (
	"encoding/json"
	"math"
)

// ParseCart converts a generically decoded JSON or YAML value into cart lines.
// Anything that is not a sequence yields a nil cart. Elements that are not
// objects become nil lines, and fields of the wrong type are left missing, so
// the calculator ignores them rather than failing.
func ParseCart(v any) []*CartLine {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	cart := make([]*CartLine, len(items))
	for i, item := range items {
		fields, ok := asObject(item)
		if !ok {
			continue
		}
		line := &CartLine{
			Price:  numberField(fields, "price"),
			Qty:    numberField(fields, "qty"),
			Weight: numberField(fields, "weight"),
		}
		if category, ok := fields["category"].(string); ok {
			line.Category = category
		}
		cart[i] = line
	}
	return cart
}

// ParseConfig converts a generically decoded options object into a Config.
// Unknown keys are ignored and non-numeric values fall back to defaults.
// Counters are honoured whenever promoUsed is a finite number.
func ParseConfig(v any) Config {
	fields, ok := asObject(v)
	if !ok {
		return Config{}
	}

	cfg := Config{
		TaxRate:           numberField(fields, "taxRate"),
		FreeShipThreshold: numberField(fields, "freeShipThreshold"),
		ShipPerKg:         numberField(fields, "shipPerKg"),
	}
	if code, ok := fields["promoCode"].(string); ok {
		cfg.PromoCode = code
	}
	if day := numberField(fields, "dayOfWeek"); day != nil {
		if n, ok := integral(*day); ok {
			cfg.DayOfWeek = &n
		}
	}
	if counters, ok := asObject(fields["counters"]); ok {
		if used := numberField(counters, "promoUsed"); used != nil {
			if !math.IsNaN(*used) && !math.IsInf(*used, 0) {
				cfg.Counters = &Counters{PromoUsed: *used}
			}
		}
	}
	return cfg
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			if key, ok := k.(string); ok {
				out[key] = val
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func numberField(fields map[string]any, key string) *float64 {
	value, ok := fields[key]
	if !ok {
		return nil
	}
	n, ok := toFloat(value)
	if !ok {
		return nil
	}
	return &n
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// integral reports f as an int when it is a whole number that fits.
func integral(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
